package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/N129BZ/stratuxmap/internal/registry"
)

// Record is a parsed report as stored and published. Payload is the full
// parsed result as JSON; the other fields are lifted out of it for
// indexing.
type Record struct {
	Type           string          `json:"type"`
	Station        string          `json:"station"`
	ReportTime     string          `json:"reportTime"`
	Raw            string          `json:"raw"`
	Lat            *float64        `json:"lat,omitempty"`
	Lon            *float64        `json:"lon,omitempty"`
	FlightCategory string          `json:"flightCategory,omitempty"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	Payload        json.RawMessage `json:"payload"`
}

// indexed are the payload keys lifted into Record.
type indexed struct {
	Time           string   `json:"time"`
	Raw            string   `json:"raw"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	FlightCategory string   `json:"flightCategory"`
}

// NewRecord serialises a parse result.
func NewRecord(res registry.Result, receivedAt time.Time) (Record, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s result: %w", res.Type(), err)
	}

	var idx indexed
	if err := json.Unmarshal(payload, &idx); err != nil {
		return Record{}, fmt.Errorf("index %s result: %w", res.Type(), err)
	}

	return Record{
		Type:           res.Type(),
		Station:        res.StationID(),
		ReportTime:     idx.Time,
		Raw:            idx.Raw,
		Lat:            idx.Lat,
		Lon:            idx.Lon,
		FlightCategory: idx.FlightCategory,
		ReceivedAt:     receivedAt.UTC(),
		Payload:        payload,
	}, nil
}

// Key is the partition key used by the stream sinks.
func (r Record) Key() string {
	return r.Station + "/" + r.Type
}
