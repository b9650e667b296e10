package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/storage"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// maxBodyBytes caps POST /parse bodies; a winds table is a few KB.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Ready.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleParse decodes one envelope, bare or wrapped, and returns the
// parsed report. With ?trace=1 it returns the extractor trace instead.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Read body: "+err.Error())
		return
	}

	env, err := stratux.DecodeEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid envelope: "+err.Error())
		return
	}

	if r.URL.Query().Get("trace") != "" {
		trace := s.deps.Registry.Trace(env)
		if trace == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, trace)
		return
	}

	res := s.deps.Registry.Dispatch(r.Context(), env)
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No latest report store configured")
		return
	}

	station := stratux.NormaliseStation(chi.URLParam(r, "station"))
	records, err := s.deps.Latest.GetLatest(r.Context(), station)
	if err != nil {
		s.log.Error("get latest failed", logger.String("station", station), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "No reports found for station")
		return
	}

	writeJSON(w, http.StatusOK, recordsToResponse(records))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "No history store configured")
		return
	}

	q := storage.HistoryQuery{
		Station: stratux.NormaliseStation(chi.URLParam(r, "station")),
		Type:    strings.ToUpper(r.URL.Query().Get("type")),
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since (use RFC 3339)")
			return
		}
		q.Since = since
	}

	records, err := s.deps.History.History(r.Context(), q)
	if err != nil {
		s.log.Error("history query failed", logger.String("station", q.Station), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, recordsToResponse(records))
}

// ReportResponse is one stored report as served by the API.
type ReportResponse struct {
	Type       string          `json:"type"`
	Station    string          `json:"station"`
	ReceivedAt string          `json:"receivedAt"`
	Report     json.RawMessage `json:"report"`
}

func recordsToResponse(records []storage.Record) []ReportResponse {
	out := make([]ReportResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, ReportResponse{
			Type:       rec.Type,
			Station:    rec.Station,
			ReceivedAt: rec.ReceivedAt.UTC().Format(time.RFC3339),
			Report:     rec.Payload,
		})
	}
	return out
}

// handleAirport serves /airport?id=. Unknown airports get a 404 with an
// empty object, which the map client treats as "no airport".
func (s *Server) handleAirport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if s.deps.Airports == nil {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}

	info, err := s.deps.Airports.Lookup(r.Context(), stratux.NormaliseStation(id))
	switch {
	case errors.Is(err, airport.ErrNotFound):
		writeJSON(w, http.StatusNotFound, struct{}{})
	case err != nil:
		s.log.Error("airport lookup failed", logger.String("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

// handleAirportList serves /airportlist, either around lat/lon/radius
// (miles) or inside minLat/maxLat/minLon/maxLon.
func (s *Server) handleAirportList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Airports == nil {
		writeError(w, http.StatusServiceUnavailable, "No airport database configured")
		return
	}

	box, err := parseBox(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	airports, err := s.deps.Airports.InBox(r.Context(), box)
	if err != nil {
		s.log.Error("airport search failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, airports)
}

func parseBox(r *http.Request) (airport.BoundingBox, error) {
	q := r.URL.Query()

	if q.Has("lat") || q.Has("lon") || q.Has("radius") {
		vals, err := floats(q.Get("lat"), q.Get("lon"), q.Get("radius"))
		if err != nil {
			return airport.BoundingBox{}, errors.New("lat, lon and radius must be numbers")
		}
		if vals[2] <= 0 {
			return airport.BoundingBox{}, errors.New("radius must be positive")
		}
		return airport.BoundingBoxAround(vals[0], vals[1], vals[2]), nil
	}

	vals, err := floats(q.Get("minLat"), q.Get("maxLat"), q.Get("minLon"), q.Get("maxLon"))
	if err != nil {
		return airport.BoundingBox{}, errors.New("give lat/lon/radius or minLat/maxLat/minLon/maxLon")
	}
	return airport.BoundingBox{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}, nil
}

func floats(in ...string) ([]float64, error) {
	out := make([]float64, len(in))
	for i, s := range in {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
