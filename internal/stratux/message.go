// Package stratux provides the report envelope received from a Stratux
// weather feed and the text clean-up shared by every report parser.
package stratux

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Envelope is a single weather report as framed by the Stratux feed.
// The capitalised JSON keys are what the feed puts on the wire.
type Envelope struct {
	Type     string `json:"Type"`
	Location string `json:"Location"`
	Data     string `json:"Data"`
	Time     string `json:"Time"`

	// Set by the Stratux /weather socket, ignored by the parsers.
	LocaltimeReceived string `json:"LocaltimeReceived,omitempty"`
}

// HasPayload reports whether the envelope carries both a type tag and report text.
func (e *Envelope) HasPayload() bool {
	return e != nil && strings.TrimSpace(e.Type) != "" && strings.TrimSpace(e.Data) != ""
}

// Source identifies the receiver that relayed an envelope onto the bus.
type Source struct {
	Name     string `json:"name,omitempty"`
	Receiver string `json:"receiver,omitempty"`
}

// NATSWrapper is the bus format: the envelope nested under "envelope"
// with relay metadata at the top level.
type NATSWrapper struct {
	Source   *Source   `json:"source,omitempty"`
	Envelope *Envelope `json:"envelope,omitempty"`
}

// ToEnvelope unwraps the envelope. Returns nil when none is present.
func (w *NATSWrapper) ToEnvelope() *Envelope {
	if w == nil || w.Envelope == nil {
		return nil
	}
	env := *w.Envelope
	return &env
}

// ErrNoEnvelope is returned by DecodeEnvelope for valid JSON that holds no report.
var ErrNoEnvelope = errors.New("no envelope in payload")

// DecodeEnvelope accepts either a bare envelope or a NATSWrapper.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var w NATSWrapper
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	if env := w.ToEnvelope(); env != nil {
		return env, nil
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.Type == "" && env.Data == "" {
		return nil, ErrNoEnvelope
	}
	return &env, nil
}

var (
	lineBreakRe  = regexp.MustCompile(`\r?\n`)
	trailingEqRe = regexp.MustCompile(`=+\s*$`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean collapses line breaks to single spaces, strips trailing '='
// terminators and trims the result.
func Clean(data string) string {
	s := lineBreakRe.ReplaceAllString(data, " ")
	s = strings.TrimSpace(s)
	s = trailingEqRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormaliseStation upper-cases a station identifier and restores the
// leading K that some US feeds drop from 3-letter identifiers.
func NormaliseStation(loc string) string {
	loc = strings.ToUpper(strings.TrimSpace(loc))
	if len(loc) == 3 {
		return "K" + loc
	}
	return loc
}
