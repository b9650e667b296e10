package registry

import "github.com/N129BZ/stratuxmap/internal/stratux"

// TraceResult contains trace information from a parser's attempt to parse a report.
type TraceResult struct {
	ParserName string        // Name of the parser.
	Type       string        // Canonical type tag.
	Formats    []FormatTrace // Format/pattern match attempts (for grok-style parsers).
	Extractors []Extractor   // Field extractor results.
	Matched    bool          // Whether the parser produced a result.
}

// FormatTrace contains debug information about a format/pattern match attempt.
type FormatTrace struct {
	Name     string            // Format or pattern name.
	Matched  bool              // Whether the pattern matched.
	Pattern  string            // The regex pattern used.
	Captures map[string]string // Captured groups (if matched).
}

// Extractor contains debug information about a field extractor.
type Extractor struct {
	Name    string // Extractor name (e.g., "wind", "altimeter").
	Pattern string // The regex pattern used.
	Matched bool   // Whether the extractor matched.
	Value   string // Extracted value (if matched).
}

// Traceable is implemented by parsers that support debug tracing.
type Traceable interface {
	// ParseWithTrace runs the parser's patterns against the report text
	// and records each attempt.
	ParseWithTrace(env *stratux.Envelope) *TraceResult
}

// Trace runs the tracing parser for env's type. Returns nil when env has
// no payload or its parser does not support tracing.
func (r *Registry) Trace(env *stratux.Envelope) *TraceResult {
	if !env.HasPayload() {
		return nil
	}
	p, ok := r.ParserFor(env.Type)
	if !ok {
		return nil
	}
	tp, ok := p.(Traceable)
	if !ok {
		return nil
	}
	return tp.ParseWithTrace(env)
}
