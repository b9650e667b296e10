package feed

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/N129BZ/stratuxmap/internal/storage"
)

// WriterSink writes each record as one JSON line. With pretty set the
// records are indented and separated by newlines instead.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	pretty bool
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer, pretty bool) *WriterSink {
	return &WriterSink{w: w, pretty: pretty}
}

func (s *WriterSink) Name() string { return "writer" }

func (s *WriterSink) Write(_ context.Context, r storage.Record) error {
	data, err := marshalRecord(r, s.pretty)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func marshalRecord(r storage.Record, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}
