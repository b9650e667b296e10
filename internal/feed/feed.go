// Package feed moves report envelopes from their sources through the
// parser registry and out to the configured sinks.
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/N129BZ/stratuxmap/internal/storage"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// Source produces envelopes. Run blocks, sending each envelope to out,
// until the source is exhausted or ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- *stratux.Envelope) error
}

// Sink receives every parsed report.
type Sink interface {
	Name() string
	Write(ctx context.Context, r storage.Record) error
}

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ReaderSource reads JSONL envelopes, one per line, in either the bare or
// the NATS wrapper form. Lines that hold no envelope are counted and skipped.
type ReaderSource struct {
	name    string
	r       io.Reader
	skipped int
	lines   int
}

// NewReaderSource creates a source over r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

func (s *ReaderSource) Name() string { return s.name }

// Lines returns how many non-blank lines were read.
func (s *ReaderSource) Lines() int { return s.lines }

// Skipped returns how many lines held no envelope.
func (s *ReaderSource) Skipped() int { return s.skipped }

func (s *ReaderSource) Run(ctx context.Context, out chan<- *stratux.Envelope) error {
	scanner := bufio.NewScanner(s.r)
	// Report lines are short but winds tables can run long; allow 4MB.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.lines++

		env, err := stratux.DecodeEnvelope([]byte(line))
		if err != nil {
			s.skipped++
			continue
		}

		select {
		case out <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", s.name, err)
	}
	return nil
}
