package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/N129BZ/stratuxmap/internal/observability"
	_ "github.com/N129BZ/stratuxmap/internal/parsers"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/storage"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

const jsonl = `{"Type":"METAR","Location":"KSEA","Time":"2024-03-12T18:53:00Z","Data":"KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012"}

not json
{"source":{"name":"stratux-1"},"envelope":{"Type":"TAF","Location":"KSEA","Data":"TAF KSEA 121130Z 1212/1318 24010KT P6SM BKN040="}}
{"Type":"NOTAM","Location":"KSEA","Data":"!SEA 12/001"}
{"unrelated":true}
`

type memSink struct {
	mu      sync.Mutex
	name    string
	err     error
	records []storage.Record
	flushes int
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Write(_ context.Context, r storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *memSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.records {
		out = append(out, r.Type)
	}
	return out
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader(jsonl))
	out := make(chan *stratux.Envelope, 10)

	require.NoError(t, src.Run(context.Background(), out))
	close(out)

	var got []*stratux.Envelope
	for env := range out {
		got = append(got, env)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "METAR", got[0].Type)
	assert.Equal(t, "TAF", got[1].Type)
	assert.Equal(t, "NOTAM", got[2].Type)
	assert.Equal(t, 5, src.Lines())
	assert.Equal(t, 2, src.Skipped())
}

func TestReaderSource_Cancelled(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader(jsonl))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.Run(ctx, make(chan *stratux.Envelope))
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestPipeline(t *testing.T, sources []Source, sinks []Sink) (*Pipeline, *observability.Metrics) {
	t.Helper()
	m, _ := observability.NewMetricsForTesting()
	p := NewPipeline(registry.Default(), sources, sinks, Config{Workers: 2, QueueSize: 4}, nil, m)
	p.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)))
	return p, m
}

func TestPipeline_Run(t *testing.T) {
	good := &memSink{name: "good"}
	bad := &memSink{name: "bad", err: errors.New("down")}
	p, _ := newTestPipeline(t, []Source{NewReaderSource("test", strings.NewReader(jsonl))}, []Sink{bad, good})

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))

	assert.ElementsMatch(t, []string{"METAR", "TAF"}, good.types())
	assert.Empty(t, bad.types())
	assert.Equal(t, int64(2), p.Parsed())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1, good.flushes)
}

func TestPipeline_Process(t *testing.T) {
	sink := &memSink{name: "mem"}
	p, _ := newTestPipeline(t, nil, []Sink{sink})
	ctx := context.Background()

	ok := p.Process(ctx, &stratux.Envelope{
		Type:     "METAR",
		Location: "KSEA",
		Time:     "2024-03-12T18:53:00Z",
		Data:     "KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012",
	})
	require.True(t, ok)
	assert.False(t, p.Process(ctx, &stratux.Envelope{Type: "METAR"}))
	assert.False(t, p.Process(ctx, &stratux.Envelope{Type: "NOTAM", Data: "!SEA"}))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "METAR", rec.Type)
	assert.Equal(t, "KSEA", rec.Station)
	assert.Equal(t, "VFR", rec.FlightCategory)
	assert.Equal(t, "2024-03-12T18:53:00Z", rec.ReportTime)
	assert.Equal(t, time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC), rec.ReceivedAt)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, "METAR", payload["type"])
}

func TestPipeline_StopsOnCancel(t *testing.T) {
	block := sourceFunc(func(ctx context.Context, _ chan<- *stratux.Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p, _ := newTestPipeline(t, []Source{block}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

type sourceFunc func(ctx context.Context, out chan<- *stratux.Envelope) error

func (f sourceFunc) Name() string { return "func" }

func (f sourceFunc) Run(ctx context.Context, out chan<- *stratux.Envelope) error { return f(ctx, out) }

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, false)
	rec := storage.Record{Type: "METAR", Station: "KSEA", Payload: json.RawMessage(`{"type":"METAR"}`)}

	require.NoError(t, sink.Write(context.Background(), rec))
	require.NoError(t, sink.Write(context.Background(), rec))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got storage.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "KSEA", got.Station)

	buf.Reset()
	require.NoError(t, NewWriterSink(&buf, true).Write(context.Background(), rec))
	assert.Contains(t, buf.String(), "\n  \"type\": \"METAR\"")
}

type fakePublisher struct {
	subjects []string
	data     [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.data = append(f.data, data)
	return nil
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, "stratux.parsed.")

	require.NoError(t, sink.Write(context.Background(), storage.Record{Type: "TAF.AMD", Station: "KSEA"}))
	require.NoError(t, sink.Write(context.Background(), storage.Record{Type: "WINDS"}))

	assert.Equal(t, []string{"stratux.parsed.TAF_AMD.KSEA", "stratux.parsed.WINDS.unknown"}, pub.subjects)

	var got storage.Record
	require.NoError(t, json.Unmarshal(pub.data[0], &got))
	assert.Equal(t, "TAF.AMD", got.Type)
}

func TestRecordToMessage(t *testing.T) {
	at := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	msg, err := recordToMessage(storage.Record{Type: "METAR", Station: "KSEA", ReceivedAt: at})
	require.NoError(t, err)

	assert.Equal(t, "KSEA", string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "report_type", msg.Headers[0].Key)
	assert.Equal(t, "METAR", string(msg.Headers[0].Value))
	assert.Equal(t, "2024-03-12T19:00:00Z", string(msg.Headers[1].Value))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 30*time.Second))
}

func TestNewWebsocketSource_Defaults(t *testing.T) {
	s := NewWebsocketSource(WebsocketConfig{URL: "ws://192.168.10.1/weather", MaxBackoff: time.Millisecond}, nil)
	assert.Equal(t, time.Second, s.cfg.MinBackoff)
	assert.Equal(t, time.Second, s.cfg.MaxBackoff)
	assert.Equal(t, "stratux-websocket", s.Name())
}
