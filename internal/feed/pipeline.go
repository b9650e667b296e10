package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/observability"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/storage"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// Config tunes the pipeline's worker pool.
type Config struct {
	Workers       int           // Parse workers
	QueueSize     int           // Envelopes buffered between sources and workers
	FlushInterval time.Duration // How often buffering sinks are flushed; 0 disables
}

// Pipeline fans envelopes from every source into a worker pool that
// parses them and writes each report to every sink.
type Pipeline struct {
	reg     *registry.Registry
	sources []Source
	sinks   []Sink
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock

	ready  atomic.Bool
	parsed atomic.Int64
}

// NewPipeline creates a pipeline. metrics must not be nil.
func NewPipeline(reg *registry.Registry, sources []Source, sinks []Sink, cfg Config, log *logger.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		reg:     reg,
		sources: sources,
		sinks:   sinks,
		cfg:     cfg,
		log:     log.Named("pipeline"),
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used for receive times. Tests only.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	p.clock = c
}

// CheckReadiness returns nil once at least one report has been parsed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not parsed any reports yet")
	}
	return nil
}

// Parsed returns how many reports have been parsed.
func (p *Pipeline) Parsed() int64 {
	return p.parsed.Load()
}

// Run reads every source until all of them finish or ctx is cancelled,
// then drains the queue and flushes buffering sinks.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("pipeline started",
		logger.Int("workers", p.cfg.Workers),
		logger.Int("sources", len(p.sources)),
		logger.Int("sinks", len(p.sinks)))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	queue := make(chan *stratux.Envelope, p.cfg.QueueSize)

	var producers sync.WaitGroup
	for _, src := range p.sources {
		producers.Add(1)
		go func(src Source) {
			defer producers.Done()
			if err := src.Run(ctx, queue); err != nil && ctx.Err() == nil {
				p.log.Error("source stopped", logger.String("source", src.Name()), logger.Error(err))
				return
			}
			p.log.Info("source finished", logger.String("source", src.Name()))
		}(src)
	}
	go func() {
		producers.Wait()
		close(queue)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for env := range queue {
				p.Process(ctx, env)
			}
		}()
	}

	flushDone := make(chan struct{})
	stopFlush := make(chan struct{})
	go func() {
		defer close(flushDone)
		p.flushLoop(ctx, stopFlush)
	}()

	workers.Wait()
	close(stopFlush)
	<-flushDone

	// The run context may already be cancelled; give the final flush its own.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	p.flush(flushCtx)

	p.log.Info("pipeline stopped", logger.Int64("parsed", p.parsed.Load()))
	return nil
}

// Process parses one envelope and writes the report to every sink. Sink
// failures are logged and counted; they never stop the other sinks.
// Returns false when the envelope produced no report.
func (p *Pipeline) Process(ctx context.Context, env *stratux.Envelope) bool {
	p.metrics.EnvelopesReceived.Inc()

	if !env.HasPayload() {
		p.metrics.ReportsDropped.WithLabelValues("empty").Inc()
		return false
	}

	start := time.Now()
	res := p.reg.Dispatch(ctx, env)
	if res == nil {
		p.metrics.ReportsDropped.WithLabelValues("unknown_type").Inc()
		p.log.Debug("no parser for envelope", logger.String("type", env.Type))
		return false
	}
	p.metrics.ParseDuration.WithLabelValues(res.Type()).Observe(time.Since(start).Seconds())

	rec, err := storage.NewRecord(res, p.clock.Now())
	if err != nil {
		p.metrics.ReportsDropped.WithLabelValues("encode_error").Inc()
		p.log.Warn("encode report failed", logger.String("type", res.Type()), logger.Error(err))
		return false
	}

	p.metrics.ReportsParsed.WithLabelValues(rec.Type).Inc()
	p.parsed.Add(1)
	p.ready.Store(true)

	for _, sink := range p.sinks {
		if err := sink.Write(ctx, rec); err != nil {
			p.metrics.SinkWrites.WithLabelValues(sink.Name(), "error").Inc()
			p.log.Warn("sink write failed",
				logger.String("sink", sink.Name()),
				logger.String("key", rec.Key()),
				logger.Error(err))
			continue
		}
		p.metrics.SinkWrites.WithLabelValues(sink.Name(), "success").Inc()
	}
	return true
}

func (p *Pipeline) flushLoop(ctx context.Context, stop <-chan struct{}) {
	if p.cfg.FlushInterval <= 0 {
		return
	}
	ticker := p.clock.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.Chan():
			p.flush(ctx)
		}
	}
}

func (p *Pipeline) flush(ctx context.Context) {
	for _, sink := range p.sinks {
		f, ok := sink.(Flusher)
		if !ok {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			p.log.Warn("sink flush failed", logger.String("sink", sink.Name()), logger.Error(err))
		}
	}
}
