// Package main runs the stratuxmap service: it reads weather envelopes
// from a Stratux receiver or a NATS bus, parses them, fans the reports out
// to the configured stores and streams, and serves the REST API.
//
// Usage:
//
//	stratuxmap-server [-config configs/config.toml]
//
// Secrets and deployment addresses may also come from the environment:
// POSTGRES_*, CLICKHOUSE_*, NATS_URL, KAFKA_BROKERS, STRATUXMAP_API_KEYS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/api"
	"github.com/N129BZ/stratuxmap/internal/config"
	"github.com/N129BZ/stratuxmap/internal/feed"
	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/observability"
	_ "github.com/N129BZ/stratuxmap/internal/parsers" // register all parsers via init()
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/state"
	"github.com/N129BZ/stratuxmap/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "Path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("stratuxmap stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("stratuxmap stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	metrics := observability.NewMetrics()

	// Airport metadata.
	var store *airport.Store
	var lookup airport.Lookup
	if cfg.Airports.LookupURL != "" {
		lookup = airport.NewClient(cfg.Airports.LookupURL, time.Duration(cfg.Airports.TimeoutSeconds)*time.Second)
		log.Info("using remote airport lookup", logger.String("url", cfg.Airports.LookupURL))
	} else {
		var err error
		store, err = airport.OpenStore(cfg.Airports.SQLitePath)
		if err != nil {
			return fmt.Errorf("open airport database: %w", err)
		}
		defer store.Close()
		if n, err := store.Count(ctx); err == nil {
			log.Info("airport database opened", logger.String("path", cfg.Airports.SQLitePath), logger.Int("airports", n))
		}
		lookup = store
	}
	cached, err := airport.NewCached(metrics.InstrumentLookup(lookup), cfg.Airports.CacheSize)
	if err != nil {
		return fmt.Errorf("airport cache: %w", err)
	}

	reg := registry.Default()
	reg.SetAirportLookup(cached)
	reg.SetLogger(log)
	log.Info("parsers registered", logger.Any("types", reg.RegisteredTypes()))

	// Stores.
	tracker, err := state.NewTracker(cfg.Storage.State.Path)
	if err != nil {
		return fmt.Errorf("open state tracker: %w", err)
	}
	defer tracker.Close()
	tracker.OnCategoryChanged(func(c state.CategoryChange) {
		log.Info("flight category changed",
			logger.String("station", c.Station),
			logger.String("from", c.From),
			logger.String("to", c.To))
	})

	db, err := storage.Open(ctx, storageConfig(cfg))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()
	if err := db.CreateSchemas(ctx); err != nil {
		return fmt.Errorf("create schemas: %w", err)
	}

	sinks := []feed.Sink{tracker}
	if db.PG != nil {
		sinks = append(sinks, db.PG)
	}
	if db.CH != nil {
		sinks = append(sinks, db.CH)
	}
	if cfg.Kafka.Enabled {
		k := feed.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer k.Close()
		sinks = append(sinks, k)
	}

	// Sources.
	var sources []feed.Source
	backoff := time.Duration(cfg.Feed.ReconnectIntervalSecs) * time.Second
	if cfg.Feed.StratuxURL != "" {
		sources = append(sources, feed.NewWebsocketSource(feed.WebsocketConfig{
			URL:        cfg.Feed.StratuxURL,
			MinBackoff: backoff,
			MaxBackoff: time.Duration(cfg.Feed.MaxReconnectSecs) * time.Second,
		}, log))
	}
	if cfg.Feed.NATSURL != "" {
		nc, err := feed.ConnectNATS(cfg.Feed.NATSURL, "stratuxmap", backoff, log)
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
		sources = append(sources, feed.NewNATSSource(nc, cfg.Feed.NATSSubject, log))
		if cfg.Feed.NATSPublishSubject != "" {
			sinks = append(sinks, feed.NewNATSSink(nc, cfg.Feed.NATSPublishSubject))
		}
	}
	if len(sources) == 0 {
		log.Warn("no report sources configured; serving API only")
	}

	pipeline := feed.NewPipeline(reg, sources, sinks, feed.Config{
		Workers:       cfg.Parser.Workers,
		QueueSize:     cfg.Parser.QueueSize,
		FlushInterval: time.Duration(cfg.Parser.FlushIntervalSecs) * time.Second,
	}, log, metrics)

	deps := api.Deps{
		Registry: reg,
		Latest:   tracker,
		Ready:    pipeline,
		Metrics:  metrics,
		Logger:   log,
	}
	if db.PG != nil {
		deps.Latest = db.PG
	}
	if db.CH != nil {
		deps.History = db.CH
	}
	if store != nil {
		deps.Airports = store
	}
	server := api.NewServer(api.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		AuthEnabled:        cfg.Server.AuthEnabled,
		APIKeys:            cfg.Server.APIKeys,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		ReadTimeout:        time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:       time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:        time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}, deps)

	retention := time.Duration(cfg.Storage.State.RetentionHours) * time.Hour

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error {
		if len(sources) == 0 {
			<-ctx.Done()
			return nil
		}
		return pipeline.Run(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := tracker.CleanupStale(retention); n > 0 {
					log.Info("expired stale reports", logger.Int("removed", n))
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func storageConfig(cfg *config.Config) storage.Config {
	pg := cfg.Storage.Postgres
	ch := cfg.Storage.ClickHouse
	return storage.Config{
		Postgres: storage.PostgresConfig{
			Host:     pg.Host,
			Port:     pg.Port,
			Database: pg.Database,
			User:     pg.User,
			Password: pg.Password,
		},
		PostgresEnabled: pg.Enabled,
		ClickHouse: storage.ClickHouseConfig{
			Host:      ch.Host,
			Port:      ch.Port,
			Database:  ch.Database,
			User:      ch.User,
			Password:  ch.Password,
			BatchSize: ch.BatchSize,
		},
		ClickHouseEnabled: ch.Enabled,
	}
}
