package storage

import (
	"context"
	"fmt"
)

// Config holds database connection settings for both ClickHouse and
// PostgreSQL. A store is only opened when its Enabled flag is set.
type Config struct {
	ClickHouse        ClickHouseConfig
	ClickHouseEnabled bool
	Postgres          PostgresConfig
	PostgresEnabled   bool
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:      "localhost",
			Port:      9000,
			Database:  "stratuxmap",
			User:      "default",
			Password:  "",
			BatchSize: 100,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "stratuxmap",
			User:     "stratuxmap",
			Password: "stratuxmap",
		},
	}
}

// DB wraps the enabled ClickHouse and PostgreSQL connections. Either may be nil.
type DB struct {
	CH *ClickHouseDB // ClickHouse for report history.
	PG *PostgresDB   // PostgreSQL for the latest report per station.
}

// Open opens connections to the enabled stores.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	if cfg.ClickHouseEnabled {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.CH = ch
	}

	if cfg.PostgresEnabled {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.PG = pg
	}

	return d, nil
}

// Close closes both database connections.
func (d *DB) Close() error {
	var errs []error
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CreateSchemas creates the schemas in the open databases.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
