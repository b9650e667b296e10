package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB keeps the latest report of each type for every station.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS latest_reports (
		station          TEXT NOT NULL,
		report_type      TEXT NOT NULL,
		report_time      TEXT,
		raw_text         TEXT NOT NULL,
		latitude         DOUBLE PRECISION,
		longitude        DOUBLE PRECISION,
		flight_category  TEXT,
		payload          JSONB NOT NULL,
		received_at      TIMESTAMPTZ NOT NULL,
		update_count     INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (station, report_type)
	);

	CREATE INDEX IF NOT EXISTS idx_latest_reports_received ON latest_reports(received_at);
	CREATE INDEX IF NOT EXISTS idx_latest_reports_position ON latest_reports(latitude, longitude);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Name identifies the store in pipeline logs and metrics.
func (d *PostgresDB) Name() string { return "postgres" }

// Write implements feed.Sink by upserting the latest report.
func (d *PostgresDB) Write(ctx context.Context, r Record) error {
	return d.UpsertLatest(ctx, r)
}

// UpsertLatest inserts or replaces the latest report for the record's
// station and type. An older report never replaces a newer one.
func (d *PostgresDB) UpsertLatest(ctx context.Context, r Record) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO latest_reports (station, report_type, report_time, raw_text, latitude, longitude, flight_category, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (station, report_type) DO UPDATE SET
			report_time = EXCLUDED.report_time,
			raw_text = EXCLUDED.raw_text,
			latitude = COALESCE(EXCLUDED.latitude, latest_reports.latitude),
			longitude = COALESCE(EXCLUDED.longitude, latest_reports.longitude),
			flight_category = EXCLUDED.flight_category,
			payload = EXCLUDED.payload,
			received_at = EXCLUDED.received_at,
			update_count = latest_reports.update_count + 1
		WHERE latest_reports.received_at <= EXCLUDED.received_at
	`, r.Station, r.Type, r.ReportTime, r.Raw, r.Lat, r.Lon, r.FlightCategory, []byte(r.Payload), r.ReceivedAt)
	if err != nil {
		return fmt.Errorf("upsert latest report: %w", err)
	}
	return nil
}

const latestColumns = `station, report_type, report_time, raw_text, latitude, longitude, flight_category, payload, received_at`

// GetLatest returns the latest report of every type for station, ordered
// by type.
func (d *PostgresDB) GetLatest(ctx context.Context, station string) ([]Record, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+latestColumns+`
		FROM latest_reports WHERE station = $1 ORDER BY report_type
	`, station)
	if err != nil {
		return nil, fmt.Errorf("query latest reports: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest report: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest reports: %w", err)
	}
	return records, nil
}

// ListLatest returns the latest report of reportType for every station
// received at or after since, ordered by station.
func (d *PostgresDB) ListLatest(ctx context.Context, reportType string, since time.Time) ([]Record, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+latestColumns+`
		FROM latest_reports WHERE report_type = $1 AND received_at >= $2
		ORDER BY station
	`, reportType, since)
	if err != nil {
		return nil, fmt.Errorf("list latest reports: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest report: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLatestByType retrieves the latest report of one type for station.
// Returns nil, nil when there is none.
func (d *PostgresDB) GetLatestByType(ctx context.Context, station, reportType string) (*Record, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+latestColumns+`
		FROM latest_reports WHERE station = $1 AND report_type = $2
	`, station, reportType)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountByType returns the number of stations holding a report of each type.
func (d *PostgresDB) CountByType(ctx context.Context) (map[string]int64, error) {
	rows, err := d.pool.Query(ctx, `SELECT report_type, count(*) FROM latest_reports GROUP BY report_type`)
	if err != nil {
		return nil, fmt.Errorf("count latest reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count by type: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// DeleteOlderThan removes reports received before cutoff and returns how
// many were removed.
func (d *PostgresDB) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM latest_reports WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var reportTime, category *string
	var payload []byte
	err := row.Scan(&r.Station, &r.Type, &reportTime, &r.Raw, &r.Lat, &r.Lon, &category, &payload, &r.ReceivedAt)
	if err != nil {
		return Record{}, err
	}
	if reportTime != nil {
		r.ReportTime = *reportTime
	}
	if category != nil {
		r.FlightCategory = *category
	}
	r.Payload = payload
	return r, nil
}
