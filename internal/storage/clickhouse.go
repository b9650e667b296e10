// Package storage persists parsed weather reports: the latest report per
// station in PostgreSQL and the full history in ClickHouse.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// BatchSize is how many records Write buffers before sending.
	BatchSize int
}

// maxPendingBatches bounds how many batches are held for retry while
// ClickHouse is unreachable. The oldest records are dropped beyond it.
const maxPendingBatches = 10

// ClickHouseDB archives every parsed report in ClickHouse.
type ClickHouseDB struct {
	conn      driver.Conn
	batchSize int
	insert    func(ctx context.Context, records []Record) error

	mu      sync.Mutex
	pending []Record
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	d := &ClickHouseDB{conn: conn, batchSize: batchSize}
	d.insert = d.InsertBatch
	return d, nil
}

// Close flushes buffered records and closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	flushErr := d.Flush(context.Background())
	if err := d.conn.Close(); err != nil {
		return err
	}
	return flushErr
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS report_history (
		station          LowCardinality(String),
		report_type      LowCardinality(String),
		report_time      String,
		raw_text         String,
		latitude         Nullable(Float64),
		longitude        Nullable(Float64),
		flight_category  LowCardinality(String),
		payload          String,
		received_at      DateTime64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(received_at)
	ORDER BY (station, report_type, received_at)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Bloom filter index for raw text search (ignore error if already exists).
	_ = d.conn.Exec(ctx, `ALTER TABLE report_history ADD INDEX IF NOT EXISTS idx_raw_text_bloom raw_text TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1`)

	return nil
}

// Name identifies the store in pipeline logs and metrics.
func (d *ClickHouseDB) Name() string { return "clickhouse" }

// Write implements feed.Sink. Records are buffered and sent in batches.
func (d *ClickHouseDB) Write(ctx context.Context, r Record) error {
	d.mu.Lock()
	d.pending = append(d.pending, r)
	if len(d.pending) < d.batchSize {
		d.mu.Unlock()
		return nil
	}
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	return d.send(ctx, batch)
}

// Flush sends any buffered records.
func (d *ClickHouseDB) Flush(ctx context.Context) error {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	return d.send(ctx, batch)
}

// Pending returns how many records are buffered and not yet stored.
func (d *ClickHouseDB) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// send inserts batch. A failed batch goes back in front of the buffer so
// the next Write or Flush retries it.
func (d *ClickHouseDB) send(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}
	err := d.insert(ctx, batch)
	if err == nil {
		return nil
	}
	if dropped := d.requeue(batch); dropped > 0 {
		return fmt.Errorf("%w (dropped %d oldest records)", err, dropped)
	}
	return err
}

func (d *ClickHouseDB) requeue(batch []Record) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(batch, d.pending...)
	dropped := 0
	if limit := d.batchSize * maxPendingBatches; len(d.pending) > limit {
		dropped = len(d.pending) - limit
		d.pending = d.pending[dropped:]
	}
	return dropped
}

// InsertBatch stores multiple records in ClickHouse efficiently.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO report_history (station, report_type, report_time, raw_text, latitude, longitude, flight_category, payload, received_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err := batch.Append(r.Station, r.Type, r.ReportTime, r.Raw, r.Lat, r.Lon, r.FlightCategory, string(r.Payload), r.ReceivedAt)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// HistoryQuery filters report history.
type HistoryQuery struct {
	Station  string
	Type     string
	Since    time.Time
	RawMatch string // LIKE match on raw_text.
	Limit    int
}

// History returns archived reports, newest first.
func (d *ClickHouseDB) History(ctx context.Context, q HistoryQuery) ([]Record, error) {
	query, args := buildHistoryQuery(q)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var payload string
		err := rows.Scan(&r.Station, &r.Type, &r.ReportTime, &r.Raw, &r.Lat, &r.Lon, &r.FlightCategory, &payload, &r.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Payload = []byte(payload)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

func buildHistoryQuery(q HistoryQuery) (string, []any) {
	var conditions []string
	var args []any

	if q.Station != "" {
		conditions = append(conditions, "station = ?")
		args = append(args, q.Station)
	}
	if q.Type != "" {
		conditions = append(conditions, "report_type = ?")
		args = append(args, q.Type)
	}
	if !q.Since.IsZero() {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, q.Since)
	}
	if q.RawMatch != "" {
		conditions = append(conditions, "raw_text LIKE ?")
		args = append(args, "%"+q.RawMatch+"%")
	}

	query := `SELECT station, report_type, report_time, raw_text, latitude, longitude, flight_category, payload, received_at FROM report_history`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := 100
	if q.Limit > 0 && q.Limit <= 1000 {
		limit = q.Limit
	}
	query += fmt.Sprintf(" ORDER BY received_at DESC LIMIT %d", limit)
	return query, args
}

// CountByType returns archived report counts grouped by type.
func (d *ClickHouseDB) CountByType(ctx context.Context) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	rows, err := d.conn.Query(ctx, "SELECT report_type, count() FROM report_history GROUP BY report_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count uint64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan count by type: %w", err)
		}
		counts[typ] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count by type: %w", err)
	}
	return counts, nil
}
