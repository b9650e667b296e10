package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	Kind           string   `json:"type"`
	Station        string   `json:"station"`
	Time           string   `json:"time"`
	Raw            string   `json:"raw"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	FlightCategory string   `json:"flightCategory,omitempty"`
	Extra          int      `json:"extra"`
}

func (r *fakeResult) Type() string      { return r.Kind }
func (r *fakeResult) StationID() string { return r.Station }

func floatPtr(f float64) *float64 { return &f }

func TestNewRecord(t *testing.T) {
	res := &fakeResult{
		Kind:           "METAR",
		Station:        "KSEA",
		Time:           "2024-03-12T18:56:00Z",
		Raw:            "KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012",
		Lat:            floatPtr(47.449),
		Lon:            floatPtr(-122.309),
		FlightCategory: "VFR",
		Extra:          7,
	}
	received := time.Date(2024, 3, 12, 18, 57, 0, 0, time.FixedZone("PDT", -7*3600))

	rec, err := NewRecord(res, received)
	require.NoError(t, err)

	assert.Equal(t, "METAR", rec.Type)
	assert.Equal(t, "KSEA", rec.Station)
	assert.Equal(t, "2024-03-12T18:56:00Z", rec.ReportTime)
	assert.Equal(t, res.Raw, rec.Raw)
	require.NotNil(t, rec.Lat)
	assert.Equal(t, 47.449, *rec.Lat)
	assert.Equal(t, "VFR", rec.FlightCategory)
	assert.Equal(t, time.UTC, rec.ReceivedAt.Location())
	assert.True(t, rec.ReceivedAt.Equal(received))
	assert.Equal(t, "KSEA/METAR", rec.Key())

	var back fakeResult
	require.NoError(t, json.Unmarshal(rec.Payload, &back))
	assert.Equal(t, 7, back.Extra)
}

func TestNewRecord_NoPosition(t *testing.T) {
	rec, err := NewRecord(&fakeResult{Kind: "PIREP", Station: "KSEA", Raw: "UA /OV SEA"}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, rec.Lat)
	assert.Nil(t, rec.Lon)
	assert.Empty(t, rec.FlightCategory)
}

func TestBuildHistoryQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildHistoryQuery(HistoryQuery{Station: "KSEA", Type: "TAF", Since: since, Limit: 25})
	assert.Contains(t, query, "WHERE station = ? AND report_type = ? AND received_at >= ?")
	assert.Contains(t, query, "ORDER BY received_at DESC LIMIT 25")
	assert.Equal(t, []any{"KSEA", "TAF", since}, args)

	query, args = buildHistoryQuery(HistoryQuery{RawMatch: "TSRA", Limit: 5000})
	assert.Contains(t, query, "WHERE raw_text LIKE ?")
	assert.Contains(t, query, "LIMIT 100")
	assert.Equal(t, []any{"%TSRA%"}, args)

	query, args = buildHistoryQuery(HistoryQuery{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestClickHouseRetainsFailedBatch(t *testing.T) {
	var stored []Record
	fail := true
	d := &ClickHouseDB{batchSize: 2}
	d.insert = func(_ context.Context, records []Record) error {
		if fail {
			return errors.New("connection refused")
		}
		stored = append(stored, records...)
		return nil
	}
	ctx := context.Background()
	rec := func(station string) Record { return Record{Type: "METAR", Station: station} }

	require.NoError(t, d.Write(ctx, rec("KSEA")))
	require.Error(t, d.Write(ctx, rec("KBFI")))
	assert.Equal(t, 2, d.Pending())

	require.Error(t, d.Flush(ctx))
	assert.Equal(t, 2, d.Pending())

	fail = false
	require.NoError(t, d.Write(ctx, rec("KPAE")))
	assert.Equal(t, 0, d.Pending())
	require.Len(t, stored, 3)
	assert.Equal(t, "KSEA", stored[0].Station)
	assert.Equal(t, "KBFI", stored[1].Station)
	assert.Equal(t, "KPAE", stored[2].Station)
}

func TestClickHouseDropsOldestBeyondLimit(t *testing.T) {
	d := &ClickHouseDB{batchSize: 1}
	d.insert = func(context.Context, []Record) error { return errors.New("connection refused") }
	ctx := context.Background()

	var err error
	for i := 0; i < maxPendingBatches+3; i++ {
		err = d.Write(ctx, Record{Type: "METAR", Station: strconv.Itoa(i)})
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropped 1 oldest records")
	assert.Equal(t, maxPendingBatches, d.Pending())
	assert.Equal(t, "3", d.pending[0].Station)
}

func TestOpen_NothingEnabled(t *testing.T) {
	db, err := Open(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, db.CH)
	assert.Nil(t, db.PG)
	assert.NoError(t, db.CreateSchemas(context.Background()))
	assert.NoError(t, db.Close())
}

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	cfg := DefaultConfig().Postgres
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pg, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil
	}

	// Ensure schema exists.
	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		return nil
	}
	return pg
}

func TestPostgresLatest(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	const station = "KTST"

	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM latest_reports WHERE station = $1", station)
	}
	cleanup()
	defer cleanup()

	older := time.Date(2024, 3, 12, 18, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	first, err := NewRecord(&fakeResult{Kind: "METAR", Station: station, Raw: "first", Lat: floatPtr(47), Lon: floatPtr(-122)}, newer)
	require.NoError(t, err)
	require.NoError(t, pg.UpsertLatest(ctx, first))

	// An older report must not replace the newer one.
	stale, err := NewRecord(&fakeResult{Kind: "METAR", Station: station, Raw: "stale"}, older)
	require.NoError(t, err)
	require.NoError(t, pg.UpsertLatest(ctx, stale))

	taf, err := NewRecord(&fakeResult{Kind: "TAF", Station: station, Raw: "taf"}, newer)
	require.NoError(t, err)
	require.NoError(t, pg.Write(ctx, taf))

	got, err := pg.GetLatestByType(ctx, station, "METAR")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Raw)
	require.NotNil(t, got.Lat)
	assert.Equal(t, 47.0, *got.Lat)

	all, err := pg.GetLatest(ctx, station)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "METAR", all[0].Type)
	assert.Equal(t, "TAF", all[1].Type)

	missing, err := pg.GetLatestByType(ctx, station, "WINDS")
	require.NoError(t, err)
	assert.Nil(t, missing)

	listed, err := pg.ListLatest(ctx, "METAR", older)
	require.NoError(t, err)
	found := false
	for _, r := range listed {
		if r.Station == station {
			found = true
			assert.Equal(t, "first", r.Raw)
		}
	}
	assert.True(t, found, "ListLatest should include %s", station)
}
