// Package state tracks the latest report of each type per station, in
// memory with best-effort SQLite persistence across restarts.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/N129BZ/stratuxmap/internal/storage"
)

// Fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// CategoryChange describes a station moving between flight categories.
type CategoryChange struct {
	Station string
	Type    string // Report type that carried the new category
	From    string
	To      string
	At      time.Time
}

// Tracker holds the latest report per station and type.
type Tracker struct {
	db    *sql.DB
	mu    sync.RWMutex
	clock clockwork.Clock

	// Keyed by storage.Record.Key().
	reports map[string]*storage.Record

	// Last known flight category per station.
	categories map[string]string

	onCategoryChanged func(CategoryChange)
	onStationNew      func(station string)
}

// NewTracker creates a tracker persisting to the SQLite database at dbPath.
// If dbPath is empty or ":memory:", uses an in-memory database.
func NewTracker(dbPath string) (*Tracker, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}

	t := &Tracker{
		db:         db,
		clock:      clockwork.NewRealClock(),
		reports:    make(map[string]*storage.Record),
		categories: make(map[string]string),
	}

	if err := t.loadReports(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return t, nil
}

// SetClock replaces the clock used for expiry. Tests only.
func (t *Tracker) SetClock(c clockwork.Clock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = c
}

// Close closes the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// OnCategoryChanged sets a callback for when a station's flight category changes.
func (t *Tracker) OnCategoryChanged(fn func(CategoryChange)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCategoryChanged = fn
}

// OnStationNew sets a callback for when a station reports for the first time.
func (t *Tracker) OnStationNew(fn func(station string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStationNew = fn
}

// loadReports loads persisted reports into memory.
func (t *Tracker) loadReports() error {
	rows, err := t.db.Query(`
		SELECT station, report_type, report_time, raw, lat, lon,
		       flight_category, received_at, payload
		FROM latest_report
		ORDER BY received_at
	`)
	if err != nil {
		return fmt.Errorf("load reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r storage.Record
		var reportTime, category sql.NullString
		var lat, lon sql.NullFloat64
		var receivedAt, payload string

		if err := rows.Scan(&r.Station, &r.Type, &reportTime, &r.Raw, &lat, &lon,
			&category, &receivedAt, &payload); err != nil {
			continue
		}

		r.ReportTime = reportTime.String
		r.FlightCategory = category.String
		if lat.Valid && lon.Valid {
			r.Lat = &lat.Float64
			r.Lon = &lon.Float64
		}
		r.ReceivedAt, _ = time.Parse(timeLayout, receivedAt)
		r.Payload = json.RawMessage(payload)

		t.reports[r.Key()] = &r
		if r.FlightCategory != "" {
			t.categories[r.Station] = r.FlightCategory
		}
	}

	return rows.Err()
}

func (t *Tracker) Name() string { return "state" }

// Write records r. It implements the pipeline's sink interface.
func (t *Tracker) Write(_ context.Context, r storage.Record) error {
	_, err := t.Update(r)
	return err
}

// Update records r as the latest report of its type for its station.
// A record received before the one already held is ignored. Returns true
// when r was stored.
func (t *Tracker) Update(r storage.Record) (bool, error) {
	if r.Station == "" || r.Type == "" {
		return false, nil
	}

	t.mu.Lock()

	key := r.Key()
	if cur, ok := t.reports[key]; ok && cur.ReceivedAt.After(r.ReceivedAt) {
		t.mu.Unlock()
		return false, nil
	}

	isNewStation := !t.hasStation(r.Station)
	stored := r
	t.reports[key] = &stored

	var change *CategoryChange
	if r.FlightCategory != "" {
		prev := t.categories[r.Station]
		if prev != "" && prev != r.FlightCategory {
			change = &CategoryChange{
				Station: r.Station,
				Type:    r.Type,
				From:    prev,
				To:      r.FlightCategory,
				At:      r.ReceivedAt,
			}
		}
		t.categories[r.Station] = r.FlightCategory
	}

	onNew, onChange := t.onStationNew, t.onCategoryChanged
	err := t.saveReport(&stored)
	t.mu.Unlock()

	// Callbacks run outside the lock so they may read the tracker.
	if isNewStation && onNew != nil {
		onNew(r.Station)
	}
	if change != nil && onChange != nil {
		onChange(*change)
	}

	return true, err
}

// hasStation reports whether any report is held for station. Callers hold mu.
func (t *Tracker) hasStation(station string) bool {
	prefix := station + "/"
	for key := range t.reports {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// saveReport persists a report to the database.
func (t *Tracker) saveReport(r *storage.Record) error {
	_, err := t.db.Exec(`
		INSERT INTO latest_report (station, report_type, report_time, raw, lat, lon,
		                           flight_category, received_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station, report_type) DO UPDATE SET
			report_time = excluded.report_time,
			raw = excluded.raw,
			lat = excluded.lat,
			lon = excluded.lon,
			flight_category = excluded.flight_category,
			received_at = excluded.received_at,
			payload = excluded.payload
	`,
		r.Station, r.Type, r.ReportTime, r.Raw, r.Lat, r.Lon,
		r.FlightCategory, r.ReceivedAt.UTC().Format(timeLayout), string(r.Payload),
	)
	if err != nil {
		return fmt.Errorf("persist %s: %w", r.Key(), err)
	}
	return nil
}

// GetLatest returns the latest report of each type for station, ordered by type.
func (t *Tracker) GetLatest(_ context.Context, station string) ([]storage.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prefix := strings.ToUpper(station) + "/"
	var result []storage.Record
	for key, r := range t.reports {
		if strings.HasPrefix(key, prefix) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

// Category returns the last known flight category for station.
func (t *Tracker) Category(station string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.categories[strings.ToUpper(station)]
}

// GetActive returns reports received within the given duration, newest first.
func (t *Tracker) GetActive(within time.Duration) []storage.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.clock.Now().Add(-within)
	result := make([]storage.Record, 0)
	for _, r := range t.reports {
		if r.ReceivedAt.After(cutoff) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ReceivedAt.After(result[j].ReceivedAt) })
	return result
}

// CleanupStale removes reports received longer ago than olderThan.
func (t *Tracker) CleanupStale(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-olderThan)
	removed := 0

	for key, r := range t.reports {
		if r.ReceivedAt.Before(cutoff) {
			delete(t.reports, key)
			removed++
		}
	}
	for station := range t.categories {
		if !t.hasStation(station) {
			delete(t.categories, station)
		}
	}

	// Also cleanup database.
	_, _ = t.db.Exec("DELETE FROM latest_report WHERE received_at < ?", cutoff.UTC().Format(timeLayout))

	return removed
}

// Stats returns statistics about tracked reports.
type Stats struct {
	Reports  int
	Stations int
	ByType   map[string]int
}

func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{Reports: len(t.reports), ByType: make(map[string]int)}
	stations := make(map[string]bool)
	for _, r := range t.reports {
		stats.ByType[r.Type]++
		stations[r.Station] = true
	}
	stats.Stations = len(stations)
	return stats
}
