package airport

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is the SQLite airport reference database.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the airport database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS airports (
	ident TEXT PRIMARY KEY,
	type TEXT,
	name TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	elev_ft INTEGER,
	isoregion TEXT,
	country TEXT
);

CREATE INDEX IF NOT EXISTS idx_airports_lat ON airports(lat);
CREATE INDEX IF NOT EXISTS idx_airports_lon ON airports(lon);
`

// Import loads airports from an OurAirports-style CSV with a header row
// naming at least ident, name, latitude_deg and longitude_deg. Existing
// rows are replaced. Returns the number of rows written.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"ident", "name", "latitude_deg", "longitude_deg"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO airports (ident, type, name, lat, lon, elev_ft, isoregion, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	count := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read row %d: %w", count+1, err)
		}

		ident := strings.ToUpper(field(rec, "ident"))
		lat, latErr := strconv.ParseFloat(field(rec, "latitude_deg"), 64)
		lon, lonErr := strconv.ParseFloat(field(rec, "longitude_deg"), 64)
		if ident == "" || latErr != nil || lonErr != nil {
			continue
		}

		var elev sql.NullInt64
		if e, err := strconv.Atoi(field(rec, "elevation_ft")); err == nil {
			elev = sql.NullInt64{Int64: int64(e), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, ident, field(rec, "type"), field(rec, "name"),
			lat, lon, elev, field(rec, "iso_region"), field(rec, "iso_country")); err != nil {
			return count, fmt.Errorf("insert %s: %w", ident, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

// Lookup returns the airport with the given identifier.
func (s *Store) Lookup(ctx context.Context, ident string) (*Info, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ident, type, name, lat, lon, elev_ft, isoregion, country
		FROM airports WHERE ident = ?`, strings.ToUpper(strings.TrimSpace(ident)))

	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", ident, err)
	}
	return info, nil
}

// InBox returns every airport inside box, ordered by identifier.
func (s *Store) InBox(ctx context.Context, box BoundingBox) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ident, type, name, lat, lon, elev_ft, isoregion, country
		FROM airports
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY ident`, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("query airports: %w", err)
	}
	defer rows.Close()

	out := []Info{}
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan airport: %w", err)
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// InRadius returns the airports inside the bounding box of a circle of
// radiusMiles around lat/lon.
func (s *Store) InRadius(ctx context.Context, lat, lon, radiusMiles float64) ([]Info, error) {
	return s.InBox(ctx, BoundingBoxAround(lat, lon, radiusMiles))
}

// Count returns the number of stored airports.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM airports`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(sc scanner) (*Info, error) {
	var (
		info                    Info
		typ, isoregion, country sql.NullString
		elev                    sql.NullInt64
	)
	if err := sc.Scan(&info.Ident, &typ, &info.Name, &info.Lat, &info.Lon, &elev, &isoregion, &country); err != nil {
		return nil, err
	}
	info.Type = typ.String
	info.ISORegion = isoregion.String
	info.Country = country.String
	if elev.Valid {
		e := int(elev.Int64)
		info.ElevFt = &e
	}
	return &info, nil
}
