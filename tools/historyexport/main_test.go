package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/N129BZ/stratuxmap/internal/storage"
)

func TestWriteCSV(t *testing.T) {
	lat, lon := 47.449, -122.309
	at := time.Date(2024, 3, 12, 19, 0, 0, 0, time.UTC)
	records := []storage.Record{
		{Station: "KSEA", Type: "METAR", ReceivedAt: at.Add(time.Hour), FlightCategory: "IFR", Raw: "KSEA 122053Z 00000KT 1SM BR OVC004"},
		{Station: "KSEA", Type: "METAR", ReceivedAt: at, FlightCategory: "VFR", Lat: &lat, Lon: &lon, Raw: "KSEA 121953Z 24015KT 10SM FEW025, clear"},
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, records); err != nil {
		t.Fatalf("writeCSV() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(header, ",") {
		t.Errorf("header = %v", rows[0])
	}
	// Oldest first.
	if rows[1][4] != "VFR" || rows[2][4] != "IFR" {
		t.Errorf("rows not ordered by receive time: %v / %v", rows[1], rows[2])
	}
	if rows[1][5] != "47.449000" || rows[1][6] != "-122.309000" {
		t.Errorf("coords = %s,%s", rows[1][5], rows[1][6])
	}
	if rows[2][5] != "" {
		t.Errorf("missing lat should be empty, got %q", rows[2][5])
	}
	if rows[1][7] != "KSEA 121953Z 24015KT 10SM FEW025, clear" {
		t.Errorf("raw = %q", rows[1][7])
	}
}

func TestShowHistoryStats(t *testing.T) {
	var buf bytes.Buffer
	showHistoryStats(&buf, map[string]uint64{"TAF": 3, "METAR": 10})
	out := buf.String()

	if !strings.Contains(out, "Total reports:       13") {
		t.Errorf("missing total:\n%s", out)
	}
	if strings.Index(out, "METAR") > strings.Index(out, "TAF") {
		t.Errorf("types not sorted:\n%s", out)
	}
}
