// Package main exports archived reports from ClickHouse to CSV with a
// header row: station,type,report_time,received_at,flight_category,lat,lon,raw
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/N129BZ/stratuxmap/internal/config"
	"github.com/N129BZ/stratuxmap/internal/storage"
)

var header = []string{"station", "type", "report_time", "received_at", "flight_category", "lat", "lon", "raw"}

func main() {
	configPath := flag.String("config", "configs/config.toml", "Configuration file with the ClickHouse settings")
	station := flag.String("station", "", "Only this station")
	reportType := flag.String("type", "", "Only this report type")
	since := flag.Duration("since", 24*time.Hour, "How far back to export")
	match := flag.String("match", "", "Only reports whose raw text contains this")
	limit := flag.Int("limit", 1000, "Maximum reports to export")
	output := flag.String("output", "", "Output CSV file (default: stdout)")
	showStats := flag.Bool("stats", false, "Show statistics only, don't export")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	chCfg := cfg.Storage.ClickHouse
	ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
		Host:     chCfg.Host,
		Port:     chCfg.Port,
		Database: chCfg.Database,
		User:     chCfg.User,
		Password: chCfg.Password,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ch.Close() }()

	// Show stats mode.
	if *showStats {
		counts, err := ch.CountByType(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting reports: %v\n", err)
			os.Exit(1)
		}
		showHistoryStats(os.Stdout, counts)
		return
	}

	records, err := ch.History(ctx, storage.HistoryQuery{
		Station:  strings.ToUpper(*station),
		Type:     strings.ToUpper(*reportType),
		Since:    time.Now().Add(-*since),
		RawMatch: *match,
		Limit:    *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying history: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "No reports found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d reports to CSV\n", len(records))
	}

	// Write output.
	var w io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	if err := writeCSV(w, records); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}

	if *verbose && *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d reports to %s\n", len(records), *output)
	}
}

// writeCSV writes records oldest first.
func writeCSV(w io.Writer, records []storage.Record) error {
	sorted := make([]storage.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range sorted {
		row := []string{
			r.Station,
			r.Type,
			r.ReportTime,
			r.ReceivedAt.UTC().Format(time.RFC3339),
			r.FlightCategory,
			coord(r.Lat),
			coord(r.Lon),
			r.Raw,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

// showHistoryStats displays how many reports of each type are archived.
func showHistoryStats(w io.Writer, counts map[string]uint64) {
	types := make([]string, 0, len(counts))
	var total uint64
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	fmt.Fprintln(w, "History Statistics")
	fmt.Fprintln(w, "──────────────────")
	fmt.Fprintf(w, "Total reports:       %d\n", total)
	fmt.Fprintln(w, "\nReports by Type:")
	fmt.Fprintf(w, "%-10s %10s\n", "Type", "Count")
	for _, t := range types {
		fmt.Fprintf(w, "%-10s %10d\n", t, counts[t])
	}
}
