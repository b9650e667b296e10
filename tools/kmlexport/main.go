// Package main exports the latest flight category of every reporting
// station to KML. KML (Keyhole Markup Language) files can be viewed in
// Google Earth, Google Maps, and other mapping applications.
package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/N129BZ/stratuxmap/internal/config"
	"github.com/N129BZ/stratuxmap/internal/state"
	"github.com/N129BZ/stratuxmap/internal/storage"
)

// KML structures for XML marshalling.
// These follow the KML 2.2 specification: https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

// Document contains the document metadata and features.
type Document struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []Style     `xml:"Style,omitempty"`
	Placemarks  []Placemark `xml:"Placemark"`
}

// Style defines the visual appearance of features.
type Style struct {
	ID        string    `xml:"id,attr"`
	IconStyle IconStyle `xml:"IconStyle"`
}

// IconStyle defines how icons are displayed.
type IconStyle struct {
	Color string  `xml:"color,omitempty"` // aabbggrr
	Scale float64 `xml:"scale,omitempty"`
	Icon  Icon    `xml:"Icon"`
}

// Icon specifies the icon image.
type Icon struct {
	Href string `xml:"href"`
}

// Placemark represents a geographic feature with geometry and metadata.
type Placemark struct {
	Name         string        `xml:"name"`
	Description  string        `xml:"description,omitempty"`
	StyleURL     string        `xml:"styleUrl,omitempty"`
	Point        Point         `xml:"Point"`
	ExtendedData *ExtendedData `xml:"ExtendedData,omitempty"`
}

// Point represents a geographic location.
type Point struct {
	Coordinates string `xml:"coordinates"` // Format: lon,lat,altitude
}

// ExtendedData holds custom data associated with a placemark.
type ExtendedData struct {
	Data []Data `xml:"Data"`
}

// Data represents a single piece of extended data.
type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// categoryColors are the usual sectional-chart colours, in KML aabbggrr order.
var categoryColors = map[string]string{
	"VFR":  "ff00c000",
	"MVFR": "ffff4000",
	"IFR":  "ff0000ff",
	"LIFR": "ffff00ff",
}

const iconHref = "http://maps.google.com/mapfiles/kml/shapes/placemark_circle.png"

func main() {
	configPath := flag.String("config", "configs/config.toml", "Configuration file with the store settings")
	source := flag.String("source", "state", "Where to read reports from: state or postgres")
	reportType := flag.String("type", "METAR", "Report type to export")
	maxAge := flag.Duration("max-age", 3*time.Hour, "Skip reports received longer ago than this")
	output := flag.String("output", "", "Output KML file (default: stdout)")
	showStats := flag.Bool("stats", false, "Show statistics only, don't export")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	records, err := loadRecords(ctx, cfg, *source, strings.ToUpper(*reportType), *maxAge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading reports: %v\n", err)
		os.Exit(1)
	}

	if *showStats {
		showCategoryStats(records)
		return
	}

	kml := generateKML(records, time.Now())
	if len(kml.Document.Placemarks) == 0 {
		fmt.Fprintf(os.Stderr, "No positioned reports found matching criteria\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d stations to KML\n", len(kml.Document.Placemarks))
	}

	// Marshal to XML.
	xmlData, err := xml.MarshalIndent(kml, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating KML: %v\n", err)
		os.Exit(1)
	}

	// Add XML header.
	xmlOutput := xml.Header + string(xmlData)

	// Write output.
	if *output != "" {
		if err := os.WriteFile(*output, []byte(xmlOutput), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
		}
	} else {
		fmt.Println(xmlOutput)
	}
}

func loadRecords(ctx context.Context, cfg *config.Config, source, reportType string, maxAge time.Duration) ([]storage.Record, error) {
	switch source {
	case "state":
		tracker, err := state.NewTracker(cfg.Storage.State.Path)
		if err != nil {
			return nil, err
		}
		defer tracker.Close()

		var out []storage.Record
		for _, r := range tracker.GetActive(maxAge) {
			if r.Type == reportType {
				out = append(out, r)
			}
		}
		return out, nil

	case "postgres":
		pgCfg := cfg.Storage.Postgres
		pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
			Host:     pgCfg.Host,
			Port:     pgCfg.Port,
			Database: pgCfg.Database,
			User:     pgCfg.User,
			Password: pgCfg.Password,
		})
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		return pg.ListLatest(ctx, reportType, time.Now().Add(-maxAge))
	}
	return nil, fmt.Errorf("unknown source %q (use state or postgres)", source)
}

// generateKML creates a KML document with one placemark per positioned report.
func generateKML(records []storage.Record, now time.Time) KML {
	placemarks := make([]Placemark, 0, len(records))
	for _, r := range records {
		if r.Lat == nil || r.Lon == nil {
			continue
		}

		// KML coordinates are in the format: longitude,latitude,altitude
		coords := fmt.Sprintf("%.6f,%.6f,0", *r.Lon, *r.Lat)

		category := r.FlightCategory
		style := "#unknown"
		if _, ok := categoryColors[category]; ok {
			style = "#" + strings.ToLower(category)
		}

		placemarks = append(placemarks, Placemark{
			Name:        r.Station,
			Description: r.Raw,
			StyleURL:    style,
			Point: Point{
				Coordinates: coords,
			},
			ExtendedData: &ExtendedData{
				Data: []Data{
					{Name: "type", Value: r.Type},
					{Name: "flight_category", Value: category},
					{Name: "report_time", Value: r.ReportTime},
					{Name: "received_at", Value: r.ReceivedAt.Format(time.RFC3339)},
				},
			},
		})
	}
	sort.Slice(placemarks, func(i, j int) bool { return placemarks[i].Name < placemarks[j].Name })

	styles := []Style{{
		ID:        "unknown",
		IconStyle: IconStyle{Color: "ffffffff", Scale: 0.8, Icon: Icon{Href: iconHref}},
	}}
	for _, c := range []string{"VFR", "MVFR", "IFR", "LIFR"} {
		styles = append(styles, Style{
			ID:        strings.ToLower(c),
			IconStyle: IconStyle{Color: categoryColors[c], Scale: 0.8, Icon: Icon{Href: iconHref}},
		})
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name:        "Station Flight Categories",
			Description: fmt.Sprintf("Latest flight category per reporting station. Generated %s.", now.UTC().Format("2006-01-02 15:04:05 UTC")),
			Styles:      styles,
			Placemarks:  placemarks,
		},
	}
}

// showCategoryStats prints how many stations sit in each flight category.
func showCategoryStats(records []storage.Record) {
	counts := make(map[string]int)
	positioned := 0
	for _, r := range records {
		c := r.FlightCategory
		if c == "" {
			c = "unknown"
		}
		counts[c]++
		if r.Lat != nil && r.Lon != nil {
			positioned++
		}
	}

	fmt.Println("Flight Category Statistics")
	fmt.Println("──────────────────────────")
	fmt.Printf("Total stations:      %d\n", len(records))
	fmt.Printf("With position:       %d\n", positioned)

	fmt.Println("\nCategory Distribution:")
	fmt.Printf("%-10s %10s\n", "Category", "Count")
	for _, c := range []string{"VFR", "MVFR", "IFR", "LIFR", "unknown"} {
		if counts[c] > 0 {
			fmt.Printf("%-10s %10d\n", c, counts[c])
		}
	}
}
