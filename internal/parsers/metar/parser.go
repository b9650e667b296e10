// Package metar parses METAR and SPECI observation reports.
package metar

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/patterns"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/stratux"
	"github.com/N129BZ/stratuxmap/internal/wx"
)

// DefaultAltimeter is reported when a METAR carries no altimeter group.
const DefaultAltimeter = 29.92

// Result is a parsed METAR or SPECI.
type Result struct {
	stratux.Header

	ReportType         string            `json:"reportType"`
	Wind               wx.Wind           `json:"wind"`
	Visibility         wx.Visibility     `json:"visibility"`
	CAVOK              bool              `json:"cavok,omitempty"`
	Sky                string            `json:"sky"`
	Clouds             []wx.CloudLayer   `json:"clouds"`
	Temperature        *float64          `json:"temperature"`
	Dewpoint           *float64          `json:"dewpoint"`
	TemperatureF       *int              `json:"temperatureF"`
	DewpointF          *int              `json:"dewpointF"`
	Altimeter          float64           `json:"altimeter"`
	Remarks            string            `json:"remarks"`
	RVR                []wx.RVR          `json:"rvr,omitempty"`
	Weather            []string          `json:"weather"`
	WeatherDescription []string          `json:"weatherDescription"`
	Observed           *time.Time        `json:"observed,omitempty"`
	Airport            *airport.Info     `json:"airport"`
	Coverage           *wx.CloudLayer    `json:"coverage"`
	Ceiling            *int              `json:"ceiling"`
	FlightCategory     wx.FlightCategory `json:"flightCategory"`
}

// Parser parses METAR and SPECI reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "metar" }
func (p *Parser) Types() []string { return []string{"METAR", "SPECI"} }

// Parse decodes a METAR. Every field is extracted independently, so a
// missing or garbled group only blanks that field.
func (p *Parser) Parse(ctx context.Context, env *stratux.Envelope, lookup airport.Lookup) registry.Result {
	text := stratux.Clean(env.Data)
	result := Decode(env, text)

	if info, err := airport.Attach(ctx, lookup, result.Station); err == nil {
		result.Airport = info
		result.SetPosition(info.Lat, info.Lon)
	}
	return result
}

// Decode builds a Result from cleaned report text without touching the
// airport collaborator.
func Decode(env *stratux.Envelope, text string) *Result {
	station := stratux.NormaliseStation(env.Location)
	if station == "" {
		station = patterns.ExtractStation(text)
	}

	kind := strings.ToUpper(strings.TrimSpace(env.Type))
	if kind == "" {
		kind = "METAR"
	}

	body, remarks := patterns.SplitRemarks(text)

	result := &Result{
		Header:     stratux.NewHeader(env, kind, station, text),
		ReportType: patterns.ExtractReportModifier(body),
		Wind:       wx.Calm(),
		Visibility: wx.DefaultVisibility(),
		CAVOK:      patterns.IsCAVOK(body),
		Clouds:     patterns.ExtractClouds(body),
		Altimeter:  DefaultAltimeter,
		Remarks:    remarks,
		RVR:        patterns.ExtractRVR(body),
	}

	if w, ok := patterns.ExtractWind(body); ok {
		result.Wind = w
	}
	if v, ok := patterns.ExtractVisibility(body); ok {
		result.Visibility = v
	}
	if result.Clouds == nil {
		result.Clouds = []wx.CloudLayer{}
	}
	if len(result.Clouds) > 0 {
		result.Sky = result.Clouds[0].String()
	}

	result.Temperature, result.Dewpoint = patterns.ExtractTemperature(body)
	if t, d := patterns.ExtractTemperatureTenths(remarks); t != nil {
		result.Temperature = t
		if d != nil {
			result.Dewpoint = d
		}
	}
	result.TemperatureF = fahrenheit(result.Temperature)
	result.DewpointF = fahrenheit(result.Dewpoint)

	if alt, ok := patterns.ExtractAltimeter(body); ok {
		result.Altimeter = alt
	}

	result.Weather = patterns.ExtractWeather(body)
	if result.Weather == nil {
		result.Weather = []string{}
	}
	result.WeatherDescription = make([]string, 0, len(result.Weather))
	for _, code := range result.Weather {
		desc, _ := wx.Describe(code)
		result.WeatherDescription = append(result.WeatherDescription, desc)
	}

	_, result.Observed = patterns.ExtractObservationTime(body)

	result.Coverage = wx.PrevailingCoverage(result.Clouds)
	result.Ceiling = wx.Ceiling(result.Clouds)
	result.FlightCategory = wx.Classify(result.Ceiling, result.Visibility.Miles())

	return result
}

func fahrenheit(c *float64) *int {
	if c == nil {
		return nil
	}
	f := wx.CToF(*c)
	return &f
}

// ParseWithTrace implements registry.Traceable for detailed debugging.
func (p *Parser) ParseWithTrace(env *stratux.Envelope) *registry.TraceResult {
	text := stratux.Clean(env.Data)
	trace := &registry.TraceResult{
		ParserName: p.Name(),
		Type:       env.Type,
		Matched:    text != "",
	}

	for _, ft := range patterns.TraceFields(text) {
		trace.Extractors = append(trace.Extractors, registry.Extractor{
			Name:    ft.Name,
			Pattern: ft.Pattern,
			Matched: ft.Matched,
			Value:   ft.Value,
		})
	}

	body, _ := patterns.SplitRemarks(text)
	vis, visOK := patterns.ExtractVisibility(body)
	trace.Extractors = append(trace.Extractors, registry.Extractor{
		Name:    "visibility",
		Pattern: "[PM]?N[/N]SM | NNNN | CAVOK",
		Matched: visOK,
		Value:   visibilityString(vis, visOK),
	})

	weather := patterns.ExtractWeather(body)
	trace.Extractors = append(trace.Extractors, registry.Extractor{
		Name:    "weather",
		Pattern: "dictionary tokens",
		Matched: len(weather) > 0,
		Value:   strings.Join(weather, " "),
	})

	return trace
}

func visibilityString(v wx.Visibility, ok bool) string {
	if !ok || v.Distance == nil {
		return ""
	}
	return strconv.FormatFloat(*v.Distance, 'f', -1, 64) + " " + v.Unit
}
