// Package taf parses TAF and amended TAF forecasts.
package taf

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

// Period is one forecast sub-period: the base forecast or a change group.
type Period struct {
	Indicator      string            `json:"indicator"`
	Description    string            `json:"description,omitempty"`
	From           *time.Time        `json:"from,omitempty"`
	To             *time.Time        `json:"to,omitempty"`
	Wind           *wx.Wind          `json:"wind,omitempty"`
	Visibility     *wx.Visibility    `json:"visibility,omitempty"`
	Clouds         []wx.CloudLayer   `json:"clouds"`
	Weather        []string          `json:"weather"`
	FlightCategory wx.FlightCategory `json:"flightCategory"`
	Text           string            `json:"text"`
}

// Result is a parsed TAF or TAF.AMD.
type Result struct {
	stratux.Header

	Period             string          `json:"period"`
	ValidFrom          *time.Time      `json:"validFrom"`
	ValidTo            *time.Time      `json:"validTo"`
	Issued             *time.Time      `json:"issued,omitempty"`
	ChangeIndicators   []string        `json:"changeIndicators"`
	Wind               []wx.Wind       `json:"wind"`
	Visibility         []wx.Visibility `json:"visibility"`
	Sky                []string        `json:"sky"`
	Clouds             []wx.CloudLayer `json:"clouds"`
	Weather            []string        `json:"weather"`
	WeatherDescription []string        `json:"weatherDescription"`
	Remarks            string          `json:"remarks,omitempty"`
	Airport            *airport.Info   `json:"airport"`
	Periods            []Period        `json:"periods"`
}

// Parser parses TAF and TAF.AMD reports. Both share one grammar and differ
// only in the type tag stamped on the result.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "taf" }
func (p *Parser) Types() []string { return []string{"TAF", "TAF.AMD"} }

func (p *Parser) Parse(ctx context.Context, env *stratux.Envelope, lookup airport.Lookup) registry.Result {
	result := Decode(env, stratux.Clean(env.Data))

	if info, err := airport.Attach(ctx, lookup, result.Station); err == nil {
		result.Airport = info
		result.SetPosition(info.Lat, info.Lon)
	}
	return result
}

// Decode builds a Result from cleaned forecast text.
func Decode(env *stratux.Envelope, text string) *Result {
	kind := strings.ToUpper(strings.TrimSpace(env.Type))
	if kind == "" {
		kind = "TAF"
	}
	station := stratux.NormaliseStation(env.Location)
	if station == "" {
		station = patterns.ExtractStation(text)
	}

	body, remarks := patterns.SplitRemarks(text)

	result := &Result{
		Header:           stratux.NewHeader(env, kind, station, text),
		ChangeIndicators: nonNil(patterns.ExtractChangeIndicators(body)),
		Wind:             patterns.ExtractWinds(body),
		Visibility:       patterns.ExtractVisibilities(body),
		Clouds:           patterns.ExtractClouds(body),
		Remarks:          remarks,
	}
	if result.Wind == nil {
		result.Wind = []wx.Wind{}
	}
	if result.Visibility == nil {
		result.Visibility = []wx.Visibility{}
	}
	if result.Clouds == nil {
		result.Clouds = []wx.CloudLayer{}
	}

	// Later groups resolve forward from the issue time so a forecast that
	// crosses a month boundary stays in order.
	_, result.Issued = patterns.ExtractObservationTime(body)
	if from, to, ok := patterns.ExtractValidPeriod(body); ok {
		result.Period = from + "/" + to
		result.ValidFrom = patterns.ResolveDayHourAfter(result.Issued, from)
		result.ValidTo = patterns.ResolveDayHourAfter(result.ValidFrom, to)
	}

	result.Sky = make([]string, 0, len(result.Clouds))
	for _, l := range result.Clouds {
		result.Sky = append(result.Sky, l.String())
	}

	result.Weather = nonNil(patterns.ExtractWeather(body))
	result.WeatherDescription = describe(result.Weather)

	result.Periods = splitPeriods(body, result.ValidFrom, result.ValidTo)
	return result
}

// splitPeriods binds the groups in each change period to that period.
// A period without its own visibility inherits the previous one for the
// flight category.
func splitPeriods(body string, validFrom, validTo *time.Time) []Period {
	groups := patterns.SplitChangeGroups(body)
	periods := make([]Period, 0, len(groups))

	var lastVis *wx.Visibility
	for i, g := range groups {
		p := Period{
			Indicator: g.Indicator,
			Text:      g.Text,
			Clouds:    nonNilClouds(patterns.ExtractClouds(g.Text)),
			Weather:   nonNil(patterns.ExtractWeather(g.Text)),
		}
		if g.Indicator != "" {
			p.Description = wx.DescribeChange(g.Indicator)
		}

		switch {
		case i == 0:
			p.From, p.To = validFrom, validTo
		case strings.HasPrefix(g.Indicator, "FM") && len(g.Indicator) == 8:
			day, hour, minute := atoi(g.Indicator[2:4]), atoi(g.Indicator[4:6]), atoi(g.Indicator[6:8])
			if validFrom != nil {
				p.From = patterns.ResolveDayTimeAfter(*validFrom, day, hour, minute)
			} else {
				p.From = patterns.ResolveDayTime(day, hour, minute)
			}
			p.To = validTo
		default:
			if from, to, ok := patterns.ExtractValidPeriod(g.Text); ok {
				p.From = patterns.ResolveDayHourAfter(validFrom, from)
				p.To = patterns.ResolveDayHourAfter(p.From, to)
			}
		}

		if w, ok := patterns.ExtractWind(g.Text); ok {
			p.Wind = &w
		}
		if v, ok := patterns.ExtractVisibility(g.Text); ok {
			p.Visibility = &v
			lastVis = &v
		}

		var miles *float64
		if lastVis != nil {
			miles = lastVis.Miles()
		}
		p.FlightCategory = wx.Classify(wx.Ceiling(p.Clouds), miles)

		periods = append(periods, p)
	}
	return periods
}

func describe(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		desc, _ := wx.Describe(code)
		out = append(out, desc)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilClouds(l []wx.CloudLayer) []wx.CloudLayer {
	if l == nil {
		return []wx.CloudLayer{}
	}
	return l
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
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
	for _, g := range patterns.SplitChangeGroups(body) {
		name := "base"
		if g.Indicator != "" {
			name = g.Indicator
		}
		trace.Formats = append(trace.Formats, registry.FormatTrace{
			Name:     name,
			Matched:  true,
			Pattern:  "change group",
			Captures: map[string]string{"text": g.Text},
		})
	}
	return trace
}
