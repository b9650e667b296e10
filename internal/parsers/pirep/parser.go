// Package pirep parses pilot reports (UA and UUA).
package pirep

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/patterns"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/stratux"
	"github.com/N129BZ/stratuxmap/internal/wx"
)

// Grok compiler singleton.
var (
	grokCompiler *patterns.Compiler
	grokOnce     sync.Once
	grokErr      error
)

func getCompiler() (*patterns.Compiler, error) {
	grokOnce.Do(func() {
		grokCompiler = patterns.NewCompiler(Formats, nil)
		grokErr = grokCompiler.Compile()
	})
	return grokCompiler, grokErr
}

// Result is a parsed pilot report. Absent text fields are empty strings.
type Result struct {
	stratux.Header

	Urgent                bool          `json:"urgent"`
	Location              string        `json:"location"`
	PirepTime             string        `json:"pirepTime"`
	FlightLevel           string        `json:"flightLevel"`
	Aircraft              string        `json:"aircraft"`
	Sky                   string        `json:"sky"`
	Turbulence            string        `json:"turbulence"`
	TurbulenceDescription string        `json:"turbulenceDescription,omitempty"`
	Icing                 string        `json:"icing"`
	IcingDescription      string        `json:"icingDescription,omitempty"`
	Temperature           *int          `json:"temperature"`
	Wind                  *wx.Wind      `json:"wind,omitempty"`
	Remarks               string        `json:"remarks"`
	Airport               *airport.Info `json:"airport"`
}

// Parser parses PIREP reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "pirep" }
func (p *Parser) Types() []string { return []string{"PIREP"} }

func (p *Parser) Parse(ctx context.Context, env *stratux.Envelope, lookup airport.Lookup) registry.Result {
	compiler, err := getCompiler()
	if err != nil {
		return nil
	}

	text := stratux.Clean(env.Data)
	station := stratux.NormaliseStation(env.Location)
	result := &Result{Header: stratux.NewHeader(env, "PIREP", station, text)}

	for _, m := range compiler.ParseAll(text) {
		switch m.FormatName {
		case "location":
			result.Location = m.GetCapture("location", "")
		case "time":
			result.PirepTime = m.GetCapture("time", "")
		case "flight_level":
			result.FlightLevel = m.GetCapture("fl", "")
		case "aircraft":
			result.Aircraft = m.GetCapture("aircraft", "")
		case "sky":
			result.Sky = skyString(m.GetCapture("cover", ""), m.GetCapture("alt", ""))
		case "turbulence":
			result.Turbulence = strings.TrimSpace(m.GetCapture("turbulence", ""))
			result.TurbulenceDescription = wx.DescribeTurbulence(result.Turbulence)
		case "icing":
			result.Icing = strings.TrimSpace(m.GetCapture("icing", ""))
			result.IcingDescription = wx.DescribeIcing(result.Icing)
		case "temperature":
			result.Temperature = temperature(m.GetCapture("sign", ""), m.GetCapture("temp", ""))
		case "wind":
			result.Wind = wind(m.GetCapture("dir", ""), m.GetCapture("spd", ""))
		case "remarks":
			result.Remarks = strings.TrimSpace(m.GetCapture("remarks", ""))
		case "urgent":
			result.Urgent = true
		}
	}

	if info, err := airport.Attach(ctx, lookup, station); err == nil {
		result.Airport = info
		result.SetPosition(info.Lat, info.Lon)
	}
	return result
}

// skyString renders a sky group as "TYPE ALT", or the bare type.
func skyString(cover, alt string) string {
	if alt == "" {
		return cover
	}
	return cover + " " + alt
}

func temperature(sign, digits string) *int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	if sign == "M" || sign == "m" || sign == "-" {
		v = -v
	}
	return &v
}

func wind(dir, spd string) *wx.Wind {
	d, err := strconv.Atoi(dir)
	if err != nil {
		return nil
	}
	s, err := strconv.Atoi(spd)
	if err != nil {
		return nil
	}
	w := wx.NewWind(&d, false, s, 0, "KT")
	return &w
}

// ParseWithTrace implements registry.Traceable for detailed debugging.
func (p *Parser) ParseWithTrace(env *stratux.Envelope) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
		Type:       env.Type,
	}

	compiler, err := getCompiler()
	if err != nil {
		return trace
	}

	pt := compiler.ParseWithTrace(stratux.Clean(env.Data))
	for _, ft := range pt.Formats {
		trace.Formats = append(trace.Formats, registry.FormatTrace{
			Name:     ft.Name,
			Matched:  ft.Matched,
			Pattern:  ft.Pattern,
			Captures: ft.Captures,
		})
		if ft.Matched {
			trace.Matched = true
		}
	}
	return trace
}
