// Package winds parses winds and temperatures aloft (FD) forecasts.
package winds

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/patterns"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/stratux"
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

// Level is the forecast at one altitude. Fields are nil when the level has
// no data group.
type Level struct {
	Level         int  `json:"level"`
	Direction     *int `json:"direction"`
	Speed         *int `json:"speed"`
	Temperature   *int `json:"temperature"`
	LightVariable bool `json:"lightVariable,omitempty"`
}

func (l Level) empty() bool {
	return l.Direction == nil && l.Speed == nil && l.Temperature == nil && !l.LightVariable
}

// Result is a parsed winds-aloft forecast for one station.
type Result struct {
	stratux.Header

	StationName *string       `json:"stationName"`
	Winds       []Level       `json:"winds"`
	Airport     *airport.Info `json:"airport,omitempty"`
}

// Parser parses WINDS reports.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "winds" }
func (p *Parser) Types() []string { return []string{"WINDS"} }

func (p *Parser) Parse(ctx context.Context, env *stratux.Envelope, lookup airport.Lookup) registry.Result {
	compiler, err := getCompiler()
	if err != nil {
		return nil
	}

	station := stratux.NormaliseStation(env.Location)
	result := &Result{
		Header: stratux.NewHeader(env, "WINDS", station, stratux.Clean(env.Data)),
		Winds:  Decode(compiler, env.Data),
	}

	if info, err := airport.Attach(ctx, lookup, station); err == nil {
		result.Airport = info
		result.StationName = &info.Name
		result.SetPosition(info.Lat, info.Lon)
	}
	return result
}

// Decode zips the header levels with the data groups that follow them.
// Levels beyond the last group, and levels whose group decodes to nothing,
// are dropped.
func Decode(compiler *patterns.Compiler, data string) []Level {
	levels, body := splitTable(compiler, data)
	groups := compiler.FindAll(body, "group")

	out := make([]Level, 0, len(levels))
	for i, lvl := range levels {
		entry := Level{Level: lvl}
		if i < len(groups) {
			decodeGroup(&entry, groups[i])
		}
		if entry.empty() {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// splitTable separates the level header from the data that follows it.
// Multi-line tables are split on the header line. Single-line text falls
// back to the run of level tokens after FT.
func splitTable(compiler *patterns.Compiler, data string) ([]int, string) {
	lines := strings.Split(strings.ReplaceAll(data, "\r", ""), "\n")
	for i, line := range lines {
		m := compiler.Parse(line)
		if m == nil || m.FormatName != "header" {
			continue
		}
		levels, rest := levelRun(strings.Fields(m.GetCapture("levels", "")))
		body := append(rest, lines[i+1:]...)
		return levels, stratux.Clean(strings.Join(body, "\n"))
	}

	tokens := patterns.Tokenize(stratux.Clean(data))
	for i, tok := range tokens {
		if tok != "FT" {
			continue
		}
		levels, rest := levelRun(tokens[i+1:])
		return levels, strings.Join(rest, " ")
	}
	return nil, ""
}

// levelRun splits fields into the leading run of forecast levels and the
// fields after it. Levels are ascending whole thousands of feet, so a
// data group such as 9900 or 2714 ends the run.
func levelRun(fields []string) ([]int, []string) {
	var levels []int
	for i, f := range fields {
		lvl, err := strconv.Atoi(f)
		if err != nil || lvl < 1000 || lvl%1000 != 0 || (len(levels) > 0 && lvl <= levels[len(levels)-1]) {
			return levels, fields[i:]
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// decodeGroup fills entry from one DDSS[+-TT] group. Direction is in tens
// of degrees. Direction codes 51-86 carry speeds of 100 kt or more, and
// 9900 is light and variable.
func decodeGroup(entry *Level, g map[string]string) {
	dd, err1 := strconv.Atoi(g["dir"])
	ss, err2 := strconv.Atoi(g["spd"])
	if err1 != nil || err2 != nil {
		return
	}

	switch {
	case dd == 99 && ss == 0:
		entry.LightVariable = true
		speed := 0
		entry.Speed = &speed
	case dd >= 51 && dd <= 86:
		dir, speed := (dd-50)*10, ss+100
		entry.Direction, entry.Speed = &dir, &speed
	case dd <= 36:
		dir := dd * 10
		entry.Direction, entry.Speed = &dir, &ss
	}

	if t := g["temp"]; t != "" {
		if v, err := strconv.Atoi(t); err == nil {
			entry.Temperature = &v
		}
	} else if t := g["utemp"]; t != "" {
		if v, err := strconv.Atoi(t); err == nil {
			v = -v
			entry.Temperature = &v
		}
	}
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

	levels, body := splitTable(compiler, env.Data)
	trace.Formats = append(trace.Formats, registry.FormatTrace{
		Name:     "header",
		Matched:  len(levels) > 0,
		Pattern:  patterns.Expand(Formats[0].Pattern),
		Captures: map[string]string{"levels": strconv.Itoa(len(levels))},
	})
	for i, g := range compiler.FindAll(body, "group") {
		trace.Formats = append(trace.Formats, registry.FormatTrace{
			Name:     "group_" + strconv.Itoa(i),
			Matched:  true,
			Pattern:  patterns.Expand(Formats[1].Pattern),
			Captures: g,
		})
	}
	trace.Matched = len(levels) > 0
	return trace
}
