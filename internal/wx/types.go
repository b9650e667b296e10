// Package wx holds the value objects, lookup tables and derived
// classifications shared by the METAR, TAF, PIREP and winds-aloft parsers.
package wx

import (
	"encoding/json"
	"fmt"
	"math"
)

// Wind is a decoded surface wind group.
type Wind struct {
	Direction    *int   // Degrees true, nil when not reported or variable.
	Variable     bool   // VRB direction.
	Speed        int    // Sustained speed in Unit.
	Gust         int    // Gust speed in Unit, 0 when none.
	Unit         string // KT, MPS or KMH.
	VariableFrom *int   // dddVddd sector, when reported.
	VariableTo   *int
}

// Calm returns the value used when no wind group is present:
// no direction, zero speed, zero gust.
func Calm() Wind {
	return Wind{Unit: "KT"}
}

// NewWind builds a wind, dropping a gust that does not exceed the sustained speed.
func NewWind(direction *int, variable bool, speed, gust int, unit string) Wind {
	if gust < speed {
		gust = 0
	}
	if unit == "" {
		unit = "KT"
	}
	return Wind{Direction: direction, Variable: variable, Speed: speed, Gust: gust, Unit: unit}
}

// Knots returns the sustained speed converted to knots.
func (w Wind) Knots() int {
	return toKnots(w.Speed, w.Unit)
}

// GustKnots returns the gust converted to knots.
func (w Wind) GustKnots() int {
	return toKnots(w.Gust, w.Unit)
}

func toKnots(v int, unit string) int {
	switch unit {
	case "MPS":
		return int(math.Round(float64(v) * 1.943844))
	case "KMH":
		return int(math.Round(float64(v) * 0.539957))
	}
	return v
}

type windJSON struct {
	Direction    any    `json:"direction"`
	Speed        int    `json:"speed"`
	Gust         int    `json:"gust"`
	Unit         string `json:"unit"`
	VariableFrom *int   `json:"variableFrom,omitempty"`
	VariableTo   *int   `json:"variableTo,omitempty"`
}

// MarshalJSON emits direction as degrees, the string "VRB", or null.
func (w Wind) MarshalJSON() ([]byte, error) {
	out := windJSON{
		Speed:        w.Speed,
		Gust:         w.Gust,
		Unit:         w.Unit,
		VariableFrom: w.VariableFrom,
		VariableTo:   w.VariableTo,
	}
	switch {
	case w.Variable:
		out.Direction = "VRB"
	case w.Direction != nil:
		out.Direction = *w.Direction
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (w *Wind) UnmarshalJSON(b []byte) error {
	var in struct {
		Direction    json.RawMessage `json:"direction"`
		Speed        int             `json:"speed"`
		Gust         int             `json:"gust"`
		Unit         string          `json:"unit"`
		VariableFrom *int            `json:"variableFrom"`
		VariableTo   *int            `json:"variableTo"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*w = Wind{Speed: in.Speed, Gust: in.Gust, Unit: in.Unit, VariableFrom: in.VariableFrom, VariableTo: in.VariableTo}
	if len(in.Direction) == 0 || string(in.Direction) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(in.Direction, &s); err == nil {
		if s != "VRB" {
			return fmt.Errorf("unknown wind direction %q", s)
		}
		w.Variable = true
		return nil
	}
	var d int
	if err := json.Unmarshal(in.Direction, &d); err != nil {
		return fmt.Errorf("wind direction: %w", err)
	}
	w.Direction = &d
	return nil
}

// Visibility units.
const (
	UnitStatuteMiles = "SM"
	UnitMeters       = "M"
)

// Visibility is a prevailing visibility in statute miles or metres.
type Visibility struct {
	Distance    *float64 `json:"distance"`
	Unit        string   `json:"unit"`
	LessThan    bool     `json:"lessThan,omitempty"`    // M prefix, below the reported value.
	GreaterThan bool     `json:"greaterThan,omitempty"` // P prefix or 9999, above the reported value.
}

// DefaultVisibility is used when a METAR carries no visibility group:
// 10 statute miles, the omission convention for unrestricted visibility.
func DefaultVisibility() Visibility {
	d := 10.0
	return Visibility{Distance: &d, Unit: UnitStatuteMiles}
}

// Miles returns the distance in statute miles, or nil when absent.
func (v Visibility) Miles() *float64 {
	if v.Distance == nil {
		return nil
	}
	m := *v.Distance
	if v.Unit == UnitMeters {
		m = MetersToMiles(m)
	}
	return &m
}

// CloudLayer is one sky-condition group.
type CloudLayer struct {
	Coverage   string `json:"coverage"`
	AltitudeFt int    `json:"altitudeFt"`
	CloudType  string `json:"cloudType,omitempty"` // CB or TCU.
}

// String renders the layer as "BKN 2500", or the bare coverage for clear-sky codes.
func (c CloudLayer) String() string {
	if c.AltitudeFt == 0 && CoverageRank(c.Coverage) == 0 {
		return c.Coverage
	}
	return fmt.Sprintf("%s %d", c.Coverage, c.AltitudeFt)
}

// RVR is a runway visual range group such as R28L/2600V4000FT/U.
type RVR struct {
	Runway            string `json:"runway"`
	Side              string `json:"side,omitempty"`
	MinIndicator      string `json:"minIndicator,omitempty"`
	Min               int    `json:"min"`
	VariableIndicator string `json:"variableIndicator,omitempty"`
	MaxIndicator      string `json:"maxIndicator,omitempty"`
	Max               *int   `json:"max,omitempty"`
	Trend             string `json:"trend,omitempty"`
	Unit              string `json:"unit"`
}
