package wx

// FlightCategory is the VFR/MVFR/IFR/LIFR classification derived from
// ceiling and visibility.
type FlightCategory string

const (
	VFR  FlightCategory = "VFR"
	MVFR FlightCategory = "MVFR"
	IFR  FlightCategory = "IFR"
	LIFR FlightCategory = "LIFR"
)

// Color is the map colour conventionally used for the category.
func (c FlightCategory) Color() string {
	switch c {
	case VFR:
		return "green"
	case MVFR:
		return "blue"
	case IFR:
		return "red"
	case LIFR:
		return "purple"
	}
	return ""
}

// Category thresholds. Ceilings in feet, visibility in statute miles.
var thresholds = []struct {
	category   FlightCategory
	ceilingFt  int
	visibility float64
}{
	{LIFR, 500, 1},
	{IFR, 1000, 3},
	{MVFR, 3000, 5},
}

// Classify returns the flight category for a ceiling and a visibility in
// statute miles. The most restrictive rule is checked first. A nil ceiling
// applies only the visibility thresholds, and a nil visibility only the
// ceiling thresholds.
func Classify(ceilingFt *int, visibilityMiles *float64) FlightCategory {
	for _, th := range thresholds {
		if ceilingFt != nil && *ceilingFt < th.ceilingFt {
			return th.category
		}
		if visibilityMiles != nil && *visibilityMiles < th.visibility {
			return th.category
		}
	}
	return VFR
}

// Ceiling returns the height of the governing ceiling layer: a VV layer
// when one is present, otherwise the lowest BKN or OVC layer. FEW, SCT
// and clear-sky layers never form a ceiling.
func Ceiling(layers []CloudLayer) *int {
	var lowest *int
	for _, l := range layers {
		switch l.Coverage {
		case "VV":
			alt := l.AltitudeFt
			return &alt
		case "BKN", "OVC":
			if lowest == nil || l.AltitudeFt < *lowest {
				alt := l.AltitudeFt
				lowest = &alt
			}
		}
	}
	return lowest
}

// PrevailingCoverage returns the layer with the highest coverage rank.
// Ties go to the first layer encountered. Returns nil for no layers.
func PrevailingCoverage(layers []CloudLayer) *CloudLayer {
	var best *CloudLayer
	bestRank := -2
	for i := range layers {
		if r := CoverageRank(layers[i].Coverage); r > bestRank {
			best = &layers[i]
			bestRank = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}
