// Package patterns provides the regex building blocks shared by the
// weather report parsers.
// This file contains grok-style base patterns for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
var BasePatterns = map[string]string{
	// Station identifiers. Three-letter US identifiers are accepted and
	// normalised later.
	"STATION": `[A-Z][A-Z0-9]{2,3}`,

	// Time groups.
	"DDHHMMZ": `\d{6}Z`,      // Issue / observation time
	"PERIOD":  `\d{4}/\d{4}`, // TAF validity DDHH/DDHH
	"HHMM":    `\d{4}`,       // PIREP time of report
	"FM":      `FM\d{6}`,     // TAF FM group
	"PROB":    `PROB\d{2}`,   // TAF probability group
	"CHANGE":  `FM\d{6}|PROB\d{2}|TEMPO|BECMG`,

	// Wind.
	"WIND_DIR":  `\d{3}|VRB`,
	"WIND_SPD":  `\d{2,3}`,
	"WIND_UNIT": `KT|MPS|KMH`,

	// Visibility.
	"VIS_WHOLE":    `\d{1,3}`,
	"VIS_FRACTION": `\d{1,2}/\d{1,2}`,
	"VIS_METERS":   `\d{4}`,

	// Sky condition.
	"COVER":      `FEW|SCT|BKN|OVC|VV`,
	"CLEAR":      `NCD|SKC|CLR|NSC`,
	"CLOUD_ALT":  `\d{3}`,
	"CLOUD_TYPE": `CB|TCU`,

	// Temperature and pressure.
	"TEMP":       `M?\d{2}`,
	"TEMP_SIGN":  `[+-]`,
	"ALTIM_KIND": `[AQ]`,
	"ALTIM":      `\d{4}`,

	// Runway visual range.
	"RUNWAY":    `R\d{2}`,
	"RWY_SIDE":  `[LRC]`,
	"RVR_VALUE": `\d{3,4}`,
	"RVR_TREND": `[NUD]`,

	// PIREP fields.
	"FL":       `\d{3,4}`,
	"ACFT":     `[A-Z0-9\-]+`,
	"FIELD":    `[A-Z0-9]+`,
	"PIREP_OV": `[A-Z0-9]+`,

	// Winds aloft.
	"FD_LEVEL": `\d{4,5}`,
	"FD_DIR":   `\d{2}`,
	"FD_SPD":   `\d{2}`,
	"FD_TEMP":  `[+-]\d{2}`,
}
