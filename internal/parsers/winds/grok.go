// Package winds provides grok-style pattern definitions for winds and
// temperatures aloft forecasts.
package winds

import "github.com/N129BZ/stratuxmap/internal/patterns"

// Formats defines the winds-aloft table grammar.
var Formats = []patterns.Format{
	// Header line listing forecast levels in feet.
	// Example: FT  3000    6000    9000   12000   18000   24000  30000  34000  39000
	{
		Name:    "header",
		Pattern: `^\s*FT\s+(?P<levels>[\d\s]+?)\s*$`,
		Fields:  []string{"levels"},
	},
	// One wind/temperature group, matched repeatedly over the data line.
	// Examples: 2714 (no temperature), 2725+03, 2735-02, 731960 (above
	// 24000 ft the sign is dropped and the temperature is negative).
	{
		Name: "group",
		Pattern: `\b(?P<dir>{FD_DIR})(?P<spd>{FD_SPD})` +
			`(?:(?P<temp>{FD_TEMP})|(?P<utemp>\d{2}))?\b`,
		Fields: []string{"dir", "spd", "temp", "utemp"},
	},
}
