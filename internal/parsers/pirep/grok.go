// Package pirep provides grok-style pattern definitions for pilot reports.
package pirep

import "github.com/N129BZ/stratuxmap/internal/patterns"

// Formats defines the PIREP slash fields. Each field is matched on its own,
// anywhere in the report, so every format is tried with ParseAll.
var Formats = []patterns.Format{
	// Example: /OV SEA090025
	{
		Name:    "location",
		Pattern: `(?i)/OV\s*(?P<location>{PIREP_OV})`,
		Fields:  []string{"location"},
	},
	// Example: /TM 1845
	{
		Name:    "time",
		Pattern: `(?i)/TM\s*(?P<time>{HHMM})`,
		Fields:  []string{"time"},
	},
	// Example: /FL085
	{
		Name:    "flight_level",
		Pattern: `(?i)/FL\s*(?P<fl>{FL})`,
		Fields:  []string{"fl"},
	},
	// Example: /TP B737 or /TP C-172
	{
		Name:    "aircraft",
		Pattern: `(?i)/TP\s*(?P<aircraft>{ACFT})`,
		Fields:  []string{"aircraft"},
	},
	// Example: /SK BKN030 or /SK SKC
	{
		Name:    "sky",
		Pattern: `(?i)/SK\s*(?P<cover>[A-Z]+)(?P<alt>\d{3})?`,
		Fields:  []string{"cover", "alt"},
	},
	// Example: /TB MOD CHOP 080-100
	{
		Name:    "turbulence",
		Pattern: `(?i)/TB\s*(?P<turbulence>[^/]+)`,
		Fields:  []string{"turbulence"},
	},
	// Example: /IC LGT RIME
	{
		Name:    "icing",
		Pattern: `(?i)/IC\s*(?P<icing>[^/]+)`,
		Fields:  []string{"icing"},
	},
	// Example: /TA M05
	{
		Name:    "temperature",
		Pattern: `(?i)/TA\s*(?P<sign>M|{TEMP_SIGN})?(?P<temp>\d{1,2})\b`,
		Fields:  []string{"sign", "temp"},
	},
	// Example: /WV 27045KT
	{
		Name:    "wind",
		Pattern: `(?i)/WV\s*(?P<dir>\d{3})(?P<spd>{WIND_SPD})(?:KT)?\b`,
		Fields:  []string{"dir", "spd"},
	},
	// Remarks run verbatim to the end of the report.
	// Example: /RM SMOOTH BELOW 040
	{
		Name:    "remarks",
		Pattern: `(?i)/RM\s*(?P<remarks>.+)$`,
		Fields:  []string{"remarks"},
	},
	// Urgent reports carry UUA in place of UA.
	{
		Name:    "urgent",
		Pattern: `(?i)(?:^|\s)(?P<urgent>UUA)(?:\s|/|$)`,
		Fields:  []string{"urgent"},
	},
}
