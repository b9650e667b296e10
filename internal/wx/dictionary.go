package wx

import "strings"

// Lookup tables. These are built once at package init and never written
// afterwards, so they are safe to read from concurrent parses.

var weatherAcronyms = map[string]string{
	"FU":      "Smoke",
	"VA":      "Volcanic ash",
	"HZ":      "Haze",
	"DU":      "Dust",
	"SA":      "Sand",
	"BLDU":    "Blowing dust",
	"BLSA":    "Blowing sand",
	"PO":      "Dust devil",
	"VCSS":    "Vicinity sand storm",
	"BR":      "Mist or light fog",
	"MIFG":    "More or less continuous shallow fog",
	"VCTS":    "Vicinity thunderstorm",
	"VIRGA":   "Virga or precipitation not hitting ground",
	"VCSH":    "Vicinity showers",
	"TS":      "Thunderstorm with or without precipitation",
	"SQ":      "Squalls",
	"FC":      "Funnel cloud or tornado",
	"SS":      "Sand or dust storm",
	"+SS":     "Strong sand or dust storm",
	"BLSN":    "Blowing snow",
	"DRSN":    "Drifting snow",
	"VCFG":    "Vicinity fog",
	"BCFG":    "Patchy fog",
	"PRFG":    "Fog, sky discernable",
	"FG":      "Fog, sky undiscernable",
	"FZFG":    "Freezing fog",
	"-DZ":     "Light drizzle",
	"DZ":      "Moderate drizzle",
	"+DZ":     "Heavy drizzle",
	"-FZDZ":   "Light freezing drizzle",
	"FZDZ":    "Moderate freezing drizzle",
	"+FZDZ":   "Heavy freezing drizzle",
	"-DZRA":   "Light drizzle and rain",
	"DZRA":    "Moderate to heavy drizzle and rain",
	"-RA":     "Light rain",
	"RA":      "Moderate rain",
	"+RA":     "Heavy rain",
	"-FZRA":   "Light freezing rain",
	"FZRA":    "Moderate freezing rain",
	"+FZRA":   "Heavy freezing rain",
	"-RASN":   "Light rain and snow",
	"RASN":    "Moderate rain and snow",
	"+RASN":   "Heavy rain and snow",
	"-SN":     "Light snow",
	"SN":      "Moderate snow",
	"+SN":     "Heavy snow",
	"SG":      "Snow grains",
	"IC":      "Ice crystals",
	"PE":      "Ice pellets",
	"PL":      "Ice pellets",
	"-SHRA":   "Light rain showers",
	"SHRA":    "Moderate rain showers",
	"+SHRA":   "Heavy rain showers",
	"-SHRASN": "Light rain and snow showers",
	"SHRASN":  "Moderate rain and snow showers",
	"+SHRASN": "Heavy rain and snow showers",
	"-SHSN":   "Light snow showers",
	"SHSN":    "Moderate snow showers",
	"+SHSN":   "Heavy snow showers",
	"-GR":     "Light showers with hail, not with thunder",
	"GR":      "Moderate to heavy showers with hail, not with thunder",
	"TSRA":    "Light to moderate thunderstorm with rain",
	"TSGR":    "Light to moderate thunderstorm with hail",
	"+TSRA":   "Thunderstorm with heavy rain",
	"UP":      "Unknown precipitation",
	"NSW":     "No significant weather",
}

var changeIndicators = map[string]string{
	"FM":    "From",
	"TEMPO": "Temporary",
	"BECMG": "Becoming",
	"PROB":  "Probability",
}

type coverage struct {
	rank int
	text string
}

var coverages = map[string]coverage{
	"NCD": {0, "no clouds"},
	"SKC": {0, "sky clear"},
	"CLR": {0, "no clouds under 12,000 ft"},
	"NSC": {0, "no significant"},
	"FEW": {1, "few"},
	"SCT": {2, "scattered"},
	"BKN": {3, "broken"},
	"OVC": {4, "overcast"},
	"VV":  {5, "vertical visibility"},
}

var turbulenceCodes = map[string]string{
	"0": "Light",
	"1": "Light",
	"2": "Moderate in clean air occasionally",
	"3": "Moderate in clean air frequent",
	"4": "Moderate in clouds occasionally",
	"5": "Moderate in clouds frequently",
	"6": "Severe in clean air occasionally",
	"7": "Severe in clean air frequent",
	"8": "Severe in clouds occasionally",
	"9": "Severe in clouds frequently",
	"X": "Extreme",
}

var icingCodes = map[string]string{
	"0": "None",
	"1": "Light",
	"2": "Light in clouds",
	"3": "Light in precipitation",
	"4": "Moderate",
	"5": "Moderate in clouds",
	"6": "Moderate in precipitation",
	"7": "Severe",
	"8": "Severe in clouds",
	"9": "Severe in precipitation",
}

// Plain-language PIREP words, as in "/TB OCNL LGT-MOD CHOP" or "/IC MOD RIME".
var intensityWords = map[string]string{
	"NEG":     "none",
	"SMTH":    "smooth",
	"TRACE":   "trace",
	"LGT":     "light",
	"LGT-MOD": "light to moderate",
	"MOD":     "moderate",
	"MOD-SEV": "moderate to severe",
	"SEV":     "severe",
	"EXTRM":   "extreme",
	"EXTM":    "extreme",
	"TO":      "to",
	"OCNL":    "occasional",
	"INTMT":   "intermittent",
	"CONS":    "continuous",
}

var turbulenceWords = map[string]string{
	"CHOP": "chop",
	"CAT":  "clear air turbulence",
	"LLWS": "low level wind shear",
	"TURB": "turbulence",
}

var icingWords = map[string]string{
	"RIME": "rime",
	"CLR":  "clear",
	"MX":   "mixed",
	"MXD":  "mixed",
	"ICG":  "icing",
}

// Describe returns the plain-language text for a present-weather code
// such as "-RA" or "FZFG". The second result is false for unknown codes.
func Describe(code string) (string, bool) {
	d, ok := weatherAcronyms[code]
	return d, ok
}

// IsWeatherCode reports whether code is in the present-weather dictionary.
func IsWeatherCode(code string) bool {
	_, ok := weatherAcronyms[code]
	return ok
}

// DescribeChange returns the text for a TAF change indicator. PROB30 and
// FM121800 style tokens are matched on their prefix.
func DescribeChange(indicator string) string {
	for _, prefix := range []string{"TEMPO", "BECMG", "PROB", "FM"} {
		if len(indicator) >= len(prefix) && indicator[:len(prefix)] == prefix {
			return changeIndicators[prefix]
		}
	}
	return ""
}

// CoverageRank orders sky-cover codes from clear (0) to vertical visibility (5).
// Unknown codes rank -1.
func CoverageRank(code string) int {
	if c, ok := coverages[code]; ok {
		return c.rank
	}
	return -1
}

// DescribeCoverage returns the text for a sky-cover code.
func DescribeCoverage(code string) string {
	return coverages[code].text
}

// DescribeTurbulence decodes a turbulence report: either a single intensity
// code or plain-language words such as "MOD CHOP". Unknown text gives "".
func DescribeTurbulence(text string) string {
	if d, ok := turbulenceCodes[strings.ToUpper(text)]; ok {
		return d
	}
	return describeWords(text, turbulenceWords)
}

// DescribeIcing decodes an icing report: either a single intensity code or
// plain-language words such as "LGT RIME". Unknown text gives "".
func DescribeIcing(text string) string {
	if d, ok := icingCodes[strings.ToUpper(text)]; ok {
		return d
	}
	return describeWords(text, icingWords)
}

// describeWords translates the intensity and kind words in text, in order,
// and skips everything else such as altitudes.
func describeWords(text string, kinds map[string]string) string {
	var parts []string
	for _, tok := range strings.Fields(strings.ToUpper(text)) {
		if w, ok := intensityWords[tok]; ok {
			parts = append(parts, w)
		} else if w, ok := kinds[tok]; ok {
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
