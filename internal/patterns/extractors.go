package patterns

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/N129BZ/stratuxmap/internal/wx"
)

// Field patterns. Whole-text patterns run over cleaned, single-line report
// text; token patterns are anchored and run over whitespace tokens.
var (
	// Wind groups must start a token so WS020/18040KT wind shear is skipped.
	windRe = regexp.MustCompile(Expand(
		`(?:^|\s)(?P<dir>{WIND_DIR})(?P<spd>{WIND_SPD})(?:G(?P<gust>{WIND_SPD}))?(?P<unit>{WIND_UNIT})\b` +
			`(?:\s+(?P<from>\d{3})V(?P<to>\d{3})\b)?`))

	visMilesRe  = regexp.MustCompile(Expand(`^(?P<prefix>[PM])?(?:(?P<fraction>{VIS_FRACTION})|(?P<whole>{VIS_WHOLE}))SM$`))
	visWholeRe  = regexp.MustCompile(`^\d{1,2}$`)
	visMetersRe = regexp.MustCompile(Expand(`^(?P<meters>{VIS_METERS})(?:NDV)?$`))

	cloudRe = regexp.MustCompile(Expand(
		`\b(?:(?P<cover>{COVER})(?P<alt>{CLOUD_ALT})(?P<type>{CLOUD_TYPE})?|(?P<clear>{CLEAR})(?:{CLOUD_ALT})?)\b`))

	tempRe       = regexp.MustCompile(Expand(`(?:^|\s)(?P<temp>{TEMP})/(?P<dew>{TEMP})?(?:\s|$)`))
	tempTenthsRe = regexp.MustCompile(`\bT(?P<ts>[01])(?P<t>\d{3})(?:(?P<ds>[01])(?P<d>\d{3}))?\b`)
	altimeterRe  = regexp.MustCompile(Expand(`\b(?P<kind>{ALTIM_KIND})(?P<value>{ALTIM})\b`))
	remarksRe    = regexp.MustCompile(`(?:^|\s)RMK(?:\s+(?P<remarks>.*))?$`)

	rvrRe = regexp.MustCompile(Expand(
		`\b(?P<runway>{RUNWAY})(?P<side>{RWY_SIDE})?/(?P<minind>[PM])?(?P<min>{RVR_VALUE})` +
			`(?:(?P<var>V)(?P<maxind>[PM])?(?P<max>{RVR_VALUE}))?(?P<unit>FT)?(?:/?(?P<trend>{RVR_TREND}))?\b`))

	modifierRe    = regexp.MustCompile(`(?:^|\s)(?P<mod>AUTO|COR)(?:\s|$)`)
	cavokRe       = regexp.MustCompile(`\bCAVOK\b`)
	weatherTokRe  = regexp.MustCompile(`^[-+]?[A-Z]{2,6}$`)
	changeRe      = regexp.MustCompile(Expand(`\b(?P<change>{CHANGE})\b`))
	validPeriodRe = regexp.MustCompile(Expand(`(?:^|\s)(?P<period>{PERIOD})(?:\s|$)`))
	obsTimeRe     = regexp.MustCompile(`\b(?P<day>\d{2})(?P<hour>\d{2})(?P<minute>\d{2})Z\b`)
	stationRe     = regexp.MustCompile(Expand(`^(?:(?:METAR|SPECI|TAF)\s+)?(?:(?:AMD|COR)\s+)?(?P<station>{STATION})\b`))
)

// Tokenize splits report text on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// ExtractStation returns the station identifier that leads a report,
// skipping any METAR/SPECI/TAF and AMD/COR prefix. Returns "" when the
// text does not start with one.
func ExtractStation(text string) string {
	if m := stationRe.FindStringSubmatch(text); m != nil {
		return group(stationRe, m, "station")
	}
	return ""
}

// SplitRemarks separates the coded body of a report from the free text
// after RMK. Both halves are trimmed.
func SplitRemarks(text string) (body, remarks string) {
	loc := remarksRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	body = strings.TrimSpace(text[:loc[0]])
	if idx := remarksRe.SubexpIndex("remarks") * 2; loc[idx] >= 0 {
		remarks = strings.TrimSpace(text[loc[idx]:loc[idx+1]])
	}
	return body, remarks
}

// ExtractRemarks returns the text after RMK verbatim, or "".
func ExtractRemarks(text string) string {
	_, remarks := SplitRemarks(text)
	return remarks
}

// ExtractWind returns the first wind group in text.
func ExtractWind(text string) (wx.Wind, bool) {
	m := windRe.FindStringSubmatch(text)
	if m == nil {
		return wx.Wind{}, false
	}
	return windFromMatch(m), true
}

// ExtractWinds returns every wind group in text in order of appearance.
func ExtractWinds(text string) []wx.Wind {
	var winds []wx.Wind
	for _, m := range windRe.FindAllStringSubmatch(text, -1) {
		winds = append(winds, windFromMatch(m))
	}
	return winds
}

func windFromMatch(m []string) wx.Wind {
	var (
		dir      *int
		variable bool
	)
	if d := group(windRe, m, "dir"); d == "VRB" {
		variable = true
	} else {
		dir = atoiPtr(d)
	}
	w := wx.NewWind(dir, variable, atoi(group(windRe, m, "spd")), atoi(group(windRe, m, "gust")), group(windRe, m, "unit"))
	w.VariableFrom = atoiPtr(group(windRe, m, "from"))
	w.VariableTo = atoiPtr(group(windRe, m, "to"))
	return w
}

// ExtractVisibility returns the first prevailing visibility group in text.
func ExtractVisibility(text string) (wx.Visibility, bool) {
	vis := ExtractVisibilities(text)
	if len(vis) == 0 {
		return wx.Visibility{}, false
	}
	return vis[0], true
}

// ExtractVisibilities returns every visibility group in text in order of
// appearance. Statute-mile groups may be whole, fractional, mixed
// ("1 1/2SM") or prefixed with P or M. Four-digit groups are metres, and
// CAVOK counts as 9999 metres.
func ExtractVisibilities(text string) []wx.Visibility {
	var out []wx.Visibility
	tokens := Tokenize(text)

	for i, tok := range tokens {
		if tok == "CAVOK" {
			out = append(out, metersVisibility(9999))
			continue
		}

		if m := visMilesRe.FindStringSubmatch(tok); m != nil {
			var miles float64
			if frac := group(visMilesRe, m, "fraction"); frac != "" {
				miles = parseFraction(frac)
				if i > 0 && visWholeRe.MatchString(tokens[i-1]) {
					miles += float64(atoi(tokens[i-1]))
				}
			} else {
				miles = float64(atoi(group(visMilesRe, m, "whole")))
			}
			v := wx.Visibility{Distance: &miles, Unit: wx.UnitStatuteMiles}
			switch group(visMilesRe, m, "prefix") {
			case "M":
				v.LessThan = true
			case "P":
				v.GreaterThan = true
			}
			out = append(out, v)
			continue
		}

		if m := visMetersRe.FindStringSubmatch(tok); m != nil {
			out = append(out, metersVisibility(atoi(group(visMetersRe, m, "meters"))))
		}
	}
	return out
}

func metersVisibility(meters int) wx.Visibility {
	d := float64(meters)
	return wx.Visibility{Distance: &d, Unit: wx.UnitMeters, GreaterThan: meters == 9999}
}

func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok || atoi(den) == 0 {
		return 0
	}
	return float64(atoi(num)) / float64(atoi(den))
}

// IsCAVOK reports whether text carries the CAVOK group.
func IsCAVOK(text string) bool {
	return cavokRe.MatchString(text)
}

// ExtractClouds returns every sky-condition layer in text in order of
// appearance. Heights are in feet. Clear-sky codes carry height 0.
func ExtractClouds(text string) []wx.CloudLayer {
	var layers []wx.CloudLayer
	for _, m := range cloudRe.FindAllStringSubmatch(text, -1) {
		if clr := group(cloudRe, m, "clear"); clr != "" {
			layers = append(layers, wx.CloudLayer{Coverage: clr})
			continue
		}
		layers = append(layers, wx.CloudLayer{
			Coverage:   group(cloudRe, m, "cover"),
			AltitudeFt: atoi(group(cloudRe, m, "alt")) * 100,
			CloudType:  group(cloudRe, m, "type"),
		})
	}
	return layers
}

// ExtractTemperature returns the whole-degree temperature and dewpoint
// from a TT/DD group. M marks a negative value. Either may be nil.
func ExtractTemperature(text string) (temp, dew *float64) {
	m := tempRe.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	return signedTemp(group(tempRe, m, "temp")), signedTemp(group(tempRe, m, "dew"))
}

func signedTemp(s string) *float64 {
	if s == "" {
		return nil
	}
	neg := strings.HasPrefix(s, "M")
	v := float64(atoi(strings.TrimPrefix(s, "M")))
	if neg {
		v = -v
	}
	return &v
}

// ExtractTemperatureTenths returns the tenth-degree temperature and
// dewpoint from a remarks T-group such as T01230045. A leading 1 marks a
// negative value.
func ExtractTemperatureTenths(text string) (temp, dew *float64) {
	m := tempTenthsRe.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	return tenths(group(tempTenthsRe, m, "ts"), group(tempTenthsRe, m, "t")),
		tenths(group(tempTenthsRe, m, "ds"), group(tempTenthsRe, m, "d"))
}

func tenths(sign, digits string) *float64 {
	if digits == "" {
		return nil
	}
	v := float64(atoi(digits)) / 10
	if sign == "1" {
		v = -v
	}
	return &v
}

// ExtractAltimeter returns the altimeter setting in inches of mercury.
// A groups are hundredths of an inch; Q groups are hectopascals.
func ExtractAltimeter(text string) (float64, bool) {
	m := altimeterRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v := float64(atoi(group(altimeterRe, m, "value")))
	if group(altimeterRe, m, "kind") == "Q" {
		return wx.HPaToInHg(v), true
	}
	return wx.Round2(v / 100), true
}

// ExtractRVR returns every runway visual range group in text.
func ExtractRVR(text string) []wx.RVR {
	var out []wx.RVR
	for _, m := range rvrRe.FindAllStringSubmatch(text, -1) {
		r := wx.RVR{
			Runway:            group(rvrRe, m, "runway"),
			Side:              group(rvrRe, m, "side"),
			MinIndicator:      group(rvrRe, m, "minind"),
			Min:               atoi(group(rvrRe, m, "min")),
			VariableIndicator: group(rvrRe, m, "var"),
			MaxIndicator:      group(rvrRe, m, "maxind"),
			Max:               atoiPtr(group(rvrRe, m, "max")),
			Trend:             group(rvrRe, m, "trend"),
			Unit:              wx.UnitMeters,
		}
		if group(rvrRe, m, "unit") == "FT" {
			r.Unit = "FT"
		}
		out = append(out, r)
	}
	return out
}

// ExtractReportModifier returns AUTO or COR when present, else "".
func ExtractReportModifier(text string) string {
	if m := modifierRe.FindStringSubmatch(text); m != nil {
		return group(modifierRe, m, "mod")
	}
	return ""
}

// ExtractWeather returns the present-weather codes in text, in order, that
// appear in the weather dictionary.
func ExtractWeather(text string) []string {
	var codes []string
	for _, tok := range Tokenize(text) {
		if weatherTokRe.MatchString(tok) && wx.IsWeatherCode(tok) {
			codes = append(codes, tok)
		}
	}
	return codes
}

// ExtractChangeIndicators returns the TAF change groups (FMddhhmm,
// PROBnn, TEMPO, BECMG) in order of appearance.
func ExtractChangeIndicators(text string) []string {
	return changeRe.FindAllString(text, -1)
}

// ChangeGroup is a slice of forecast text introduced by a change indicator.
// The base forecast has an empty Indicator.
type ChangeGroup struct {
	Indicator string
	Text      string
}

// SplitChangeGroups cuts TAF text at each change indicator.
func SplitChangeGroups(text string) []ChangeGroup {
	locs := changeRe.FindAllStringIndex(text, -1)
	groups := make([]ChangeGroup, 0, len(locs)+1)

	start := 0
	indicator := ""
	for _, loc := range locs {
		groups = append(groups, ChangeGroup{Indicator: indicator, Text: strings.TrimSpace(text[start:loc[0]])})
		indicator = text[loc[0]:loc[1]]
		start = loc[1]
	}
	return append(groups, ChangeGroup{Indicator: indicator, Text: strings.TrimSpace(text[start:])})
}

// ExtractValidPeriod returns the first DDHH/DDHH group as its two halves.
func ExtractValidPeriod(text string) (from, to string, ok bool) {
	m := validPeriodRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	from, to, _ = strings.Cut(group(validPeriodRe, m, "period"), "/")
	return from, to, true
}

// ResolveDayHour resolves a DDHH group as used in TAF periods.
func ResolveDayHour(ddhh string) *time.Time {
	if len(ddhh) != 4 {
		return nil
	}
	return ResolveDayTime(atoi(ddhh[:2]), atoi(ddhh[2:]), 0)
}

// ResolveDayHourAfter resolves a DDHH group forward from ref. A nil ref
// resolves against the clock like ResolveDayHour.
func ResolveDayHourAfter(ref *time.Time, ddhh string) *time.Time {
	if len(ddhh) != 4 {
		return nil
	}
	if ref == nil {
		return ResolveDayHour(ddhh)
	}
	return ResolveDayTimeAfter(*ref, atoi(ddhh[:2]), atoi(ddhh[2:]), 0)
}

// ExtractObservationTime returns the first DDHHMMZ group and its resolved
// time. The time is nil when the group is absent or out of range.
func ExtractObservationTime(text string) (string, *time.Time) {
	m := obsTimeRe.FindStringSubmatch(text)
	if m == nil {
		return "", nil
	}
	return m[0], ResolveDayTime(
		atoi(group(obsTimeRe, m, "day")),
		atoi(group(obsTimeRe, m, "hour")),
		atoi(group(obsTimeRe, m, "minute")),
	)
}

// FieldTrace records whether one field pattern matched report text.
type FieldTrace struct {
	Name    string
	Pattern string
	Matched bool
	Value   string
}

var traceFields = []struct {
	name string
	re   *regexp.Regexp
}{
	{"observation_time", obsTimeRe},
	{"modifier", modifierRe},
	{"wind", windRe},
	{"cavok", cavokRe},
	{"rvr", rvrRe},
	{"clouds", cloudRe},
	{"temperature", tempRe},
	{"altimeter", altimeterRe},
	{"valid_period", validPeriodRe},
	{"change", changeRe},
	{"temperature_tenths", tempTenthsRe},
	{"remarks", remarksRe},
}

// TraceFields runs each whole-text field pattern against text.
func TraceFields(text string) []FieldTrace {
	out := make([]FieldTrace, 0, len(traceFields))
	for _, f := range traceFields {
		ft := FieldTrace{Name: f.name, Pattern: f.re.String()}
		if v := f.re.FindString(text); v != "" {
			ft.Matched = true
			ft.Value = strings.TrimSpace(v)
		}
		out = append(out, ft)
	}
	return out
}

func group(re *regexp.Regexp, m []string, name string) string {
	if i := re.SubexpIndex(name); i > 0 && i < len(m) {
		return m[i]
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
