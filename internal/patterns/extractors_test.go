package patterns

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/N129BZ/stratuxmap/internal/wx"
)

func TestExtractWind(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantDir  *int
		wantVRB  bool
		wantSpd  int
		wantGust int
		wantUnit string
	}{
		{"gusting", "KSEA 121853Z 24015G25KT 10SM", true, ip(240), false, 15, 25, "KT"},
		{"calm", "KBFI 121853Z 00000KT 10SM", true, ip(0), false, 0, 0, "KT"},
		{"variable", "KBFI 121853Z VRB04KT 10SM", true, nil, true, 4, 0, "KT"},
		{"metres per second", "EGLL 121850Z 27008MPS 9999", true, ip(270), false, 8, 0, "MPS"},
		{"three digit speed", "KXYZ 121853Z 270105G130KT", true, ip(270), false, 105, 130, "KT"},
		{"gust below speed dropped", "KXYZ 121853Z 18020G15KT", true, ip(180), false, 20, 0, "KT"},
		{"absent", "KSEA 121853Z 10SM CLR", false, nil, false, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ok := ExtractWind(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if (w.Direction == nil) != (tt.wantDir == nil) || (w.Direction != nil && *w.Direction != *tt.wantDir) {
				t.Errorf("Direction = %v, want %v", w.Direction, tt.wantDir)
			}
			if w.Variable != tt.wantVRB {
				t.Errorf("Variable = %v, want %v", w.Variable, tt.wantVRB)
			}
			if w.Speed != tt.wantSpd || w.Gust != tt.wantGust || w.Unit != tt.wantUnit {
				t.Errorf("got %d G%d %s, want %d G%d %s", w.Speed, w.Gust, w.Unit, tt.wantSpd, tt.wantGust, tt.wantUnit)
			}
		})
	}
}

func TestExtractWind_VariableSector(t *testing.T) {
	w, ok := ExtractWind("KSEA 121853Z 24010KT 210V270 10SM")
	if !ok {
		t.Fatal("expected wind")
	}
	if w.VariableFrom == nil || *w.VariableFrom != 210 || w.VariableTo == nil || *w.VariableTo != 270 {
		t.Errorf("variable sector = %v-%v, want 210-270", w.VariableFrom, w.VariableTo)
	}
}

func TestExtractWinds(t *testing.T) {
	text := "TAF KSEA 121730Z 1218/1324 20008KT P6SM BKN040 FM130000 22012G22KT 5SM -RA OVC025"
	winds := ExtractWinds(text)
	if len(winds) != 2 {
		t.Fatalf("got %d winds, want 2", len(winds))
	}
	if *winds[0].Direction != 200 || winds[0].Speed != 8 {
		t.Errorf("winds[0] = %+v", winds[0])
	}
	if *winds[1].Direction != 220 || winds[1].Gust != 22 {
		t.Errorf("winds[1] = %+v", winds[1])
	}
}

func TestExtractWinds_SkipsWindShear(t *testing.T) {
	text := "TAF KSEA 121730Z 1218/1324 20008KT P6SM BKN040 WS020/18040KT FM130000 22012G22KT 5SM OVC025"
	winds := ExtractWinds(text)
	if len(winds) != 2 {
		t.Fatalf("got %d winds, want 2: %+v", len(winds), winds)
	}
	if *winds[0].Direction != 200 || *winds[1].Direction != 220 {
		t.Errorf("winds = %+v", winds)
	}
}

func TestExtractVisibility(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantOK    bool
		wantDist  float64
		wantUnit  string
		wantLess  bool
		wantGreat bool
	}{
		{"whole miles", "KSEA 121853Z 24015KT 10SM FEW025", true, 10, wx.UnitStatuteMiles, false, false},
		{"mixed fraction", "KSEA 121853Z 24015KT 1 1/2SM BR", true, 1.5, wx.UnitStatuteMiles, false, false},
		{"less than quarter", "KSEA 121853Z 24015KT M1/4SM FG", true, 0.25, wx.UnitStatuteMiles, true, false},
		{"plus six", "TAF KSEA 121730Z 1218/1324 20008KT P6SM", true, 6, wx.UnitStatuteMiles, false, true},
		{"metres", "EGLL 121850Z 27008KT 4000 BR", true, 4000, wx.UnitMeters, false, false},
		{"9999 metres", "EGLL 121850Z 27008KT 9999 FEW030", true, 9999, wx.UnitMeters, false, true},
		{"cavok", "EGLL 121850Z 27008KT CAVOK 15/09 Q1013", true, 9999, wx.UnitMeters, false, true},
		{"validity period is not visibility", "TAF KSEA 121730Z 1218/1324 20008KT", false, 0, "", false, false},
		{"absent", "KSEA 121853Z 24015KT FEW025", false, 0, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ExtractVisibility(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if v.Distance == nil || *v.Distance != tt.wantDist {
				t.Errorf("Distance = %v, want %v", v.Distance, tt.wantDist)
			}
			if v.Unit != tt.wantUnit || v.LessThan != tt.wantLess || v.GreaterThan != tt.wantGreat {
				t.Errorf("got %+v", v)
			}
		})
	}
}

func TestExtractVisibilities(t *testing.T) {
	vis := ExtractVisibilities("TAF KSEA 121730Z 1218/1324 20008KT P6SM BKN040 TEMPO 1306/1309 3SM -RA")
	if len(vis) != 2 {
		t.Fatalf("got %d, want 2", len(vis))
	}
	if *vis[0].Distance != 6 || *vis[1].Distance != 3 {
		t.Errorf("got %v and %v", *vis[0].Distance, *vis[1].Distance)
	}
}

func TestExtractClouds(t *testing.T) {
	layers := ExtractClouds("KSEA 121853Z 24015KT 10SM FEW025 SCT040CB BKN100 OVC250 12/05 A3012")
	want := []wx.CloudLayer{
		{Coverage: "FEW", AltitudeFt: 2500},
		{Coverage: "SCT", AltitudeFt: 4000, CloudType: "CB"},
		{Coverage: "BKN", AltitudeFt: 10000},
		{Coverage: "OVC", AltitudeFt: 25000},
	}
	if len(layers) != len(want) {
		t.Fatalf("got %d layers, want %d: %+v", len(layers), len(want), layers)
	}
	for i := range want {
		if layers[i] != want[i] {
			t.Errorf("layer %d = %+v, want %+v", i, layers[i], want[i])
		}
	}

	clr := ExtractClouds("KSEA 121853Z 24015KT 10SM CLR 12/05 A3012")
	if len(clr) != 1 || clr[0].Coverage != "CLR" || clr[0].AltitudeFt != 0 {
		t.Errorf("CLR layers = %+v", clr)
	}

	vv := ExtractClouds("KSEA 121853Z 00000KT 1/4SM FG VV002")
	if len(vv) != 1 || vv[0].Coverage != "VV" || vv[0].AltitudeFt != 200 {
		t.Errorf("VV layers = %+v", vv)
	}
}

func TestExtractTemperature(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantTemp *float64
		wantDew  *float64
	}{
		{"positive", "KSEA 121853Z 10SM CLR 12/05 A3012", fp(12), fp(5)},
		{"negative", "KSEA 121853Z 10SM CLR M05/M12 A3012", fp(-5), fp(-12)},
		{"minus zero", "KSEA 121853Z 10SM CLR M00/M02 A3012", fp(0), fp(-2)},
		{"dewpoint missing", "KSEA 121853Z 10SM CLR 12/ A3012", fp(12), nil},
		{"at end of text", "KSEA 121853Z 10SM CLR 12/05", fp(12), fp(5)},
		{"absent", "KSEA 121853Z 10SM CLR A3012", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			temp, dew := ExtractTemperature(tt.text)
			assertFloatPtr(t, "temp", temp, tt.wantTemp)
			assertFloatPtr(t, "dew", dew, tt.wantDew)
		})
	}
}

func TestExtractTemperatureTenths(t *testing.T) {
	temp, dew := ExtractTemperatureTenths("AO2 SLP201 T01230045")
	assertFloatPtr(t, "temp", temp, fp(12.3))
	assertFloatPtr(t, "dew", dew, fp(4.5))

	temp, dew = ExtractTemperatureTenths("AO2 T10561106")
	assertFloatPtr(t, "temp", temp, fp(-5.6))
	assertFloatPtr(t, "dew", dew, fp(-10.6))

	temp, dew = ExtractTemperatureTenths("AO2 SLP201")
	if temp != nil || dew != nil {
		t.Errorf("expected nil, got %v %v", temp, dew)
	}
}

func TestExtractAltimeter(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"KSEA 121853Z 12/05 A3012", 30.12, true},
		{"KSEA 121853Z 12/05 A2992", 29.92, true},
		{"EGLL 121850Z 15/09 Q1013", 29.91, true},
		{"KSEA 121853Z 12/05", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractAltimeter(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractAltimeter() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractStation(t *testing.T) {
	tests := map[string]string{
		"KSEA 121853Z 24015KT":                   "KSEA",
		"METAR KSEA 121853Z 24015KT":             "KSEA",
		"SPECI COR KBFI 121853Z":                 "KBFI",
		"TAF AMD KSEA 121730Z 1218/1324 20008KT": "KSEA",
		"121853Z 24015KT":                        "",
		"":                                       "",
	}
	for text, want := range tests {
		if got := ExtractStation(text); got != want {
			t.Errorf("ExtractStation(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestSplitRemarks(t *testing.T) {
	body, rmk := SplitRemarks("KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012 RMK AO2 SLP201 T01230045")
	if body != "KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012" {
		t.Errorf("body = %q", body)
	}
	if rmk != "AO2 SLP201 T01230045" {
		t.Errorf("remarks = %q", rmk)
	}

	body, rmk = SplitRemarks("KSEA 121853Z 24015KT 10SM")
	if body != "KSEA 121853Z 24015KT 10SM" || rmk != "" {
		t.Errorf("got %q / %q", body, rmk)
	}

	if got := ExtractRemarks("KSEA 121853Z 10SM RMK"); got != "" {
		t.Errorf("bare RMK remarks = %q", got)
	}
}

func TestExtractRVR(t *testing.T) {
	rvr := ExtractRVR("KSEA 121853Z 24015KT 1/2SM R16L/2600V4000FT/U R34/P6000FT FG")
	if len(rvr) != 2 {
		t.Fatalf("got %d groups, want 2", len(rvr))
	}

	first := rvr[0]
	if first.Runway != "R16" || first.Side != "L" || first.Min != 2600 || first.VariableIndicator != "V" {
		t.Errorf("first = %+v", first)
	}
	if first.Max == nil || *first.Max != 4000 || first.Trend != "U" || first.Unit != "FT" {
		t.Errorf("first = %+v", first)
	}

	second := rvr[1]
	if second.Runway != "R34" || second.MinIndicator != "P" || second.Min != 6000 || second.Max != nil {
		t.Errorf("second = %+v", second)
	}

	metric := ExtractRVR("EGLL 121850Z 27008KT 0400 R27R/0550N FG")
	if len(metric) != 1 || metric[0].Unit != wx.UnitMeters || metric[0].Trend != "N" {
		t.Errorf("metric = %+v", metric)
	}
}

func TestExtractReportModifier(t *testing.T) {
	if got := ExtractReportModifier("KSEA 121853Z AUTO 24015KT"); got != "AUTO" {
		t.Errorf("got %q", got)
	}
	if got := ExtractReportModifier("KSEA 121853Z COR 24015KT"); got != "COR" {
		t.Errorf("got %q", got)
	}
	if got := ExtractReportModifier("KSEA 121853Z 24015KT"); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestIsCAVOK(t *testing.T) {
	if !IsCAVOK("EGLL 121850Z 27008KT CAVOK 15/09 Q1013") {
		t.Error("expected CAVOK")
	}
	if IsCAVOK("KSEA 121853Z 24015KT 10SM") {
		t.Error("unexpected CAVOK")
	}
}

func TestExtractWeather(t *testing.T) {
	got := ExtractWeather("KSEA 121853Z 24015KT 3SM -RA BR VCTS BKN010 12/11 A2992")
	want := []string{"-RA", "BR", "VCTS"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	if w := ExtractWeather("TAF KSEA 121730Z 1218/1324 TEMPO 1306/1309 BECMG"); len(w) != 0 {
		t.Errorf("change indicators leaked into weather: %v", w)
	}
}

func TestExtractChangeIndicators(t *testing.T) {
	got := ExtractChangeIndicators("TAF KSEA 121730Z 1218/1324 20008KT P6SM FM130000 22012KT TEMPO 1306/1309 3SM PROB30 1312/1316 TSRA BECMG 1320/1322 VRB03KT")
	want := []string{"FM130000", "TEMPO", "PROB30", "BECMG"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestSplitChangeGroups(t *testing.T) {
	groups := SplitChangeGroups("KSEA 121730Z 1218/1324 20008KT P6SM FM130000 22012KT 5SM TEMPO 1306/1309 3SM -RA")
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3: %+v", len(groups), groups)
	}
	if groups[0].Indicator != "" || groups[0].Text != "KSEA 121730Z 1218/1324 20008KT P6SM" {
		t.Errorf("base = %+v", groups[0])
	}
	if groups[1].Indicator != "FM130000" || groups[1].Text != "22012KT 5SM" {
		t.Errorf("groups[1] = %+v", groups[1])
	}
	if groups[2].Indicator != "TEMPO" || groups[2].Text != "1306/1309 3SM -RA" {
		t.Errorf("groups[2] = %+v", groups[2])
	}
}

func TestExtractValidPeriod(t *testing.T) {
	from, to, ok := ExtractValidPeriod("TAF KSEA 121730Z 1218/1324 20008KT TEMPO 1306/1309 3SM")
	if !ok || from != "1218" || to != "1324" {
		t.Errorf("got %q %q %v", from, to, ok)
	}
	if _, _, ok := ExtractValidPeriod("KSEA 121853Z 24015KT"); ok {
		t.Error("unexpected period")
	}
}

func TestExtractObservationTime(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 12, 20, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	raw, obs := ExtractObservationTime("KSEA 121853Z 24015KT")
	if raw != "121853Z" {
		t.Errorf("raw = %q", raw)
	}
	if obs == nil || !obs.Equal(time.Date(2024, time.March, 12, 18, 53, 0, 0, time.UTC)) {
		t.Errorf("observed = %v", obs)
	}

	// A day later than tomorrow belongs to the previous month.
	_, obs = ExtractObservationTime("KSEA 281853Z 24015KT")
	if obs == nil || !obs.Equal(time.Date(2024, time.February, 28, 18, 53, 0, 0, time.UTC)) {
		t.Errorf("observed = %v", obs)
	}

	if raw, obs := ExtractObservationTime("KSEA 24015KT"); raw != "" || obs != nil {
		t.Errorf("got %q %v", raw, obs)
	}
}

func TestResolveDayTime(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	// 31 does not exist in February, and March 31 is in the future.
	if got := ResolveDayTime(31, 12, 0); got != nil {
		t.Errorf("ResolveDayTime(31) = %v, want nil", got)
	}

	got := ResolveDayTime(29, 23, 0)
	if got == nil || !got.Equal(time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("ResolveDayTime(29) = %v", got)
	}

	got = ResolveDayHour("0124")
	if got == nil || !got.Equal(time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ResolveDayHour(0124) = %v", got)
	}

	if ResolveDayTime(0, 0, 0) != nil || ResolveDayTime(10, 25, 0) != nil {
		t.Error("out of range fields should give nil")
	}
}

func TestResolveDayTimeAfter(t *testing.T) {
	issued := time.Date(2024, time.March, 18, 17, 30, 0, 0, time.UTC)
	monthEnd := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name              string
		ref               time.Time
		day, hour, minute int
		want              time.Time
	}{
		{"same day", issued, 18, 18, 0, time.Date(2024, time.March, 18, 18, 0, 0, 0, time.UTC)},
		{"hour 24 next day", issued, 19, 24, 0, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)},
		{"start before issue", issued.Add(2 * time.Hour), 18, 18, 0, time.Date(2024, time.March, 18, 18, 0, 0, 0, time.UTC)},
		{"into next month", monthEnd, 1, 6, 0, time.Date(2024, time.April, 1, 6, 0, 0, 0, time.UTC)},
		{"next year", time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC), 1, 12, 0, time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDayTimeAfter(tt.ref, tt.day, tt.hour, tt.minute)
			if got == nil || !got.Equal(tt.want) {
				t.Errorf("ResolveDayTimeAfter() = %v, want %v", got, tt.want)
			}
		})
	}

	if ResolveDayTimeAfter(issued, 32, 0, 0) != nil {
		t.Error("out of range day should give nil")
	}
}

func TestResolveDayHourAfter(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 18, 17, 40, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	from := ResolveDayHourAfter(nil, "1818")
	if from == nil || !from.Equal(time.Date(2024, time.March, 18, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", from)
	}
	to := ResolveDayHourAfter(from, "1924")
	if to == nil || !to.Equal(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("to = %v", to)
	}
	if ResolveDayHourAfter(from, "192") != nil {
		t.Error("short group should give nil")
	}
}

func TestTraceFields(t *testing.T) {
	trace := TraceFields("KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012")
	byName := make(map[string]FieldTrace)
	for _, ft := range trace {
		byName[ft.Name] = ft
	}
	if ft := byName["wind"]; !ft.Matched || ft.Value != "24015KT" {
		t.Errorf("wind trace = %+v", ft)
	}
	if ft := byName["temperature"]; !ft.Matched || ft.Value != "12/05" {
		t.Errorf("temperature trace = %+v", ft)
	}
	if ft := byName["remarks"]; ft.Matched {
		t.Errorf("remarks trace = %+v", ft)
	}
}

func ip(i int) *int         { return &i }
func fp(f float64) *float64 { return &f }

func assertFloatPtr(t *testing.T, name string, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	if got != nil && *got != *want {
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}
