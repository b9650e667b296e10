package pirep

import (
	"context"
	"testing"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

func parse(t *testing.T, loc, data string) *Result {
	t.Helper()
	p := &Parser{}
	res := p.Parse(context.Background(), &stratux.Envelope{Type: "PIREP", Location: loc, Data: data}, airport.None())
	r, ok := res.(*Result)
	if !ok {
		t.Fatalf("Parse() returned %T", res)
	}
	return r
}

func TestParse_Fields(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Result
	}{
		{
			name: "full report",
			data: "SEA UA /OV SEA090025/TM 1845/FL085/TP B737/SK BKN030/RM SMOOTH BELOW 040",
			want: Result{Location: "SEA090025", PirepTime: "1845", FlightLevel: "085", Aircraft: "B737", Sky: "BKN 030", Remarks: "SMOOTH BELOW 040"},
		},
		{
			name: "bare sky type",
			data: "UA /OV PDX/TM 0210/FL120/TP C-172/SK SKC",
			want: Result{Location: "PDX", PirepTime: "0210", FlightLevel: "120", Aircraft: "C-172", Sky: "SKC"},
		},
		{
			name: "lower case fields",
			data: "ua /ov boi/tm 1200/fl350/tp a320/rm light chop",
			want: Result{Location: "boi", PirepTime: "1200", FlightLevel: "350", Aircraft: "a320", Remarks: "light chop"},
		},
		{
			name: "missing fields are empty",
			data: "UA /OV GEG",
			want: Result{Location: "GEG"},
		},
		{
			name: "nothing recognised",
			data: "GARBLED TEXT",
			want: Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parse(t, "SEA", tt.data)
			if r.Location != tt.want.Location {
				t.Errorf("Location = %q, want %q", r.Location, tt.want.Location)
			}
			if r.PirepTime != tt.want.PirepTime {
				t.Errorf("PirepTime = %q, want %q", r.PirepTime, tt.want.PirepTime)
			}
			if r.FlightLevel != tt.want.FlightLevel {
				t.Errorf("FlightLevel = %q, want %q", r.FlightLevel, tt.want.FlightLevel)
			}
			if r.Aircraft != tt.want.Aircraft {
				t.Errorf("Aircraft = %q, want %q", r.Aircraft, tt.want.Aircraft)
			}
			if r.Sky != tt.want.Sky {
				t.Errorf("Sky = %q, want %q", r.Sky, tt.want.Sky)
			}
			if r.Remarks != tt.want.Remarks {
				t.Errorf("Remarks = %q, want %q", r.Remarks, tt.want.Remarks)
			}
		})
	}
}

func TestParse_Header(t *testing.T) {
	r := parse(t, "sea", "SEA UA /OV SEA/TM 1845=\n")
	if r.Type() != "PIREP" || r.StationID() != "KSEA" {
		t.Errorf("header = %+v", r.Header)
	}
	if r.Raw != "SEA UA /OV SEA/TM 1845" {
		t.Errorf("Raw = %q", r.Raw)
	}
	if r.Airport != nil || r.Lat != nil {
		t.Errorf("expected no airport, got %+v", r.Airport)
	}
}

func TestParse_Supplementary(t *testing.T) {
	r := parse(t, "OLM", "OLM UUA /OV OLM/TM 2015/FL060/TP PA28/TB 6/IC 4/TA M05/WV 27045KT/RM SEVERE TURB")

	if !r.Urgent {
		t.Error("Urgent = false, want true")
	}
	if r.Turbulence != "6" || r.TurbulenceDescription != "Severe in clean air occasionally" {
		t.Errorf("Turbulence = %q (%q)", r.Turbulence, r.TurbulenceDescription)
	}
	if r.Icing != "4" || r.IcingDescription != "Moderate" {
		t.Errorf("Icing = %q (%q)", r.Icing, r.IcingDescription)
	}
	if r.Temperature == nil || *r.Temperature != -5 {
		t.Errorf("Temperature = %v", r.Temperature)
	}
	if r.Wind == nil || *r.Wind.Direction != 270 || r.Wind.Speed != 45 {
		t.Errorf("Wind = %+v", r.Wind)
	}
	if r.Remarks != "SEVERE TURB" {
		t.Errorf("Remarks = %q", r.Remarks)
	}
}

func TestParse_PlainLanguageIntensity(t *testing.T) {
	r := parse(t, "SEA", "SEA UA /OV SEA/TM 1845/FL120/TP B737/TB OCNL LGT-MOD CHOP 110-130/IC LGT RIME/RM SMOOTH")
	if r.Turbulence != "OCNL LGT-MOD CHOP 110-130" {
		t.Errorf("Turbulence = %q", r.Turbulence)
	}
	if r.TurbulenceDescription != "Occasional light to moderate chop" {
		t.Errorf("TurbulenceDescription = %q", r.TurbulenceDescription)
	}
	if r.Icing != "LGT RIME" || r.IcingDescription != "Light rime" {
		t.Errorf("Icing = %q (%q)", r.Icing, r.IcingDescription)
	}
}

func TestParse_RoutineNotUrgent(t *testing.T) {
	r := parse(t, "SEA", "SEA UA /OV SEA/TM 1845/TB MOD CHOP")
	if r.Urgent {
		t.Error("Urgent = true for a routine report")
	}
	if r.Turbulence != "MOD CHOP" || r.TurbulenceDescription != "Moderate chop" {
		t.Errorf("Turbulence = %q (%q)", r.Turbulence, r.TurbulenceDescription)
	}
	if r.Temperature != nil {
		t.Errorf("Temperature = %v, want nil", *r.Temperature)
	}
}

func TestParseWithTrace(t *testing.T) {
	p := &Parser{}
	trace := p.ParseWithTrace(&stratux.Envelope{Type: "PIREP", Data: "UA /OV SEA/TM 1845"})

	if !trace.Matched {
		t.Fatal("expected a match")
	}
	if len(trace.Formats) != len(Formats) {
		t.Fatalf("Formats = %d, want %d", len(trace.Formats), len(Formats))
	}
	for _, f := range trace.Formats {
		switch f.Name {
		case "location", "time":
			if !f.Matched {
				t.Errorf("%s did not match", f.Name)
			}
		case "remarks", "urgent":
			if f.Matched {
				t.Errorf("%s matched unexpectedly", f.Name)
			}
		}
	}
}

func TestFormatsCompile(t *testing.T) {
	if _, err := getCompiler(); err != nil {
		t.Fatalf("compile: %v", err)
	}
}
