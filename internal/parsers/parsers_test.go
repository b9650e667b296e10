package parsers_test

import (
	"context"
	"testing"

	_ "github.com/N129BZ/stratuxmap/internal/parsers"
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

func TestDefaultRegistry(t *testing.T) {
	want := []string{"METAR", "PIREP", "SPECI", "TAF", "TAF.AMD", "WINDS"}
	got := registry.Default().RegisteredTypes()
	if len(got) != len(want) {
		t.Fatalf("RegisteredTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RegisteredTypes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		env     *stratux.Envelope
		wantNil bool
		want    string
	}{
		{"metar", &stratux.Envelope{Type: "METAR", Location: "KSEA", Data: "KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012"}, false, "METAR"},
		{"speci", &stratux.Envelope{Type: "SPECI", Location: "KSEA", Data: "KSEA 121900Z 24015KT 2SM BR OVC008 12/11 A3010"}, false, "SPECI"},
		{"lower case tag", &stratux.Envelope{Type: "speci", Location: "KSEA", Data: "KSEA 121900Z 24015KT 2SM BR OVC008 12/11 A3010"}, true, ""},
		{"taf", &stratux.Envelope{Type: "TAF", Location: "KSEA", Data: "TAF KSEA 121130Z 1212/1318 24010KT P6SM BKN040"}, false, "TAF"},
		{"amended taf", &stratux.Envelope{Type: "TAF.AMD", Location: "KSEA", Data: "TAF AMD KSEA 121330Z 1214/1318 24010KT P6SM BKN040"}, false, "TAF.AMD"},
		{"pirep", &stratux.Envelope{Type: "PIREP", Location: "SEA", Data: "SEA UA /OV SEA/TM 1845/FL085"}, false, "PIREP"},
		{"winds", &stratux.Envelope{Type: "WINDS", Location: "SEA", Data: "FT 3000 6000\n2714 2725+03"}, false, "WINDS"},
		{"unknown type", &stratux.Envelope{Type: "NOTAM", Data: "!SEA 12/001"}, true, ""},
		{"empty data", &stratux.Envelope{Type: "METAR"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := registry.Dispatch(context.Background(), tt.env)
			if tt.wantNil {
				if res != nil {
					t.Errorf("Dispatch() = %+v, want nil", res)
				}
				return
			}
			if res == nil {
				t.Fatal("Dispatch() = nil")
			}
			if res.Type() != tt.want {
				t.Errorf("Type() = %q, want %q", res.Type(), tt.want)
			}
		})
	}
}
