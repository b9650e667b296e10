// Command-line entry point for stratuxmap.
//
// Input format
// ------------
// Every command reads Stratux weather envelopes, one JSON object per line:
//  1. Bare envelope: {"Type":"METAR","Location":"KSEA","Time":"...","Data":"..."}
//  2. Bus wrapper:   {"source":{...},"envelope":{...}}
//
// Use -all to keep envelopes even if no parser handled their type.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/N129BZ/stratuxmap/internal/airport"
	_ "github.com/N129BZ/stratuxmap/internal/parsers" // register all parsers via init()
	"github.com/N129BZ/stratuxmap/internal/registry"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

type ExtractOut struct {
	Envelope *stratux.Envelope `json:"envelope"`
	Result   registry.Result   `json:"result,omitempty"`
}

type Stats struct {
	Lines   int
	Decoded int
	Skipped int
	Emitted int
	Matched int
	ByType  map[string]int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "stratuxmap - commands:")
	fmt.Fprintln(w, "  extract          - parse JSONL envelopes and output JSON")
	fmt.Fprintln(w, "  trace            - show how each pattern fared against one report")
	fmt.Fprintln(w, "  import-airports  - load an OurAirports CSV into the airport database")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  stratuxmap extract -input reports.jsonl [-output out.json] [-pretty] [-all] [-stats] [-airports airports.db]")
	fmt.Fprintln(w, "  stratuxmap trace -type METAR -data 'KSEA 121853Z 24015KT 10SM FEW025 12/05 A3012'")
	fmt.Fprintln(w, "  stratuxmap trace -input reports.jsonl [-line N]")
	fmt.Fprintln(w, "  stratuxmap import-airports -csv airports.csv [-db data/airports.db]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input must be JSONL (one JSON object per line).")
	fmt.Fprintln(w, "  - Registered types: "+strings.Join(registry.Default().RegisteredTypes(), ", "))
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "extract":
		runExtract(os.Args[2:])
	case "trace":
		runTrace(os.Args[2:])
	case "import-airports":
		runImportAirports(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	includeAll := fs.Bool("all", false, "Include envelopes even if no parser matched")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	airportsDB := fs.String("airports", "", "Airport database to attach station details from")
	_ = fs.Parse(args)

	if *airportsDB != "" {
		store, err := airport.OpenStore(*airportsDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open airport database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		registry.Default().SetAirportLookup(store)
	}

	r, closeIn := openInput(*inPath)
	defer closeIn()

	out, st, err := extract(context.Background(), registry.Default(), r, *includeAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d decoded=%d skipped(no_envelope)=%d emitted=%d matched=%d by_type=%s\n",
			st.Lines, st.Decoded, st.Skipped, st.Emitted, st.Matched, formatCounts(st.ByType),
		)
	}
}

// extract parses every envelope read from r.
func extract(ctx context.Context, reg *registry.Registry, r io.Reader, includeAll bool) ([]ExtractOut, *Stats, error) {
	scanner := bufio.NewScanner(r)
	// Winds tables run to a few KB; allow 4MB lines.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	out := make([]ExtractOut, 0, 1024)
	st := &Stats{ByType: make(map[string]int)}

	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		env, err := stratux.DecodeEnvelope([]byte(line))
		if err != nil {
			st.Skipped++
			continue
		}
		st.Decoded++

		res := reg.Dispatch(ctx, env)
		if res != nil {
			st.Matched++
			st.ByType[res.Type()]++
		} else if !includeAll {
			continue
		}
		out = append(out, ExtractOut{Envelope: env, Result: res})
		st.Emitted++
	}

	if err := scanner.Err(); err != nil {
		return nil, st, err
	}
	return out, st, nil
}

func runTrace(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	typ := fs.String("type", "", "Report type tag (with -data)")
	data := fs.String("data", "", "Report text")
	location := fs.String("location", "", "Station (with -data)")
	inPath := fs.String("input", "", "Input JSONL file to take the envelope from")
	lineNo := fs.Int("line", 1, "Envelope to trace from -input (1-based, blank lines skipped)")
	asJSON := fs.Bool("json", false, "Print the trace as JSON")
	_ = fs.Parse(args)

	var env *stratux.Envelope
	switch {
	case *data != "":
		env = &stratux.Envelope{Type: *typ, Location: *location, Data: *data}
	case *inPath != "":
		r, closeIn := openInput(*inPath)
		defer closeIn()
		var err error
		env, err = nthEnvelope(r, *lineNo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read envelope: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "trace needs -data or -input")
		os.Exit(2)
	}

	trace := registry.Default().Trace(env)
	if trace == nil {
		fmt.Fprintf(os.Stderr, "No traceable parser for type %q\n", env.Type)
		os.Exit(1)
	}

	if *asJSON {
		enc, _ := marshalJSON(trace, true)
		fmt.Println(string(enc))
		return
	}
	printTrace(os.Stdout, trace)
}

func nthEnvelope(r io.Reader, n int) (*stratux.Envelope, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	seen := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		seen++
		if seen == n {
			return stratux.DecodeEnvelope([]byte(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("input has %d envelopes, wanted number %d", seen, n)
}

func printTrace(w io.Writer, t *registry.TraceResult) {
	fmt.Fprintf(w, "parser: %s  type: %s  matched: %v\n", t.ParserName, t.Type, t.Matched)
	if len(t.Formats) > 0 {
		fmt.Fprintln(w, "formats:")
		for _, f := range t.Formats {
			fmt.Fprintf(w, "  [%s] %s\n", mark(f.Matched), f.Name)
			keys := make([]string, 0, len(f.Captures))
			for k := range f.Captures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if f.Captures[k] != "" {
					fmt.Fprintf(w, "        %s = %q\n", k, f.Captures[k])
				}
			}
		}
	}
	if len(t.Extractors) > 0 {
		fmt.Fprintln(w, "extractors:")
		for _, e := range t.Extractors {
			fmt.Fprintf(w, "  [%s] %-14s %s\n", mark(e.Matched), e.Name, e.Value)
		}
	}
}

func mark(ok bool) string {
	if ok {
		return "x"
	}
	return " "
}

func runImportAirports(args []string) {
	fs := flag.NewFlagSet("import-airports", flag.ExitOnError)
	csvPath := fs.String("csv", "", "OurAirports airports.csv (default: stdin)")
	dbPath := fs.String("db", "data/airports.db", "Airport database to write")
	_ = fs.Parse(args)

	store, err := airport.OpenStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open airport database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	r, closeIn := openInput(*csvPath)
	defer closeIn()

	ctx := context.Background()
	n, err := store.Import(ctx, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	total, _ := store.Count(ctx)
	fmt.Fprintf(os.Stderr, "imported %d airports into %s (%d total)\n", n, *dbPath, total)
}

func openInput(path string) (io.Reader, func()) {
	if path == "" {
		return os.Stdin, func() {}
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		os.Exit(1)
	}
	return f, func() { _ = f.Close() }
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
