// This file contains the grok-style pattern compiler.

package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Format is a named pattern with {PLACEHOLDER} references to base patterns.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler expands and compiles a set of formats and runs them against
// report text. Text is matched as given; formats that need case folding
// carry their own (?i) flag.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a compiler for formats. Local patterns are layered
// over BasePatterns and win on name clashes.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string, len(BasePatterns)+len(localPatterns)),
		formats:      make([]Format, len(formats)),
	}
	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}
	copy(c.formats, formats)
	return c
}

// Compile expands all {PLACEHOLDER} references and compiles every format.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		re, err := regexp.Compile(expand(c.formats[i].Pattern, c.basePatterns))
		if err != nil {
			return fmt.Errorf("compile format %s: %w", c.formats[i].Name, err)
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// Expand replaces {PLACEHOLDER} references in pattern using BasePatterns.
func Expand(pattern string) string {
	return expand(pattern, BasePatterns)
}

func expand(pattern string, base map[string]string) string {
	result := pattern
	for name, regex := range base {
		result = strings.ReplaceAll(result, "{"+name+"}", regex)
	}
	return result
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
}

// GetCapture returns a capture value, or defaultVal when it is missing or empty.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// Parse returns the first format that matches text, or nil.
func (c *Compiler) Parse(text string) *Match {
	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		if m := format.Compiled.FindStringSubmatch(text); m != nil {
			return &Match{FormatName: format.Name, Captures: captures(format.Compiled, m)}
		}
	}
	return nil
}

// ParseAll returns a match for every format that matches text. Useful when
// each format extracts a different field.
func (c *Compiler) ParseAll(text string) []*Match {
	var results []*Match
	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		if m := format.Compiled.FindStringSubmatch(text); m != nil {
			results = append(results, &Match{FormatName: format.Name, Captures: captures(format.Compiled, m)})
		}
	}
	return results
}

// FindAll returns the captures of every occurrence of the named format in
// text, in order of appearance.
func (c *Compiler) FindAll(text string, formatName string) []map[string]string {
	for _, format := range c.formats {
		if format.Name != formatName || format.Compiled == nil {
			continue
		}
		var results []map[string]string
		for _, m := range format.Compiled.FindAllStringSubmatch(text, -1) {
			results = append(results, captures(format.Compiled, m))
		}
		return results
	}
	return nil
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            // Format name
	Matched  bool              // Whether the pattern matched
	Pattern  string            // The expanded regex pattern
	Captures map[string]string // Captured groups (if matched)
}

// ParseTrace contains complete trace information for a parse attempt.
type ParseTrace struct {
	Formats []FormatTrace // All format match attempts
	Match   *Match        // The first successful match (if any)
}

// ParseWithTrace runs every format against text and records each attempt.
func (c *Compiler) ParseWithTrace(text string) *ParseTrace {
	trace := &ParseTrace{Formats: make([]FormatTrace, 0, len(c.formats))}

	for _, format := range c.formats {
		ft := FormatTrace{
			Name:    format.Name,
			Pattern: expand(format.Pattern, c.basePatterns),
		}
		if format.Compiled != nil {
			if m := format.Compiled.FindStringSubmatch(text); m != nil {
				ft.Matched = true
				ft.Captures = captures(format.Compiled, m)
				if trace.Match == nil {
					trace.Match = &Match{FormatName: format.Name, Captures: ft.Captures}
				}
			}
		}
		trace.Formats = append(trace.Formats, ft)
	}

	return trace
}

func captures(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = match[i]
	}
	return out
}
