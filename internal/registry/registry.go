// Package registry dispatches weather report envelopes to the parser
// registered for their type tag.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/N129BZ/stratuxmap/internal/airport"
	"github.com/N129BZ/stratuxmap/internal/logger"
	"github.com/N129BZ/stratuxmap/internal/stratux"
)

// Result is the common interface for all parse results.
type Result interface {
	Type() string      // Canonical type tag, e.g. "METAR", "TAF.AMD".
	StationID() string // Normalised station identifier.
}

// Parser is implemented by each report parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Types returns the envelope type tags this parser handles.
	Types() []string

	// Parse decodes the envelope. Parsers never fail: fields that cannot
	// be read come back absent. lookup is never nil.
	Parse(ctx context.Context, env *stratux.Envelope, lookup airport.Lookup) Result
}

// Registry maps type tags to parsers.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Parser
	lookup airport.Lookup
	log    *logger.Logger
}

// New creates a new Registry with no airport data.
func New() *Registry {
	return &Registry{
		byType: make(map[string]Parser),
		lookup: airport.None(),
		log:    logger.NewNop(),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Dispatch routes env through the default registry.
func Dispatch(ctx context.Context, env *stratux.Envelope) Result {
	return defaultRegistry.Dispatch(ctx, env)
}

// Register adds a parser for each of its types. A later registration for
// the same type replaces the earlier one.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range p.Types() {
		r.byType[t] = p
	}
}

// SetAirportLookup sets the collaborator used to attach airport details.
// nil restores the lookup that never has data.
func (r *Registry) SetAirportLookup(l airport.Lookup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l == nil {
		l = airport.None()
	}
	r.lookup = l
}

// SetLogger sets the logger used for airport lookup failures.
func (r *Registry) SetLogger(l *logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l == nil {
		l = logger.NewNop()
	}
	r.log = l.Named("registry")
}

// Dispatch parses env with the parser registered for its type. Type tags
// match exactly. Returns nil when env has no type or no report text, or
// when no parser handles the type.
func (r *Registry) Dispatch(ctx context.Context, env *stratux.Envelope) Result {
	if !env.HasPayload() {
		return nil
	}

	r.mu.RLock()
	p, ok := r.byType[env.Type]
	lookup := &loggingLookup{inner: r.lookup, log: r.log}
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	return p.Parse(ctx, env, lookup)
}

// ParserFor returns the parser registered for a type tag.
func (r *Registry) ParserFor(typ string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byType[typ]
	return p, ok
}

// RegisteredTypes returns all type tags that have parsers registered.
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// AllParsers returns each registered parser once, ordered by name.
func (r *Registry) AllParsers() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var result []Parser
	for _, p := range r.byType {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// loggingLookup logs failed lookups at debug level before passing the
// error on. A missing airport is routine and is not logged.
type loggingLookup struct {
	inner airport.Lookup
	log   *logger.Logger
}

func (l *loggingLookup) Lookup(ctx context.Context, ident string) (*airport.Info, error) {
	info, err := l.inner.Lookup(ctx, ident)
	if err != nil && !errors.Is(err, airport.ErrNotFound) {
		l.log.Debug("airport lookup failed", logger.String("ident", ident), logger.Error(err))
	}
	return info, err
}
