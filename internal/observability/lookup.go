package observability

import (
	"context"
	"errors"

	"github.com/N129BZ/stratuxmap/internal/airport"
)

// InstrumentLookup counts the outcome of every lookup made through l.
func (m *Metrics) InstrumentLookup(l airport.Lookup) airport.Lookup {
	return airport.LookupFunc(func(ctx context.Context, ident string) (*airport.Info, error) {
		info, err := l.Lookup(ctx, ident)
		switch {
		case err == nil:
			m.AirportLookups.WithLabelValues("hit").Inc()
		case errors.Is(err, airport.ErrNotFound):
			m.AirportLookups.WithLabelValues("miss").Inc()
		default:
			m.AirportLookups.WithLabelValues("error").Inc()
		}
		return info, err
	})
}
