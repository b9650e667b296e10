// Package airport provides the airport reference data attached to parsed
// reports: the lookup collaborator, an HTTP client for it, an LRU cache,
// and the SQLite store behind the /airport endpoints.
package airport

import (
	"context"
	"errors"
	"math"
	"strings"
)

// Info is one airport record as served by /airport?id=.
type Info struct {
	Ident     string  `json:"ident"`
	Type      string  `json:"type,omitempty"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	ElevFt    *int    `json:"elev,omitempty"`
	ISORegion string  `json:"isoregion,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Lookup resolves a station identifier to airport details.
type Lookup interface {
	Lookup(ctx context.Context, ident string) (*Info, error)
}

// ErrNotFound is returned when no airport matches an identifier.
var ErrNotFound = errors.New("airport not found")

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, ident string) (*Info, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, ident string) (*Info, error) {
	return f(ctx, ident)
}

// None is a Lookup that never has data.
func None() Lookup {
	return LookupFunc(func(context.Context, string) (*Info, error) {
		return nil, ErrNotFound
	})
}

// Attach looks up ident and returns the airport, or nil on any failure.
// The error is returned so callers can log it.
func Attach(ctx context.Context, l Lookup, ident string) (*Info, error) {
	if l == nil || strings.TrimSpace(ident) == "" {
		return nil, ErrNotFound
	}
	info, err := l.Lookup(ctx, ident)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Ident == "" {
		return nil, ErrNotFound
	}
	return info, nil
}

// EarthRadiusMiles is the mean earth radius used for radius searches.
const EarthRadiusMiles = 3959.0

// BoundingBox is a lat/lon rectangle in degrees.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBoxAround returns the box enclosing a circle of radiusMiles
// around a point. Near the poles the longitude span widens to the full
// circle.
func BoundingBoxAround(lat, lon, radiusMiles float64) BoundingBox {
	r := radiusMiles / EarthRadiusMiles
	dLat := r * 180 / math.Pi

	dLon := 180.0
	if s := math.Sin(r) / math.Cos(lat*math.Pi/180); s < 1 {
		dLon = math.Asin(s) * 180 / math.Pi
	}

	return BoundingBox{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLon: lon - dLon,
		MaxLon: lon + dLon,
	}
}
