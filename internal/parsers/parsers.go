// Package parsers imports all parser packages to trigger their init() registration.
// Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "github.com/N129BZ/stratuxmap/internal/parsers/metar"
	_ "github.com/N129BZ/stratuxmap/internal/parsers/pirep"
	_ "github.com/N129BZ/stratuxmap/internal/parsers/taf"
	_ "github.com/N129BZ/stratuxmap/internal/parsers/winds"
)
