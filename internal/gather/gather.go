// Package gather drives acquisition of raw daily series: it consults the
// raw-series cache, submits fetches for the rest to a scheduler and collects
// one result per enabled symbol.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass and blocks until it is complete or ctx
	// is cancelled.
	Run(ctx context.Context) error
}
