// Package collector samples host and process counters from the OS metrics
// provider and reshapes them into the snapshots defined in package models.
//
// SystemCollector and ProcessCollector are synchronous: each call queries the
// provider, builds a fresh snapshot and returns it. They keep no cache, start
// no goroutines and add no retry, wrapping or logging. Provider errors are
// returned unchanged, with the single exception of the process descriptor
// count, which is best-effort. The context passed to each method is handed to
// the provider as-is; callers that need bounded latency set a deadline on it.
//
// Sources adapt the collectors to named samples for the Registry, which is
// what the scheduler drives.
package collector

import "context"

// Source is a named sample the scheduler can take periodically.
type Source interface {
	// Name returns the unique identifier for this source.
	Name() string

	// Collect takes one sample.
	Collect(ctx context.Context) (interface{}, error)

	// IsAvailable reports whether the host can provide this sample.
	// Sources that return false are not registered.
	IsAvailable() bool
}
