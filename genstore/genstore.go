// Package genstore holds the per-key generation counters of the response
// tier. A tier record is served only while the counter it was written under is
// still current; bumping the counter retires every record of that key at once.
package genstore

import (
	"context"
	"time"
)

// GenStore is where generations live. Missing keys are generation 0.
type GenStore interface {
	Snapshot(ctx context.Context, key string) (uint64, error)
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup drops counters not bumped within retention, where applicable.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
