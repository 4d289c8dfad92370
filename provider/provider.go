// Package provider is the byte store behind the response tier.
//
// Stores must be byte-for-byte transparent: Get returns exactly the bytes
// passed to Set. The tier owns the "single:<ns>:" and "bulk:<ns>:" key
// spaces; anything else written there is treated as corruption and deleted on
// read.
package provider

import (
	"context"
	"time"
)

// Provider is a concurrency-safe byte store with TTLs.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (<= 0: no expiry, or the store's own window).
	// cost is a hint for cost-aware stores. ok=false means the store dropped
	// the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	Del(ctx context.Context, key string) error
	Close(ctx context.Context) error
}
