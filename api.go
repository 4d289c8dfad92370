package querycache

import (
	"context"
	"time"
)

// Options tune the client. The zero value is usable.
type Options struct {
	Logger    Logger           // if nil, NopLogger is used
	Hooks     Hooks            // if nil, NopHooks is used
	StaleTime time.Duration    // default per-query stale time; 0 => 5m, <0 => always stale
	Now       func() time.Time // clock; nil => time.Now
}

// Query declares one cacheable resource.
type Query[T any] struct {
	// Key identifies the resource. Required.
	Key Key

	// Fetch produces the value. It runs on its own goroutine with the client's
	// context; unsubscribing does not cancel it.
	Fetch func(ctx context.Context) (T, error)

	// Enabled gates fetch initiation. nil means always enabled. A disabled
	// query leaves an existing Success/Error entry as-is.
	Enabled func(s *Store) bool

	// StaleTime overrides Options.StaleTime for this query.
	StaleTime time.Duration
}

// New creates a client with its own Store. Use one client per application
// lifetime and Close it on shutdown; tests build a fresh one per case.
func New(opts Options) *Client {
	return newClient(opts)
}
