package querycache

import (
	"errors"
	"fmt"
)

var (
	// ErrMutationInFlight is returned by Mutation.Run while a previous run of
	// the same mutation instance is still pending. No executor call is made.
	ErrMutationInFlight = errors.New("querycache: mutation in flight")

	// ErrStaleResponseDiscarded marks a producer result that arrived after a
	// newer fetch for the same key was started. It is only reported to logs
	// and hooks, never stored in an entry.
	ErrStaleResponseDiscarded = errors.New("querycache: stale response discarded")

	// ErrQueryDisabled is returned by Fetch when the query's Enabled predicate
	// is false and the entry holds nothing to return.
	ErrQueryDisabled = errors.New("querycache: query disabled")

	// ErrDependencyCycle is returned when registering a dependent query would
	// close a cycle in the upstream -> downstream graph.
	ErrDependencyCycle = errors.New("querycache: dependency cycle")

	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("querycache: client closed")
)

// TypeError reports an entry whose data is not of the type a caller asked for.
// It happens when two definitions with different value types share a key.
type TypeError struct {
	Key  Key
	Have any
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("querycache: %s holds %T, want %s", e.Key, e.Have, e.Want)
}

// PanicError wraps a value recovered from a panicking producer.
type PanicError struct {
	Key   Key
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("querycache: producer for %s panicked: %v", e.Key, e.Value)
}
