package querycache

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an Entry. Exactly one holds at a time.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Entry is the stored state of one key. Entries are values: the Store hands
// out copies and only accepts changes through Set/Batch.
//
// Data is set only in StatusSuccess and Err only in StatusError; the Store
// enforces this on every write.
type Entry struct {
	Key    Key
	Status Status
	Data   any
	Err    error

	// FetchedAt is the time of the last successful data write.
	FetchedAt time.Time

	// Generation increases every time a fetch is started (or a write
	// supersedes one). A producer result is applied only if the entry's
	// generation still equals the one captured when that fetch started.
	Generation uint64

	invalidated bool
}

// Stale reports whether a Success entry is older than staleTime at now, or
// was explicitly invalidated. A negative staleTime makes every Success entry
// stale. Entries in other states are never stale.
func (e Entry) Stale(now time.Time, staleTime time.Duration) bool {
	if e.Status != StatusSuccess {
		return false
	}
	if e.invalidated || staleTime < 0 {
		return true
	}
	return now.Sub(e.FetchedAt) > staleTime
}

// Invalidated reports whether the entry was marked stale by Client.Invalidate.
func (e Entry) Invalidated() bool { return e.invalidated }

func (e Entry) loading(gen uint64) Entry {
	e.Status = StatusLoading
	e.Generation = gen
	return e
}

func (e Entry) succeeded(data any, at time.Time) Entry {
	e.Status = StatusSuccess
	e.Data = data
	e.FetchedAt = at
	e.invalidated = false
	return e
}

func (e Entry) failed(err error) Entry {
	e.Status = StatusError
	e.Err = err
	return e
}

// normalize restores the invariants after an arbitrary updater ran.
func (e Entry) normalize(key Key, prev Entry) Entry {
	e.Key = key
	if e.Status != StatusSuccess {
		e.Data = nil
		e.invalidated = false
	}
	if e.Status != StatusError {
		e.Err = nil
	}
	if e.Generation < prev.Generation {
		e.Generation = prev.Generation
	}
	return e
}

// Data returns the entry's data as T. ok is false unless the entry is in
// StatusSuccess and holds a T.
func Data[T any](e Entry) (v T, ok bool) {
	if e.Status != StatusSuccess {
		return v, false
	}
	v, ok = e.Data.(T)
	return v, ok
}

func dataAs[T any](e Entry) (T, error) {
	v, ok := Data[T](e)
	if !ok {
		var zero T
		return zero, &TypeError{Key: e.Key, Have: e.Data, Want: fmt.Sprintf("%T", zero)}
	}
	return v, nil
}
