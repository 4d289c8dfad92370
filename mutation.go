package querycache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// MutationStatus is the observable state of a Mutation.
type MutationStatus uint8

const (
	MutationIdle MutationStatus = iota
	MutationPending
	MutationSuccess
	MutationError
)

func (s MutationStatus) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationError:
		return "error"
	default:
		return fmt.Sprintf("mutation_status(%d)", uint8(s))
	}
}

// MutationStatusOf maps the entry a mutation publishes its state under to a
// MutationStatus (Loading is reported as Pending).
func MutationStatusOf(e Entry) MutationStatus {
	switch e.Status {
	case StatusLoading:
		return MutationPending
	case StatusSuccess:
		return MutationSuccess
	case StatusError:
		return MutationError
	default:
		return MutationIdle
	}
}

// MutationKey is the key family mutation state is published under.
func MutationKey(parts ...any) Key {
	return NewKey(append([]any{"mutation"}, parts...)...)
}

// Patch describes how one cache entry changes given a mutation result.
// Patches run inside a single Store batch; they must only use tx.
type Patch[R any] func(tx *Tx, result R)

// MutationDef declares a write operation.
type MutationDef[P, R any] struct {
	// Name labels logs and hooks. Required.
	Name string

	// Key is where the mutation's state is published. Zero means a fresh key
	// under MutationKey(Name, <uuid>), private to this instance.
	Key Key

	// Validate rejects a payload before anything else happens. Optional.
	Validate func(payload P) error

	// Exec performs the write and returns the server-confirmed result.
	Exec func(ctx context.Context, payload P) (R, error)

	// Patches are applied, in order and in one batch, after Exec succeeds.
	Patches []Patch[R]
}

// Mutation runs a MutationDef. At most one run is pending per Mutation; a
// second Run while pending fails with ErrMutationInFlight instead of queueing,
// so two writes to the same resource can never race each other.
type Mutation[P, R any] struct {
	c       *Client
	def     MutationDef[P, R]
	key     Key
	pending atomic.Bool
}

// NewMutation binds def to c.
func NewMutation[P, R any](c *Client, def MutationDef[P, R]) *Mutation[P, R] {
	key := def.Key
	if key.Len() == 0 {
		key = MutationKey(def.Name, uuid.NewString())
	}
	return &Mutation[P, R]{c: c, def: def, key: key}
}

// Key returns the key the mutation's state is published under.
func (m *Mutation[P, R]) Key() Key { return m.key }

// State returns the current state entry; Data holds the last result in
// MutationSuccess, Err the failure in MutationError.
func (m *Mutation[P, R]) State() Entry { return m.c.store.Get(m.key) }

// Status returns the current MutationStatus.
func (m *Mutation[P, R]) Status() MutationStatus { return MutationStatusOf(m.State()) }

// Subscribe follows state changes through the store.
func (m *Mutation[P, R]) Subscribe(fn Listener) (unsubscribe func()) {
	return m.c.store.Subscribe(m.key, fn)
}

// Reset returns the state to Idle. It does not affect a pending run.
func (m *Mutation[P, R]) Reset() {
	m.c.store.Batch(func(tx *Tx) {
		// Run publishes Loading under the store lock after setting pending,
		// so checking here cannot clobber a run that has already started.
		if m.pending.Load() {
			return
		}
		tx.Set(m.key, func(e Entry) Entry {
			e.Status = StatusIdle
			return e
		})
	})
}

// Run executes the mutation. On success every patch and the Success state
// are applied in one store batch and the result is returned. On failure the
// state becomes Error with the original error and no entry is patched.
func (m *Mutation[P, R]) Run(ctx context.Context, payload P) (R, error) {
	var zero R
	if m.c.closed.Load() {
		return zero, ErrClosed
	}
	if !m.pending.CompareAndSwap(false, true) {
		m.c.hooks.MutationRejected(m.def.Name)
		m.c.log.Debug("mutation rejected", Fields{"mutation": m.def.Name, "err": ErrMutationInFlight})
		return zero, ErrMutationInFlight
	}
	defer m.pending.Store(false)

	runID := uuid.NewString()
	fields := Fields{"mutation": m.def.Name, "run": runID}

	m.c.store.Set(m.key, func(e Entry) Entry { return e.loading(e.Generation + 1) })

	r, err := m.exec(ctx, payload)
	if err != nil {
		m.c.store.Set(m.key, func(e Entry) Entry { return e.failed(err) })
		m.c.hooks.MutationFinished(m.def.Name, err)
		fields["err"] = err
		m.c.log.Warn("mutation failed", fields)
		return zero, err
	}

	var skipped []SkippedPatch
	m.c.store.Batch(func(tx *Tx) {
		for _, p := range m.def.Patches {
			p(tx, r)
		}
		now := m.c.now()
		tx.Set(m.key, func(e Entry) Entry { return e.succeeded(r, now) })
		skipped = tx.Skipped()
	})
	for _, s := range skipped {
		m.c.hooks.PatchSkipped(s.Key, s.Reason)
		m.c.log.Debug("patch skipped", Fields{"mutation": m.def.Name, "run": runID, "key": s.Key.String(), "reason": s.Reason})
	}
	m.c.hooks.MutationFinished(m.def.Name, nil)
	m.c.log.Debug("mutation applied", fields)
	return r, nil
}

func (m *Mutation[P, R]) exec(ctx context.Context, payload P) (R, error) {
	if m.def.Validate != nil {
		if err := m.def.Validate(payload); err != nil {
			var zero R
			return zero, err
		}
	}
	return m.def.Exec(ctx, payload)
}

// ReplaceData returns a patch that replaces the entry at key(result) with
// value(result), promoting it to Success. Used for the detail entry of the
// mutated resource.
func ReplaceData[R any](key func(R) Key, value func(R) any) Patch[R] {
	return func(tx *Tx, r R) {
		tx.SetData(key(r), value(r))
	}
}

// UpdateData returns a patch that transforms the T held at key(result). The
// patch is skipped when the entry is not Success (no baseline to transform)
// or does not hold a T.
func UpdateData[R, T any](key func(R) Key, fn func(old T, result R) T) Patch[R] {
	return func(tx *Tx, r R) {
		k := key(r)
		if e := tx.Get(k); e.Status == StatusSuccess {
			if _, ok := e.Data.(T); !ok {
				tx.skip(k, "type_mismatch")
				return
			}
		}
		tx.Update(k, func(old any) any { return fn(old.(T), r) })
	}
}
