package querycache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DependentQuery is a query gated on one upstream key: it may only run once
// the upstream entry is in StatusSuccess, and its producer receives the
// upstream data.
type DependentQuery[U, T any] struct {
	Upstream Key
	Key      Key
	Fetch    func(ctx context.Context, upstream U) (T, error)

	// StaleTime overrides Options.StaleTime for the downstream entry.
	StaleTime time.Duration

	// Equal decides whether a rewritten upstream value is a new input. The
	// downstream refetches only when it is not. nil compares with cmp.Equal
	// treating nil and empty slices/maps as equal; supply Equal for types
	// with unexported fields or to compare only the part the producer reads.
	Equal func(a, b U) bool
}

// FanInQuery is a dependent query with several upstream keys. It becomes
// runnable when every upstream is in StatusSuccess; Fetch receives the
// upstream data in Upstreams order.
type FanInQuery[T any] struct {
	Upstreams []Key
	Key       Key
	Fetch     func(ctx context.Context, upstream []any) (T, error)
	StaleTime time.Duration
	Equal     func(a, b []any) bool
}

// Combined is the status a consumer of a gated pair (or fan-in group)
// observes.
type Combined struct {
	Status     Status
	Err        error
	Upstreams  []Entry
	Downstream Entry
}

// Combine folds an upstream and a downstream entry into one status:
// Error if either is Error (upstream error wins), Success only when both are
// Success, Loading otherwise - including while the upstream has not yet
// succeeded.
func Combine(up, down Entry) Combined {
	return CombineAll([]Entry{up}, down)
}

// CombineAll is Combine for several upstreams; the first upstream error in
// order wins over later ones and over the downstream error.
func CombineAll(ups []Entry, down Entry) Combined {
	c := Combined{Upstreams: ups, Downstream: down, Status: StatusLoading}
	allOK := true
	for _, u := range ups {
		if u.Status == StatusError && c.Err == nil {
			c.Status, c.Err = StatusError, u.Err
		}
		if u.Status != StatusSuccess {
			allOK = false
		}
	}
	switch {
	case c.Err != nil:
	case down.Status == StatusError:
		c.Status, c.Err = StatusError, down.Err
	case allOK && down.Status == StatusSuccess:
		c.Status = StatusSuccess
	}
	return c
}

// Gate wires a dependent query into the client: it follows its upstream
// keys and re-evaluates the downstream whenever an upstream is written.
//
//	upstream Idle/Loading/Error -> downstream untouched (Idle if never run)
//	upstream Success            -> executor rules apply with upstream data
//
// A rewrite of the upstream with an equal value does not refetch; a changed
// value starts a new downstream generation even if one is in flight.
type Gate struct {
	c         *Client
	key       Key
	upstreams []Key
	staleTime time.Duration
	input     func(ups []Entry) (any, bool)
	equal     func(a, b any) bool
	fetch     func(ctx context.Context, in any) (any, error)

	evalMu    sync.Mutex
	last      any
	hasLast   bool
	ensureReq atomic.Bool

	epoch  uint64 // store epoch at registration
	refs   int    // guarded by graph.mu
	unsubs []func()
}

// Depend registers dq and returns its gate. If a gate already owns dq.Key it
// is returned instead (the first registration's definition stays in force),
// so consumers sharing a dependent key share a single producer call.
func Depend[U, T any](c *Client, dq DependentQuery[U, T]) (*Gate, error) {
	eq := dq.Equal
	if eq == nil {
		eq = func(a, b U) bool { return cmp.Equal(a, b, cmpopts.EquateEmpty()) }
	}
	g := &Gate{
		c:         c,
		key:       dq.Key,
		upstreams: []Key{dq.Upstream},
		staleTime: dq.StaleTime,
		input: func(ups []Entry) (any, bool) {
			return Data[U](ups[0])
		},
		equal: func(a, b any) bool { return eq(a.(U), b.(U)) },
		fetch: func(ctx context.Context, in any) (any, error) {
			return dq.Fetch(ctx, in.(U))
		},
	}
	return c.attach(g)
}

// DependAll registers a fan-in dependent query; see Depend.
func DependAll[T any](c *Client, fq FanInQuery[T]) (*Gate, error) {
	if len(fq.Upstreams) == 0 {
		return nil, fmt.Errorf("querycache: fan-in query %s has no upstreams", fq.Key)
	}
	eq := fq.Equal
	if eq == nil {
		eq = func(a, b []any) bool { return cmp.Equal(a, b, cmpopts.EquateEmpty()) }
	}
	g := &Gate{
		c:         c,
		key:       fq.Key,
		upstreams: append([]Key(nil), fq.Upstreams...),
		staleTime: fq.StaleTime,
		input: func(ups []Entry) (any, bool) {
			in := make([]any, len(ups))
			for i, u := range ups {
				if u.Status != StatusSuccess {
					return nil, false
				}
				in[i] = u.Data
			}
			return in, true
		},
		equal: func(a, b any) bool { return eq(a.([]any), b.([]any)) },
		fetch: func(ctx context.Context, in any) (any, error) {
			return fq.Fetch(ctx, in.([]any))
		},
	}
	return c.attach(g)
}

func (c *Client) attach(g *Gate) (*Gate, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	g.epoch = c.store.currentEpoch()
	got, err := c.graph.attach(g)
	if err != nil {
		return nil, err
	}
	if got != g {
		return got, nil
	}
	for _, up := range g.upstreams {
		g.unsubs = append(g.unsubs, c.store.Subscribe(up, func(Entry) { g.evaluate(false) }))
	}
	g.evaluate(true)
	return g, nil
}

// Key returns the downstream key.
func (g *Gate) Key() Key { return g.key }

// Ensure re-runs the subscription-time decision for the downstream. Called
// while the gate is evaluating, e.g. from a listener woken by that
// evaluation, it is folded into the running evaluation and returns at once.
func (g *Gate) Ensure() {
	g.ensureReq.Store(true)
	g.drainEnsure()
}

func (g *Gate) drainEnsure() {
	for g.ensureReq.Load() && g.evalMu.TryLock() {
		if g.ensureReq.Swap(false) {
			g.evaluateLocked(true)
		}
		g.evalMu.Unlock()
	}
}

// Status returns the combined status of the upstreams and the downstream.
func (g *Gate) Status() Combined {
	ups := make([]Entry, len(g.upstreams))
	for i, k := range g.upstreams {
		ups[i] = g.c.store.Get(k)
	}
	return CombineAll(ups, g.c.store.Get(g.key))
}

// Subscribe calls fn with the combined status after every write to an
// upstream or the downstream key.
func (g *Gate) Subscribe(fn func(Combined)) (unsubscribe func()) {
	keys := append([]Key{g.key}, g.upstreams...)
	unsubs := make([]func(), 0, len(keys))
	for _, k := range keys {
		unsubs = append(unsubs, g.c.store.Subscribe(k, func(Entry) { fn(g.Status()) }))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Wait blocks until the combined status is Success or Error.
func (g *Gate) Wait(ctx context.Context) (Combined, error) {
	settled := make(chan Combined, 1)
	unsub := g.Subscribe(func(cb Combined) {
		if cb.Status == StatusLoading {
			return
		}
		select {
		case settled <- cb:
		default:
		}
	})
	defer unsub()

	if cb := g.Status(); cb.Status != StatusLoading {
		return cb, nil
	}
	select {
	case cb := <-settled:
		return cb, nil
	case <-ctx.Done():
		return g.Status(), ctx.Err()
	}
}

// Close releases this reference to the gate. The last Close stops following
// the upstreams; the downstream entry stays in the store.
func (g *Gate) Close() {
	if !g.c.graph.detach(g) {
		return
	}
	for _, u := range g.unsubs {
		u()
	}
}

func (g *Gate) evaluate(subscribed bool) {
	g.evalMu.Lock()
	g.evaluateLocked(subscribed)
	g.evalMu.Unlock()
	g.drainEnsure()
}

func (g *Gate) evaluateLocked(subscribed bool) {
	ups := make([]Entry, len(g.upstreams))
	for i, k := range g.upstreams {
		ups[i] = g.c.store.Get(k)
	}
	in, ok := g.input(ups)
	if !ok {
		return
	}
	changed := g.hasLast && !g.equal(g.last, in)
	first := !g.hasLast
	g.last, g.hasLast = in, true
	if !changed && !first && !subscribed {
		return
	}

	q := fetchSpec{
		key: g.key,
		fetch: func(ctx context.Context) (any, error) {
			return g.fetch(ctx, in)
		},
		staleTime: g.staleTime,
	}
	g.c.ensure(q, changed)
}
