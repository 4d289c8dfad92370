package querycache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Client is the query executor. It owns the Store, starts producers and
// writes their results back under the generation guard.
type Client struct {
	store     *Store
	log       Logger
	hooks     Hooks
	now       func() time.Time
	staleTime time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	graph *graph
}

func newClient(opts Options) *Client {
	c := &Client{
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
		staleTime: coalesce(opts.StaleTime, defaultStaleTime),
		now:       opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.store = newStore(c.now)
	c.graph = newGraph()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Store returns the client's cache store.
func (c *Client) Store() *Store { return c.store }

// Reset drops every entry, listener and dependent gate so test cases can
// share a client. Fetches still in flight are discarded when they return.
// Gates obtained before Reset are inert; Depend again to follow the keys.
func (c *Client) Reset() {
	c.store.Reset()
	c.graph.reset()
}

// Close stops accepting fetches, cancels the context handed to running
// producers and waits for them to return or for ctx to end.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchSpec is a Query with its value type erased.
type fetchSpec struct {
	key       Key
	fetch     func(ctx context.Context) (any, error)
	enabled   func(*Store) bool
	staleTime time.Duration
}

func (q Query[T]) spec() fetchSpec {
	return fetchSpec{
		key: q.Key,
		fetch: func(ctx context.Context) (any, error) {
			return q.Fetch(ctx)
		},
		enabled:   q.Enabled,
		staleTime: q.StaleTime,
	}
}

// Ensure runs the fetch decision for q as a read would and returns the entry
// as left by that decision. It never blocks on the producer.
func Ensure[T any](c *Client, q Query[T]) Entry {
	return c.ensure(q.spec(), false)
}

// Refetch starts a new fetch for q even if one is in flight; the older
// fetch's result will be discarded when it arrives.
func Refetch[T any](c *Client, q Query[T]) Entry {
	return c.ensure(q.spec(), true)
}

// Observe subscribes fn to q's key and then runs the fetch decision: this is
// the subscription-time staleness check. fn may be nil to only keep the
// decision.
func Observe[T any](c *Client, q Query[T], fn Listener) (unsubscribe func()) {
	unsubscribe = func() {}
	if fn != nil {
		unsubscribe = c.store.Subscribe(q.Key, fn)
	}
	c.ensure(q.spec(), false)
	return unsubscribe
}

// Fetch runs the fetch decision for q and waits for the entry to settle.
// It returns the data on success and the producer's original error on
// failure. A disabled query returns its existing Success data or Error, or
// ErrQueryDisabled when the entry is Idle.
func Fetch[T any](ctx context.Context, c *Client, q Query[T]) (T, error) {
	var zero T
	e := c.ensure(q.spec(), false)
	if e.Status == StatusIdle {
		if c.closed.Load() {
			return zero, ErrClosed
		}
		return zero, ErrQueryDisabled
	}
	e, err := c.Wait(ctx, q.Key)
	if err != nil {
		return zero, err
	}
	switch e.Status {
	case StatusSuccess:
		return dataAs[T](e)
	case StatusError:
		return zero, e.Err
	default:
		return zero, ErrQueryDisabled
	}
}

// Wait blocks until key's entry is not Loading and returns it.
func (c *Client) Wait(ctx context.Context, key Key) (Entry, error) {
	settled := make(chan Entry, 1)
	unsub := c.store.Subscribe(key, func(e Entry) {
		if e.Status == StatusLoading {
			return
		}
		select {
		case settled <- e:
		default:
		}
	})
	defer unsub()

	if e := c.store.Get(key); e.Status != StatusLoading {
		return e, nil
	}
	select {
	case e := <-settled:
		return e, nil
	case <-ctx.Done():
		return c.store.Get(key), ctx.Err()
	}
}

// Invalidate marks every Success entry under prefix as stale, so the next
// read or subscription fetches it again. Data stays readable meanwhile.
func (c *Client) Invalidate(prefix Key) {
	c.store.Batch(func(tx *Tx) {
		for _, k := range tx.keys(prefix) {
			tx.modify(k, func(e Entry) (Entry, bool) {
				if e.Status != StatusSuccess || e.invalidated {
					return e, false
				}
				e.invalidated = true
				return e, true
			})
		}
	})
}

// ensure decides whether to start a fetch:
//   - Idle or Error: fetch.
//   - Success: fetch iff stale.
//   - Loading: join the in-flight fetch, unless force is set.
//
// force starts a new generation regardless of state; disabled queries never
// start.
func (c *Client) ensure(q fetchSpec, force bool) Entry {
	if c.closed.Load() || (q.enabled != nil && !q.enabled(c.store)) {
		return c.store.Get(q.key)
	}
	staleTime := coalesce(q.staleTime, c.staleTime)
	now := c.now()

	var (
		gen     uint64
		start   bool
		deduped bool
		after   Entry
	)
	c.store.update(q.key, func(e Entry) (Entry, bool) {
		after = e
		switch {
		case force:
		case e.Status == StatusLoading:
			deduped = true
			return e, false
		case e.Status == StatusSuccess && !e.Stale(now, staleTime):
			return e, false
		}
		start = true
		gen = e.Generation + 1
		after = e.loading(gen)
		return after, true
	})

	switch {
	case deduped:
		c.hooks.FetchDeduped(q.key)
		c.log.Debug("fetch deduplicated", Fields{"key": q.key.String()})
	case start:
		c.hooks.FetchStarted(q.key, gen)
		c.log.Debug("fetch started", Fields{"key": q.key.String(), "gen": gen})
		c.wg.Add(1)
		go c.run(q, gen)
	}
	return after
}

func (c *Client) run(q fetchSpec, gen uint64) {
	defer c.wg.Done()
	v, err := c.call(q)

	var (
		applied bool
		current uint64
	)
	c.store.update(q.key, func(e Entry) (Entry, bool) {
		current = e.Generation
		if e.Generation != gen || e.Status != StatusLoading {
			return e, false
		}
		applied = true
		if err != nil {
			return e.failed(err), true
		}
		return e.succeeded(v, c.now()), true
	})

	switch {
	case !applied:
		c.hooks.StaleResponseDiscarded(q.key, gen, current)
		c.log.Debug(ErrStaleResponseDiscarded.Error(), Fields{"key": q.key.String(), "gen": gen, "current": current})
	case err != nil:
		c.hooks.FetchFailed(q.key, err)
		c.log.Warn("fetch failed", Fields{"key": q.key.String(), "gen": gen, "err": err})
	}
}

func (c *Client) call(q fetchSpec) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Key: q.key, Value: r}
		}
	}()
	return q.fetch(c.ctx)
}
