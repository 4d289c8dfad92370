package querycache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitFor = 2 * time.Second

type result[T any] struct {
	v   T
	err error
}

// fakeProducer hands every call to the test, which answers through the
// returned channel. Calls block until answered or the client closes.
type fakeProducer[T any] struct {
	calls chan producerCall[T]
	n     atomic.Int32
}

type producerCall[T any] struct {
	arg   any
	reply chan result[T]
}

func newFakeProducer[T any]() *fakeProducer[T] {
	return &fakeProducer[T]{calls: make(chan producerCall[T], 16)}
}

func (f *fakeProducer[T]) fetch(ctx context.Context) (T, error) {
	return f.fetchWith(ctx, nil)
}

func (f *fakeProducer[T]) fetchWith(ctx context.Context, arg any) (T, error) {
	f.n.Add(1)
	c := producerCall[T]{arg: arg, reply: make(chan result[T], 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *fakeProducer[T]) next(t *testing.T) producerCall[T] {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitFor):
		t.Fatalf("producer was not called")
		return producerCall[T]{}
	}
}

func (f *fakeProducer[T]) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected producer call (arg=%v)", c.arg)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recHooks records events; discarded signals every stale response.
type recHooks struct {
	NopHooks
	mu        sync.Mutex
	started   []string
	deduped   int
	failed    []error
	skipped   []string
	rejected  int
	discarded chan uint64
}

func newRecHooks() *recHooks { return &recHooks{discarded: make(chan uint64, 16)} }

func (h *recHooks) FetchStarted(k Key, _ uint64) {
	h.mu.Lock()
	h.started = append(h.started, k.String())
	h.mu.Unlock()
}

func (h *recHooks) FetchDeduped(Key) {
	h.mu.Lock()
	h.deduped++
	h.mu.Unlock()
}

func (h *recHooks) FetchFailed(_ Key, err error) {
	h.mu.Lock()
	h.failed = append(h.failed, err)
	h.mu.Unlock()
}

func (h *recHooks) StaleResponseDiscarded(_ Key, gen, _ uint64) { h.discarded <- gen }

func (h *recHooks) PatchSkipped(k Key, reason string) {
	h.mu.Lock()
	h.skipped = append(h.skipped, k.String()+":"+reason)
	h.mu.Unlock()
}

func (h *recHooks) MutationRejected(string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *recHooks) startedCount(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.started {
		if s == key {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func waitSettled(t *testing.T, c *Client, key Key) Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	e, err := c.Wait(ctx, key)
	if err != nil {
		t.Fatalf("Wait(%s): %v (status=%s)", key, err, e.Status)
	}
	return e
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *recHooks) failedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.failed)
}
