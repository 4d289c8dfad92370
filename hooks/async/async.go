// Package asynchook moves Hooks calls off the caller's goroutine. Events go
// through a bounded queue to a fixed set of workers; when the queue is full
// the event is dropped and counted.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FetchStartedEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//	c := querycache.New(querycache.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	qc "github.com/unkn0wn-root/querycache"
)

type Hooks struct {
	inner   qc.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ qc.Hooks = (*Hooks)(nil)

func New(inner qc.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k qc.Key, gen uint64) { h.try(func() { h.inner.FetchStarted(k, gen) }) }
func (h *Hooks) FetchDeduped(k qc.Key)             { h.try(func() { h.inner.FetchDeduped(k) }) }
func (h *Hooks) FetchFailed(k qc.Key, err error)   { h.try(func() { h.inner.FetchFailed(k, err) }) }
func (h *Hooks) StaleResponseDiscarded(k qc.Key, gen, cur uint64) {
	h.try(func() { h.inner.StaleResponseDiscarded(k, gen, cur) })
}
func (h *Hooks) PatchSkipped(k qc.Key, reason string) {
	h.try(func() { h.inner.PatchSkipped(k, reason) })
}
func (h *Hooks) MutationRejected(name string) { h.try(func() { h.inner.MutationRejected(name) }) }
func (h *Hooks) MutationFinished(name string, err error) {
	h.try(func() { h.inner.MutationFinished(name, err) })
}
