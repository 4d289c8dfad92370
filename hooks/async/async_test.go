package asynchook

import (
	"sync"
	"testing"

	qc "github.com/unkn0wn-root/querycache"
)

type countHooks struct {
	qc.NopHooks
	mu      sync.Mutex
	started int
	block   chan struct{}
}

func (c *countHooks) FetchStarted(qc.Key, uint64) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 100)
	for i := 0; i < 50; i++ {
		h.FetchStarted(qc.NewKey("orders"), uint64(i))
	}
	h.Close()
	if inner.started != 50 {
		t.Fatalf("delivered %d of 50", inner.started)
	}
	h.FetchStarted(qc.NewKey("orders"), 51)
	if h.Dropped() != 1 {
		t.Fatalf("dropped = %d after close, want 1", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)
	// one event may be held by the worker, one sits in the queue
	for i := 0; i < 10; i++ {
		h.FetchStarted(qc.NewKey("orders"), uint64(i))
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped = %d, want >= 8", h.Dropped())
	}
	close(inner.block)
	h.Close()
}
