package querycache

import (
	"errors"
	"testing"
)

func TestMultiHooksFansOut(t *testing.T) {
	a, b := newRecHooks(), newRecHooks()
	m := MultiHooks{a, b}
	k := NewKey("orders")

	m.FetchStarted(k, 1)
	m.FetchDeduped(k)
	m.FetchFailed(k, errors.New("boom"))
	m.PatchSkipped(k, "no_baseline")
	m.MutationRejected("order-status")
	m.StaleResponseDiscarded(k, 1, 2)

	for i, h := range []*recHooks{a, b} {
		if h.startedCount("[orders]") != 1 || h.deduped != 1 || h.failedCount() != 1 || h.rejected != 1 {
			t.Fatalf("hooks[%d] missed events: %+v", i, h)
		}
		if len(h.skipped) != 1 || h.skipped[0] != "[orders]:no_baseline" {
			t.Fatalf("hooks[%d] skipped = %v", i, h.skipped)
		}
		if gen := <-h.discarded; gen != 1 {
			t.Fatalf("hooks[%d] discarded gen = %d", i, gen)
		}
	}
}
