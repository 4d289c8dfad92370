// Package sloghooks reports querycache events through log/slog. The chatty
// events (fetch start, dedup) can be sampled.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	qc "github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FetchStartedEvery uint64
	DedupEvery        uint64
	// Redact rewrites keys before they are logged. nil logs Key.String().
	Redact func(qc.Key) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	startedCtr atomic.Uint64
	dedupCtr   atomic.Uint64
}

var _ qc.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) key(k qc.Key) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k.String()
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(k qc.Key, gen uint64) {
	if h.l == nil || !sample(h.opts.FetchStartedEvery, &h.startedCtr) {
		return
	}
	h.l.Debug("querycache.fetch_started", "key", h.key(k), "gen", gen)
}

func (h *Hooks) FetchDeduped(k qc.Key) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("querycache.fetch_deduped", "key", h.key(k))
}

func (h *Hooks) FetchFailed(k qc.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.fetch_failed", "key", h.key(k), "err", err)
}

func (h *Hooks) StaleResponseDiscarded(k qc.Key, gen, current uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("querycache.stale_response_discarded", "key", h.key(k), "gen", gen, "current", current)
}

func (h *Hooks) PatchSkipped(k qc.Key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.patch_skipped", "key", h.key(k), "reason", reason)
}

func (h *Hooks) MutationRejected(name string) {
	if h.l == nil {
		return
	}
	h.l.Info("querycache.mutation_rejected", "mutation", name)
}

func (h *Hooks) MutationFinished(name string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("querycache.mutation_failed", "mutation", name, "err", err)
		return
	}
	h.l.Debug("querycache.mutation_applied", "mutation", name)
}
