// Package promhooks counts querycache events with Prometheus counters.
// Keys are reduced to their first part ("orders", "order", ...) to keep
// label cardinality bounded.
package promhooks

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	qc "github.com/unkn0wn-root/querycache"
)

type Hooks struct {
	fetches   *prometheus.CounterVec
	deduped   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	discarded *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

var _ qc.Hooks = (*Hooks)(nil)

// New registers the counters on reg under namespace (e.g. "ordersync").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      name,
			Help:      help,
		}, labels)
	}
	h := &Hooks{
		fetches:   counter("fetches_total", "Producer calls started.", "resource"),
		deduped:   counter("fetches_deduplicated_total", "Reads that joined an in-flight fetch.", "resource"),
		failures:  counter("fetch_failures_total", "Fetches that settled with an error.", "resource"),
		discarded: counter("stale_responses_discarded_total", "Producer results dropped by the generation guard.", "resource"),
		skipped:   counter("patches_skipped_total", "Mutation patches that left an entry untouched.", "resource", "reason"),
		rejected:  counter("mutations_rejected_total", "Mutation runs rejected while one was pending.", "mutation"),
		mutations: counter("mutations_total", "Finished mutation runs.", "mutation", "result"),
	}
	for _, c := range []prometheus.Collector{h.fetches, h.deduped, h.failures, h.discarded, h.skipped, h.rejected, h.mutations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("promhooks: register: %w", err)
		}
	}
	return h, nil
}

// resource is the first part of k, the resource family.
func resource(k qc.Key) string {
	if k.Len() == 0 {
		return ""
	}
	return fmt.Sprint(k.Parts()[0])
}

func (h *Hooks) FetchStarted(k qc.Key, _ uint64) { h.fetches.WithLabelValues(resource(k)).Inc() }
func (h *Hooks) FetchDeduped(k qc.Key)           { h.deduped.WithLabelValues(resource(k)).Inc() }
func (h *Hooks) FetchFailed(k qc.Key, _ error)   { h.failures.WithLabelValues(resource(k)).Inc() }

func (h *Hooks) StaleResponseDiscarded(k qc.Key, _, _ uint64) {
	h.discarded.WithLabelValues(resource(k)).Inc()
}

func (h *Hooks) PatchSkipped(k qc.Key, reason string) {
	h.skipped.WithLabelValues(resource(k), reason).Inc()
}

func (h *Hooks) MutationRejected(name string) { h.rejected.WithLabelValues(name).Inc() }

func (h *Hooks) MutationFinished(name string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	h.mutations.WithLabelValues(name, result).Inc()
}
