package querycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They run on the goroutine that caused the event, outside the store lock.
type Hooks interface {
	// A producer call was started for key under generation gen.
	FetchStarted(key Key, gen uint64)

	// A read found the key already Loading and joined the in-flight fetch.
	FetchDeduped(key Key)

	// The current generation of key settled with an error.
	FetchFailed(key Key, err error)

	// A producer result arrived for gen but the entry had moved on to current.
	StaleResponseDiscarded(key Key, gen, current uint64)

	// A mutation patch left key untouched.
	// reason ∈ {"no_baseline", "type_mismatch"}
	PatchSkipped(key Key, reason string)

	// A mutation was invoked while a previous run was still pending.
	MutationRejected(name string)

	// A mutation run finished; err is nil on success.
	MutationFinished(name string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(Key, uint64)                   {}
func (NopHooks) FetchDeduped(Key)                           {}
func (NopHooks) FetchFailed(Key, error)                     {}
func (NopHooks) StaleResponseDiscarded(Key, uint64, uint64) {}
func (NopHooks) PatchSkipped(Key, string)                   {}
func (NopHooks) MutationRejected(string)                    {}
func (NopHooks) MutationFinished(string, error)             {}

// MultiHooks forwards every event to each of its members in order.
type MultiHooks []Hooks

func (m MultiHooks) FetchStarted(key Key, gen uint64) {
	for _, h := range m {
		h.FetchStarted(key, gen)
	}
}

func (m MultiHooks) FetchDeduped(key Key) {
	for _, h := range m {
		h.FetchDeduped(key)
	}
}

func (m MultiHooks) FetchFailed(key Key, err error) {
	for _, h := range m {
		h.FetchFailed(key, err)
	}
}

func (m MultiHooks) StaleResponseDiscarded(key Key, gen, current uint64) {
	for _, h := range m {
		h.StaleResponseDiscarded(key, gen, current)
	}
}

func (m MultiHooks) PatchSkipped(key Key, reason string) {
	for _, h := range m {
		h.PatchSkipped(key, reason)
	}
}

func (m MultiHooks) MutationRejected(name string) {
	for _, h := range m {
		h.MutationRejected(name)
	}
}

func (m MultiHooks) MutationFinished(name string, err error) {
	for _, h := range m {
		h.MutationFinished(name, err)
	}
}
