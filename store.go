package querycache

import (
	"sync"
	"time"
)

// Listener receives the entry written by a Set/Batch call.
// Listeners run synchronously on the writing goroutine after the store lock
// is released, so they may read from and write to the store.
type Listener func(Entry)

// Store maps keys to entries and owns their lifecycle. Entries are created
// lazily as Idle on first access and are never evicted; Reset drops them all.
//
// The store's mutex is the single serialization point for all writes.
type Store struct {
	mu       sync.Mutex
	slots    map[string]*slot
	prefixes map[uint64]prefixSub
	nextID   uint64
	now      func() time.Time

	// genFloor is the highest generation seen before the last Reset; new
	// entries start there so generations never repeat.
	genFloor uint64
	// epoch counts Resets.
	epoch uint64
}

type slot struct {
	key       Key
	entry     Entry
	listeners map[uint64]Listener
}

type prefixSub struct {
	prefix Key
	fn     Listener
}

// NewStore returns an empty store using time.Now as its clock.
func NewStore() *Store { return newStore(time.Now) }

func newStore(now func() time.Time) *Store {
	return &Store{
		slots:    make(map[string]*slot),
		prefixes: make(map[uint64]prefixSub),
		now:      now,
	}
}

// Get returns the current entry for key, creating an Idle one on first access.
func (s *Store) Get(key Key) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotLocked(key).entry
}

// Set applies updater to key's entry and notifies key listeners and every
// prefix listener whose prefix matches key. Set never fails; the result of
// updater is normalized so Data/Err match the resulting status and the
// generation never goes backwards.
func (s *Store) Set(key Key, updater func(Entry) Entry) {
	s.Batch(func(tx *Tx) { tx.Set(key, updater) })
}

// Batch runs fn with exclusive access to the store and notifies listeners of
// every touched key only after fn returns, so no listener observes a state in
// which only part of the batch is applied. Each listener is invoked at most
// once per touched key.
//
// fn must use tx for all store access; calling methods on s from inside fn
// deadlocks.
func (s *Store) Batch(fn func(tx *Tx)) {
	calls := s.apply(fn)
	for _, c := range calls {
		c.fn(c.entry)
	}
}

// update writes only when fn reports a change. It backs the executor, where
// most decisions leave the entry alone and must not wake listeners.
func (s *Store) update(key Key, fn func(Entry) (Entry, bool)) {
	s.Batch(func(tx *Tx) { tx.modify(key, fn) })
}

func (s *Store) apply(fn func(tx *Tx)) []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{s: s}
	fn(tx)
	tx.done = true
	return s.collectLocked(tx.touched)
}

type notification struct {
	fn    Listener
	entry Entry
}

func (s *Store) collectLocked(touched []string) []notification {
	var out []notification
	for _, id := range touched {
		sl := s.slots[id]
		if sl == nil {
			continue
		}
		for _, fn := range sl.listeners {
			out = append(out, notification{fn: fn, entry: sl.entry})
		}
		for _, ps := range s.prefixes {
			if sl.key.HasPrefix(ps.prefix) {
				out = append(out, notification{fn: ps.fn, entry: sl.entry})
			}
		}
	}
	return out
}

// Subscribe registers fn for writes to key and returns an unsubscribe func.
// Unsubscribe is idempotent and safe to call after Reset.
func (s *Store) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.slotLocked(key).listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sl := s.slots[key.id]; sl != nil {
			delete(sl.listeners, id)
		}
	}
}

// SubscribePrefix registers fn for writes to any key that has prefix as its
// prefix. Collection-shaped consumers use it to follow a family of keys.
func (s *Store) SubscribePrefix(prefix Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.prefixes[id] = prefixSub{prefix: prefix, fn: fn}
	return func() {
		s.mu.Lock()
		delete(s.prefixes, id)
		s.mu.Unlock()
	}
}

// Keys returns the keys of all entries created so far, in no particular order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.key)
	}
	return out
}

// Reset drops every entry and listener, including the upstream
// subscriptions of dependent gates; Depend registers a fresh gate afterwards.
// Client.Reset also forgets the gates themselves.
//
// Generations keep counting across Reset, so results of fetches started
// before it are discarded by the generation check.
func (s *Store) Reset() {
	s.mu.Lock()
	for _, sl := range s.slots {
		if sl.entry.Generation > s.genFloor {
			s.genFloor = sl.entry.Generation
		}
	}
	s.slots = make(map[string]*slot)
	s.prefixes = make(map[uint64]prefixSub)
	s.epoch++
	s.mu.Unlock()
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) slotLocked(key Key) *slot {
	sl, ok := s.slots[key.id]
	if !ok {
		sl = &slot{
			key:       key,
			entry:     Entry{Key: key, Generation: s.genFloor},
			listeners: make(map[uint64]Listener),
		}
		s.slots[key.id] = sl
	}
	return sl
}

// Tx is the store handle passed to Batch. It is only valid inside the Batch
// callback.
type Tx struct {
	s       *Store
	touched []string
	seen    map[string]struct{}
	skipped []SkippedPatch
	done    bool
}

// SkippedPatch records a Tx.Update that left its key untouched.
type SkippedPatch struct {
	Key    Key
	Reason string
}

// Get returns the entry for key as modified so far in this batch.
func (tx *Tx) Get(key Key) Entry {
	tx.check()
	return tx.s.slotLocked(key).entry
}

// Set applies updater to key's entry; see Store.Set.
func (tx *Tx) Set(key Key, updater func(Entry) Entry) {
	tx.modify(key, func(e Entry) (Entry, bool) { return updater(e), true })
}

// SetData replaces key's data with v and leaves the entry in StatusSuccess.
// The generation is advanced so that a fetch in flight for key cannot
// overwrite v with an older response.
func (tx *Tx) SetData(key Key, v any) {
	now := tx.s.now()
	tx.Set(key, func(e Entry) Entry {
		e.Generation++
		return e.succeeded(v, now)
	})
}

// Update transforms key's data with fn only when the entry is in
// StatusSuccess. Idle, Loading and Error entries have no baseline to patch;
// they are left untouched, recorded as skipped, and Update returns false.
func (tx *Tx) Update(key Key, fn func(old any) any) bool {
	now := tx.s.now()
	var ok bool
	tx.modify(key, func(e Entry) (Entry, bool) {
		if e.Status != StatusSuccess {
			return e, false
		}
		ok = true
		return e.succeeded(fn(e.Data), now), true
	})
	if !ok {
		tx.skip(key, "no_baseline")
	}
	return ok
}

// Skipped returns the patches skipped so far in this batch.
func (tx *Tx) Skipped() []SkippedPatch {
	return append([]SkippedPatch(nil), tx.skipped...)
}

func (tx *Tx) skip(key Key, reason string) {
	tx.skipped = append(tx.skipped, SkippedPatch{Key: key, Reason: reason})
}

func (tx *Tx) modify(key Key, fn func(Entry) (Entry, bool)) {
	tx.check()
	sl := tx.s.slotLocked(key)
	next, changed := fn(sl.entry)
	if !changed {
		return
	}
	sl.entry = next.normalize(sl.key, sl.entry)
	if tx.seen == nil {
		tx.seen = make(map[string]struct{})
	}
	if _, ok := tx.seen[key.id]; !ok {
		tx.seen[key.id] = struct{}{}
		tx.touched = append(tx.touched, key.id)
	}
}

// keys returns the keys under prefix.
func (tx *Tx) keys(prefix Key) []Key {
	tx.check()
	var out []Key
	for _, sl := range tx.s.slots {
		if sl.key.HasPrefix(prefix) {
			out = append(out, sl.key)
		}
	}
	return out
}

func (tx *Tx) check() {
	if tx.done {
		panic("querycache: Tx used outside its Batch")
	}
}
