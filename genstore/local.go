package genstore

import (
	"context"
	"sync"
	"time"
)

// LocalOptions tune an in-process GenStore. The zero value never prunes.
type LocalOptions struct {
	CleanupInterval time.Duration    // 0 disables the background sweep
	Retention       time.Duration    // counters idle this long are dropped
	Now             func() time.Time // nil => time.Now
}

type localGen struct {
	gen    uint64
	bumped time.Time
}

// Local keeps generations in process memory. A pruned counter reads as 0
// again; records written under an older non-zero generation then fail
// validation and self-heal.
type Local struct {
	mu   sync.RWMutex
	gens map[string]localGen
	now  func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

var _ GenStore = (*Local)(nil)

func NewLocal(opts LocalOptions) *Local {
	s := &Local{gens: make(map[string]localGen), now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CleanupInterval > 0 && opts.Retention > 0 {
		s.stop = make(chan struct{})
		s.wg.Add(1)
		go s.sweep(opts.CleanupInterval, opts.Retention)
	}
	return s
}

func (s *Local) sweep(every, retention time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-s.stop:
			return
		}
	}
}

func (s *Local) Snapshot(_ context.Context, key string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[key].gen, nil
}

// SnapshotMany reads every key under one read lock.
func (s *Local) SnapshotMany(_ context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	s.mu.RLock()
	for _, k := range keys {
		out[k] = s.gens[k].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, key string) (uint64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.gens[key]
	g.gen++
	g.bumped = now
	s.gens[key] = g
	return g.gen, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.gens {
		if g.bumped.Before(cutoff) {
			delete(s.gens, k)
		}
	}
}

// Close stops the sweep. It is safe to call more than once.
func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
			s.wg.Wait()
		}
	})
	return nil
}
