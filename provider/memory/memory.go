// Package memory is a map-backed Provider with per-entry TTLs. It is the
// default tier store of the command and the store used in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/unkn0wn-root/querycache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero: no expiry
}

type Provider struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

var _ provider.Provider = (*Provider)(nil)

// New returns an empty store. now may be nil.
func New(now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{m: make(map[string]entry), now: now}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !p.now().Before(e.exp) {
		p.mu.Lock()
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{v: value}
	if ttl > 0 {
		e.exp = p.now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = e
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Provider) Close(context.Context) error { return nil }

// Keys lists the stored keys in order, expired ones included.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.m))
	for k := range p.m {
		out = append(out, k)
	}
	p.mu.RUnlock()
	slices.Sort(out)
	return out
}
