package memory

import (
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New(nil)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("hit on empty store")
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if b, ok, _ := p.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("Get = %q %v", b, ok)
	}
	_ = p.Del(ctx, "k")
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("hit after Del")
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := New(func() time.Time { return now })

	_, _ = p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	now = now.Add(59 * time.Second)
	if _, ok, _ := p.Get(ctx, "k"); !ok {
		t.Fatalf("expired early")
	}
	now = now.Add(time.Second)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("served after TTL")
	}
	if keys := p.Keys(); len(keys) != 0 {
		t.Fatalf("expired key kept: %v", keys)
	}
}
