package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://fakestoreapi.com" || cfg.Tier != "none" || cfg.Log != "zap" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StaleTime != 5*time.Minute || cfg.Retries != 3 || cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ORDERSYNC_TIER", "redis")
	t.Setenv("ORDERSYNC_TIER_CODEC", "msgpack")
	t.Setenv("ORDERSYNC_STALE_TIME", "30s")
	t.Setenv("ORDERSYNC_STICKY_STATUS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tier != "redis" || cfg.TierCodec != "msgpack" || cfg.StaleTime != 30*time.Second || !cfg.StickyStatus {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("ORDERSYNC_RETRIES", "many")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	t.Setenv("ORDERSYNC_TIER", "memcached")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "Tier") {
		t.Fatalf("expected validation error on Tier, got %v", err)
	}
}
