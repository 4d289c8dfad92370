// Package config loads the ordersync command settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	APIURL    string        `env:"ORDERSYNC_API_URL" envDefault:"https://fakestoreapi.com" validate:"required,url"`
	StaleTime time.Duration `env:"ORDERSYNC_STALE_TIME" envDefault:"5m"`

	Tier      string        `env:"ORDERSYNC_TIER" envDefault:"none" validate:"oneof=none memory ristretto bigcache redis"`
	TierCodec string        `env:"ORDERSYNC_TIER_CODEC" envDefault:"json" validate:"oneof=json cbor msgpack"`
	TierTTL   time.Duration `env:"ORDERSYNC_TIER_TTL" envDefault:"10m"`
	RedisAddr string        `env:"ORDERSYNC_REDIS_ADDR" envDefault:"localhost:6379"`

	Log      string `env:"ORDERSYNC_LOG" envDefault:"zap" validate:"oneof=zap logrus slog"`
	LogLevel string `env:"ORDERSYNC_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	HTTPTimeout time.Duration `env:"ORDERSYNC_HTTP_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	Retries     uint          `env:"ORDERSYNC_RETRIES" envDefault:"3" validate:"gte=1"`

	// MetricsAddr, when set, serves Prometheus metrics on it.
	MetricsAddr string `env:"ORDERSYNC_METRICS_ADDR"`
	// StickyStatus keeps the first status drawn for each order.
	StickyStatus bool `env:"ORDERSYNC_STICKY_STATUS"`
}

var validate = validator.New()

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
