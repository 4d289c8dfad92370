package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	qc "github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/fakestore"
	"github.com/unkn0wn-root/querycache/genstore"
	asynchook "github.com/unkn0wn-root/querycache/hooks/async"
	"github.com/unkn0wn-root/querycache/internal/config"
	logruslog "github.com/unkn0wn-root/querycache/log/logrus"
	sloglog "github.com/unkn0wn-root/querycache/log/slog"
	zaplog "github.com/unkn0wn-root/querycache/log/zap"
	"github.com/unkn0wn-root/querycache/orders"
	"github.com/unkn0wn-root/querycache/promhooks"
	"github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	"github.com/unkn0wn-root/querycache/provider/memory"
	redisprov "github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
	"github.com/unkn0wn-root/querycache/sloghooks"
	"github.com/unkn0wn-root/querycache/tier"
)

const (
	ristrettoCounters = 1 << 20
	ristrettoMaxCost  = 64 << 20
	redisGenTTL       = 24 * time.Hour
	shutdownTimeout   = 5 * time.Second
)

// app owns everything one command invocation needs. closers run in reverse
// registration order.
type app struct {
	log     qc.Logger
	client  *qc.Client
	svc     *orders.Service
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	a := &app{}
	if err := a.init(ctx, cfg, logOut); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	var err error
	a.log, err = a.newLogger(cfg, logOut)
	if err != nil {
		return err
	}
	hooks, err := a.newHooks(cfg, logOut)
	if err != nil {
		return err
	}
	products, err := newTier(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	if products != nil {
		a.onClose(products.Close)
	}

	var statuses fakestore.StatusSource = fakestore.Random{}
	if cfg.StickyStatus {
		statuses = fakestore.NewSticky(nil)
	}
	api, err := fakestore.New(fakestore.Options{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.HTTPTimeout,
		MaxTries: cfg.Retries,
		Statuses: statuses,
		Products: products,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	a.client = qc.New(qc.Options{Logger: a.log, Hooks: hooks, StaleTime: cfg.StaleTime})
	a.onClose(a.client.Close)
	a.svc = orders.NewService(a.client, api)
	return nil
}

func (a *app) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.log != nil {
			a.log.Warn("shutdown step failed", qc.Fields{"err": err})
		}
	}
	a.closers = nil
}

func (a *app) newLogger(cfg config.Config, w io.Writer) (qc.Logger, error) {
	switch cfg.Log {
	case "zap":
		lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(w), lvl)
		l := zap.New(core)
		a.onClose(func(context.Context) error {
			_ = l.Sync()
			return nil
		})
		return zaplog.New(l), nil
	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		return logruslog.New(l), nil
	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
		return sloglog.Logger{L: stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl}))}, nil
	default:
		return nil, fmt.Errorf("unknown logger %q", cfg.Log)
	}
}

// newHooks traces engine events at debug level and counts them when a
// metrics address is configured.
func (a *app) newHooks(cfg config.Config, w io.Writer) (qc.Hooks, error) {
	var hs qc.MultiHooks
	if cfg.LogLevel == "debug" {
		l := stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))
		h := asynchook.New(sloghooks.New(l, sloghooks.Options{DedupEvery: 10}), 1, 256)
		a.onClose(func(context.Context) error {
			h.Close()
			return nil
		})
		hs = append(hs, h)
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		ph, err := promhooks.New(reg, "ordersync")
		if err != nil {
			return nil, err
		}
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", qc.Fields{"addr": cfg.MetricsAddr, "err": err})
			}
		}()
		a.onClose(srv.Shutdown)
		hs = append(hs, ph)
	}
	if len(hs) == 0 {
		return qc.NopHooks{}, nil
	}
	return hs, nil
}

// newTier builds the product response tier, or nil when disabled.
func newTier(ctx context.Context, cfg config.Config, log qc.Logger) (*tier.Tier[orders.Product], error) {
	if cfg.Tier == "none" {
		return nil, nil
	}
	cd, err := codec.ByName[orders.Product](cfg.TierCodec)
	if err != nil {
		return nil, err
	}

	var (
		p    provider.Provider
		gens genstore.GenStore
	)
	switch cfg.Tier {
	case "memory":
		p = memory.New(nil)
	case "ristretto":
		p, err = ristretto.New(ristretto.Config{NumCounters: ristrettoCounters, MaxCost: ristrettoMaxCost})
	case "bigcache":
		p, err = bigcache.New(ctx, bigcache.Config{LifeWindow: cfg.TierTTL})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		p, err = redisprov.New(redisprov.Config{Client: rdb, Prefix: "ordersync:", CloseClient: true})
		gens = genstore.NewRedis(rdb, "ordersync", redisGenTTL)
	default:
		return nil, fmt.Errorf("unknown tier %q", cfg.Tier)
	}
	if err != nil {
		return nil, fmt.Errorf("tier %s: %w", cfg.Tier, err)
	}

	return tier.New(tier.Options[orders.Product]{
		Namespace:  "products",
		Provider:   p,
		Codec:      cd,
		GenStore:   gens,
		Logger:     log,
		DefaultTTL: cfg.TierTTL,
		BulkTTL:    cfg.TierTTL,
	})
}
