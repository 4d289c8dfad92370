package fakestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	qc "github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/orders"
	"github.com/unkn0wn-root/querycache/tier"
)

const (
	DefaultBaseURL = "https://fakestoreapi.com"

	defaultTimeout  = 10 * time.Second
	defaultTries    = 3
	defaultInterval = 200 * time.Millisecond
	defaultParallel = 4
	maxBody         = 4 << 20
)

// BreakerConfig tunes the circuit breaker. Zero fields take the defaults
// noted.
type BreakerConfig struct {
	MaxRequests  uint32        // half-open probes; 0 => 5
	Interval     time.Duration // closed-state count reset; 0 => 30s
	Timeout      time.Duration // open -> half-open; 0 => 60s
	MinRequests  uint32        // before the ratio counts; 0 => 5
	FailureRatio float64       // trip threshold; 0 => 0.8
}

type Options struct {
	BaseURL    string       // "" => DefaultBaseURL
	HTTPClient *http.Client // nil => a client with Timeout
	Timeout    time.Duration

	// MaxTries caps attempts per request, first one included. 0 => 3.
	MaxTries uint
	// RetryInterval is the first backoff delay. 0 => 200ms.
	RetryInterval time.Duration
	Breaker       BreakerConfig

	// Statuses assigns cart statuses. nil => Random.
	Statuses StatusSource
	// Products, when set, serves product lookups before the network and is
	// filled with every product fetched.
	Products *tier.Tier[orders.Product]
	// Parallel bounds concurrent product requests. 0 => 4.
	Parallel int

	Logger qc.Logger
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	tries    uint
	interval time.Duration
	statuses StatusSource
	products *tier.Tier[orders.Product]
	parallel int
	log      qc.Logger
}

var _ orders.API = (*Client)(nil)

func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fakestore: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("fakestore: base url %q: want http or https", raw)
	}
	c := &Client{
		base:     base,
		http:     opts.HTTPClient,
		tries:    opts.MaxTries,
		interval: opts.RetryInterval,
		statuses: opts.Statuses,
		products: opts.Products,
		parallel: opts.Parallel,
		log:      opts.Logger,
	}
	if c.http == nil {
		t := opts.Timeout
		if t <= 0 {
			t = defaultTimeout
		}
		c.http = &http.Client{Timeout: t}
	}
	if c.tries == 0 {
		c.tries = defaultTries
	}
	if c.interval <= 0 {
		c.interval = defaultInterval
	}
	if c.statuses == nil {
		c.statuses = Random{}
	}
	if c.parallel <= 0 {
		c.parallel = defaultParallel
	}
	if c.log == nil {
		c.log = qc.NopLogger{}
	}
	c.cb = newBreaker(base.Host, opts.Breaker, c.log)
	return c, nil
}

func newBreaker(name string, cfg BreakerConfig, log qc.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 5
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.8
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", qc.Fields{"breaker": name, "from": from.String(), "to": to.String()})
		},
		// Client errors and cancellations say nothing about the remote's
		// health.
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err) || errors.Is(err, context.Canceled)
		},
	})
}

// get fetches path and decodes the body into T.
func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	u := c.base.JoinPath(path).String()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.MaxInterval = 16 * c.interval

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		v, err := c.cb.Execute(func() (interface{}, error) {
			return c.do(ctx, u)
		})
		if err == nil {
			return v.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !retryable(err) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		c.log.Debug("request failed, retrying", qc.Fields{"url": u, "attempt": attempt, "err": err})
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.tries))

	var zero T
	if err != nil {
		return zero, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("null")
	}
	dec := codec.Limit[T]{Inner: codec.JSON[T]{}, MaxDecode: maxBody}
	v, err := dec.Decode(body)
	if err != nil {
		return zero, fmt.Errorf("fakestore: decode %s: %w", u, err)
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Method: req.Method, URL: u, Code: resp.StatusCode, Body: string(snippet)}
	}
	return body, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]orders.Order, error) {
	list, err := get[[]orders.Order](ctx, c, "carts")
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Status = c.statuses.Status(list[i].ID)
	}
	return list, nil
}

func (c *Client) GetOrder(ctx context.Context, id int) (orders.Order, error) {
	o, err := c.cart(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = c.statuses.Status(id)
	return o, nil
}

// UpdateOrderStatus re-reads the cart and returns it with status. The
// StatusSource is told so a sticky source keeps serving it.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int, status orders.Status) (orders.Order, error) {
	o, err := c.cart(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = status
	c.statuses.Remember(id, status)
	return o, nil
}

func (c *Client) cart(ctx context.Context, id int) (orders.Order, error) {
	o, err := get[*orders.Order](ctx, c, "carts/"+strconv.Itoa(id))
	if err != nil {
		return orders.Order{}, err
	}
	if o == nil || o.ID == 0 {
		return orders.Order{}, fmt.Errorf("cart %d: %w", id, ErrNotFound)
	}
	return *o, nil
}
