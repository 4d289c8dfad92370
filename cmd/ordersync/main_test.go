package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fakeStore(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /carts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"userId":3,"date":"2020-03-02","products":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]},
			{"id":2,"userId":4,"date":"2020-03-05","products":[{"productId":2,"quantity":4}]}]`))
	})
	mux.HandleFunc("GET /carts/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"userId":3,"date":"2020-03-02","products":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]}`))
	})
	mux.HandleFunc("GET /products/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"title":"Backpack","price":10}`))
	})
	mux.HandleFunc("GET /products/2", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":2,"title":"T-Shirt","price":2.5}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("ORDERSYNC_API_URL", apiURL)
	t.Setenv("ORDERSYNC_LOG", "slog")
	t.Setenv("ORDERSYNC_LOG_LEVEL", "error")
	t.Setenv("ORDERSYNC_TIER", "memory")
	t.Setenv("ORDERSYNC_RETRIES", "1")
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out, errOut bytes.Buffer
	err := run(ctx, args, &out, &errOut)
	return out.String(), err
}

func TestRunUsage(t *testing.T) {
	if _, err := runCmd(t); !errors.Is(err, errUsage) {
		t.Fatalf("no args: err = %v", err)
	}
	if _, err := runCmd(t, "purge"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("unknown command: err = %v", err)
	}
	out, err := runCmd(t, "help")
	if err != nil || !strings.Contains(out, "set-status") {
		t.Fatalf("help: %q %v", out, err)
	}
}

func TestList(t *testing.T) {
	setEnv(t, fakeStore(t).URL)

	out, err := runCmd(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "STATUS") || !strings.Contains(out, "2020-03-05") || !strings.Contains(out, "2 orders:") {
		t.Fatalf("list output:\n%s", out)
	}
	if _, err := runCmd(t, "list", "-status", "lost"); err == nil {
		t.Fatalf("unknown status accepted")
	}
}

func TestShow(t *testing.T) {
	for _, tc := range []struct{ tier, codec string }{
		{"memory", "json"},
		{"ristretto", "cbor"},
		{"none", "json"},
	} {
		t.Run(tc.tier, func(t *testing.T) {
			setEnv(t, fakeStore(t).URL)
			t.Setenv("ORDERSYNC_TIER", tc.tier)
			t.Setenv("ORDERSYNC_TIER_CODEC", tc.codec)

			out, err := runCmd(t, "show", "-id", "1")
			if err != nil {
				t.Fatalf("show: %v", err)
			}
			for _, want := range []string{"order 1", "Backpack", "T-Shirt", "total 22.50"} {
				if !strings.Contains(out, want) {
					t.Fatalf("show output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestShowRequiresID(t *testing.T) {
	setEnv(t, fakeStore(t).URL)
	if _, err := runCmd(t, "show"); err == nil {
		t.Fatalf("show without -id succeeded")
	}
}

func TestSetStatus(t *testing.T) {
	setEnv(t, fakeStore(t).URL)

	out, err := runCmd(t, "set-status", "-id", "1", "-status", "shipped")
	if err != nil {
		t.Fatalf("set-status: %v", err)
	}
	if strings.TrimSpace(out) != "order 1 is now shipped" {
		t.Fatalf("set-status output: %q", out)
	}
	if _, err := runCmd(t, "set-status", "-id", "1"); err == nil {
		t.Fatalf("missing status accepted")
	}
}

func TestBadConfig(t *testing.T) {
	setEnv(t, fakeStore(t).URL)
	t.Setenv("ORDERSYNC_TIER", "memcached")
	if _, err := runCmd(t, "list"); err == nil {
		t.Fatalf("unknown tier accepted")
	}
}
