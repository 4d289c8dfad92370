package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	qc "github.com/unkn0wn-root/querycache"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{FetchStartedEvery: 3})
	for i := 0; i < 6; i++ {
		h.FetchStarted(qc.NewKey("orders"), uint64(i+1))
	}
	if n := strings.Count(buf.String(), "querycache.fetch_started"); n != 2 {
		t.Fatalf("logged %d of 6, want 2", n)
	}
}

func TestRedactAndEvents(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(qc.Key) string { return "redacted" }})

	h.FetchFailed(qc.NewKey("order", 3), errors.New("boom"))
	h.PatchSkipped(qc.NewKey("orders"), "no_baseline")
	h.MutationFinished("order-status", nil)

	out := buf.String()
	for _, want := range []string{"querycache.fetch_failed", "key=redacted", "err=boom", "reason=no_baseline", "querycache.mutation_applied"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "order 3") {
		t.Fatalf("key not redacted: %q", out)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.FetchStarted(qc.NewKey("x"), 1)
	h.MutationFinished("m", errors.New("x"))
}
