package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	qc "github.com/unkn0wn-root/querycache"
)

func TestLevelsAndSortedAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", qc.Fields{"a": 1})
	l.Warn("fetch failed", qc.Fields{"key": "[order 3]", "gen": 2})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written below level: %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `gen=2 key="[order 3]"`) {
		t.Fatalf("unexpected output: %q", out)
	}
}
