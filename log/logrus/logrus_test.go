package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	qc "github.com/unkn0wn-root/querycache"
)

func TestFieldsAndLevel(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("patch skipped", qc.Fields{"key": "[orders]", "reason": "no_baseline"})
	l.Error("boom", nil)

	if n := len(hook.AllEntries()); n != 2 {
		t.Fatalf("got %d entries", n)
	}
	e := hook.AllEntries()[0]
	if e.Level != logrus.DebugLevel || e.Message != "patch skipped" {
		t.Fatalf("entry = %v %q", e.Level, e.Message)
	}
	if e.Data["component"] != "querycache" || e.Data["reason"] != "no_baseline" {
		t.Fatalf("data = %v", e.Data)
	}
	if hook.LastEntry().Level != logrus.ErrorLevel {
		t.Fatalf("last level = %v", hook.LastEntry().Level)
	}
}
