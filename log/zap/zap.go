// Package zap adapts a *zap.Logger to querycache.Logger.
package zap

import (
	"sort"

	qc "github.com/unkn0wn-root/querycache"
	"go.uber.org/zap"
)

type Logger struct{ L *zap.Logger }

var _ qc.Logger = Logger{}

// New names the logger "querycache".
func New(l *zap.Logger) Logger { return Logger{L: l.Named("querycache")} }

func (z Logger) Debug(msg string, f qc.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f qc.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f qc.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f qc.Fields) { z.L.Error(msg, fields(f)...) }

// fields orders keys so lines are stable across runs.
func fields(f qc.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
