// Package logrus adapts a *logrus.Entry to querycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	qc "github.com/unkn0wn-root/querycache"
)

type Logger struct{ E *logrus.Entry }

var _ qc.Logger = Logger{}

// New tags every line with component=querycache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "querycache")}
}

func (l Logger) Debug(msg string, f qc.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f qc.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f qc.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f qc.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
