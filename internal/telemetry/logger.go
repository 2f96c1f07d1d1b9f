// Package telemetry provides the core's injectable logging seam. No
// component outside this package imports a concrete logging library; they
// take a Logger interface, satisfied by a noop sink or a real logrus-backed
// one.
package telemetry

import "github.com/sirupsen/logrus"

// Logger is the sink every subsystem logs through. A host process can wire
// its own implementation (the C ABI's register_logger) or fall back to the
// default logrus-backed one.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(fields map[string]any) Logger
}

// noopLogger discards everything. Used in tests and before a host process
// has registered a logger.
type noopLogger struct{}

func Noop() Logger { return noopLogger{} }

func (noopLogger) Debugf(string, ...any)        {}
func (noopLogger) Infof(string, ...any)         {}
func (noopLogger) Warnf(string, ...any)         {}
func (noopLogger) Errorf(string, ...any)        {}
func (n noopLogger) With(map[string]any) Logger { return n }

// logrusLogger is the default pass-through adapter, analogous to the
// spdlog-shaped logger the source wires by default.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus builds the default Logger backed by a logrus.Logger at the
// given level.
func NewLogrus(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) With(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
