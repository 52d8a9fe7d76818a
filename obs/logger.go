// Package obs defines the two observability capabilities the core consumes —
// a structured Logger and a named-span Tracer — and the production
// implementations backed by logrus and OpenTelemetry. Metrics export is
// deliberately absent: per the system's scope, metrics are an external
// collaborator the core never calls into directly.
package obs

import "github.com/sirupsen/logrus"

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger is the narrow logging capability every component depends on.
// Nothing in the core imports logrus (or any logging library) directly;
// components only ever see this interface.
type Logger interface {
	With(fields Fields) Logger
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(msg string, fields ...Fields)
}

// logrusLogger adapts logrus.FieldLogger to the Logger capability.
type logrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger builds a Logger backed by the given logrus logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) With(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func merge(fields []Fields) logrus.Fields {
	out := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func (l *logrusLogger) Debug(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Error(msg)
}

// Noop is a Logger that discards everything, used by tests that don't care
// about log output.
func Noop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) With(Fields) Logger      { return noopLogger{} }
func (noopLogger) Debug(string, ...Fields) {}
func (noopLogger) Info(string, ...Fields)  {}
func (noopLogger) Warn(string, ...Fields)  {}
func (noopLogger) Error(string, ...Fields) {}
