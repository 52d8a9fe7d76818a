package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Span is the narrow span capability returned by Tracer.Start. Components
// only ever see this interface, never the otel SDK types.
type Span interface {
	// End finishes the span. err, if non-nil, is recorded on the span.
	End(err error)
	// SetAttr attaches a single string attribute, used sparingly for
	// correlation (run id, source name) rather than verbose payloads.
	SetAttr(key, value string)
}

// Tracer is the named-span capability the store (for per-query tracing) and
// the run processor/runner (for per-run cancellation scopes) depend on.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// otelTracer adapts go.opentelemetry.io/otel to the Tracer capability.
type otelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer builds a Tracer using the global otel TracerProvider under
// the given instrumentation name (e.g. "fallpaper/store", "fallpaper/runner").
func NewOtelTracer(instrumentationName string) Tracer {
	return &otelTracer{tracer: otel.Tracer(instrumentationName)}
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
	}
	s.span.End()
}

func (s *otelSpan) SetAttr(key, value string) {
	s.span.SetAttributes(attrString(key, value))
}

// NoopTracer returns a Tracer whose spans do nothing; used by tests.
func NoopTracer() Tracer { return noopTracer{} }

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopSpan) SetAttr(string, string) {}

// Timer measures one operation's wall-clock duration and logs it, optionally
// warning when a threshold is exceeded. Used by components that want simple
// duration logging alongside (not instead of) a Tracer span — e.g.
// store.Named's per-statement duration logging.
type Timer struct {
	name      string
	startedAt time.Time
	logger    Logger
}

// StartTimer begins timing an operation under the given logger.
func StartTimer(name string, logger Logger) *Timer {
	return &Timer{name: name, startedAt: time.Now(), logger: logger}
}

// Stop ends the timer, logs the duration at info level, and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.startedAt)
	if t.logger != nil {
		t.logger.Info("operation completed", Fields{"operation": t.name, "duration_ms": d.Milliseconds()})
	}
	return d
}

// StopWithThreshold is Stop but logs at warn level when d exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	d := time.Since(t.startedAt)
	if t.logger != nil {
		fields := Fields{"operation": t.name, "duration_ms": d.Milliseconds()}
		if d > threshold {
			t.logger.Warn("operation exceeded threshold", fields)
		} else {
			t.logger.Debug("operation completed", fields)
		}
	}
	return d
}
