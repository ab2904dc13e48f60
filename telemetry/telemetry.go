// Package telemetry provides the logging, metrics, and tracing seams of the
// engine. The container holds a Provider (concrete wiring: Clue,
// OpenTelemetry, or a no-op stand-in for tests) supplied by callers at
// construction time and exposes it via Container.Telemetry; the scheduler,
// connection pool, and event store do not take one.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the engine.
// Implementations typically delegate to Clue but the interface is
// intentionally small so tests can provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code can remain agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Provider bundles the three telemetry seams so components can be
// constructed with a single dependency instead of three separate
// parameters.
type Provider struct {
	Logger  Logger
	Metrics Metrics
	Tracer  Tracer
}

// Noop returns a Provider whose Logger, Metrics, and Tracer all discard
// their input. Useful for tests and for callers that have not wired
// observability yet.
func Noop() Provider {
	return Provider{
		Logger:  NoopLogger{},
		Metrics: NoopMetrics{},
		Tracer:  NoopTracer{},
	}
}
