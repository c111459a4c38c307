package observe

import (
	"context"
	"time"
)

// LookupFunc serves one request and reports how it was served. A stale
// outcome may carry the upstream error that caused it.
type LookupFunc func(ctx context.Context, meta LookupMeta) (Outcome, error)

// Middleware wraps lookups with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe LookupFunc.
//   - Context: the span is carried in the context passed to the wrapped func.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap wraps fn with a span, lookup metrics and a log entry.
func (m *Middleware) Wrap(fn LookupFunc) LookupFunc {
	return func(ctx context.Context, meta LookupMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome, err := fn(ctx, meta)
		if err != nil && outcome == "" {
			outcome = OutcomeError
		}
		duration := time.Since(start)

		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordLookup(ctx, meta, outcome, duration, err)

		log := m.logger.WithLookup(meta)
		fields := []Field{
			{Key: "outcome", Value: string(outcome)},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if meta.Key != "" {
			fields = append(fields, Field{Key: "key", Value: meta.Key})
		}

		switch {
		case outcome == OutcomeStale:
			fields = append(fields, Field{Key: "error", Value: err})
			log.Warn(ctx, "upstream failed, served stale copy", fields...)
		case err != nil:
			fields = append(fields, Field{Key: "error", Value: err})
			log.Error(ctx, "cache lookup failed", fields...)
		default:
			log.Debug(ctx, "cache lookup", fields...)
		}

		return outcome, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
