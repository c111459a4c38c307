package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricLookupTotal    = "cache.lookup.total"
	MetricLookupErrors   = "cache.lookup.errors"
	MetricLookupDuration = "cache.lookup.duration_ms"
)

// Metrics records lookup metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one served request with its outcome and duration.
	RecordLookup(ctx context.Context, meta LookupMeta, outcome Outcome, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics registers the lookup instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricLookupTotal,
		metric.WithDescription("Total number of cached route requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricLookupErrors,
		metric.WithDescription("Requests whose upstream fetch or store access failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricLookupDuration,
		metric.WithDescription("Request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta LookupMeta, outcome Outcome, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("family", meta.Family),
		attribute.String("outcome", string(outcome)),
	)

	m.totalCount.Add(ctx, 1, opt)
	// Stale responses still count: upstream failed behind them.
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

// NewNoopMetrics returns metrics that record nothing.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordLookup(ctx context.Context, meta LookupMeta, outcome Outcome, duration time.Duration, err error) {
}
