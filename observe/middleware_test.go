package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
	mw     *Middleware
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	logs := &bytes.Buffer{}
	return &harness{
		spans:  spans,
		reader: reader,
		logs:   logs,
		mw:     NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", logs)),
	}
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumFor(m *metricdata.Metrics, family string, outcome Outcome) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return -1
	}
	want := attribute.NewSet(
		attribute.String("family", family),
		attribute.String("outcome", string(outcome)),
	)
	var total int64
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestMiddleware_HitPath(t *testing.T) {
	h := newHarness(t)
	meta := LookupMeta{Family: "product", Method: "GET", Path: "/api/product/1", Key: "api:/api/product/1"}

	lookup := h.mw.Wrap(func(ctx context.Context, m LookupMeta) (Outcome, error) {
		return OutcomeHit, nil
	})
	outcome, err := lookup(context.Background(), meta)
	if err != nil || outcome != OutcomeHit {
		t.Fatalf("lookup = %v, %v; want hit, nil", outcome, err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "cache.lookup.product" {
		t.Errorf("span name = %q, want cache.lookup.product", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	rm := h.collect(t)
	total := findMetric(rm, MetricLookupTotal)
	if total == nil {
		t.Fatal("cache.lookup.total metric not found")
	}
	if got := sumFor(total, "product", OutcomeHit); got != 1 {
		t.Errorf("cache.lookup.total{product,hit} = %d, want 1", got)
	}
	if findMetric(rm, MetricLookupDuration) == nil {
		t.Error("cache.lookup.duration_ms metric not found")
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	h := newHarness(t)
	wantErr := errors.New("upstream down")

	lookup := h.mw.Wrap(func(ctx context.Context, m LookupMeta) (Outcome, error) {
		return "", wantErr
	})
	outcome, err := lookup(context.Background(), LookupMeta{Family: "search"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if outcome != OutcomeError {
		t.Errorf("outcome = %q, want error", outcome)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span")
	}

	rm := h.collect(t)
	errs := findMetric(rm, MetricLookupErrors)
	if errs == nil {
		t.Fatal("cache.lookup.errors metric not found")
	}
	if got := sumFor(errs, "search", OutcomeError); got != 1 {
		t.Errorf("cache.lookup.errors{search,error} = %d, want 1", got)
	}

	lines := decodeLines(t, h.logs)
	if len(lines) != 1 || lines[0]["level"] != "error" {
		t.Errorf("expected one error log line, got %v", lines)
	}
}

func TestMiddleware_StaleLogsWarning(t *testing.T) {
	h := newHarness(t)

	lookup := h.mw.Wrap(func(ctx context.Context, m LookupMeta) (Outcome, error) {
		return OutcomeStale, errors.New("timeout")
	})
	_, _ = lookup(context.Background(), LookupMeta{Family: "product-root"})

	lines := decodeLines(t, h.logs)
	if len(lines) != 1 || lines[0]["level"] != "warn" {
		t.Fatalf("expected one warn log line, got %v", lines)
	}
	if lines[0]["outcome"] != "stale" {
		t.Errorf("outcome = %v, want stale", lines[0]["outcome"])
	}
}

func TestMiddleware_SpanInContext(t *testing.T) {
	h := newHarness(t)

	var sawSpan bool
	lookup := h.mw.Wrap(func(ctx context.Context, m LookupMeta) (Outcome, error) {
		sawSpan = trace.SpanContextFromContext(ctx).IsValid()
		return OutcomeMiss, nil
	})
	_, _ = lookup(context.Background(), LookupMeta{Family: "product"})

	if !sawSpan {
		t.Error("wrapped func should receive the span context")
	}
}

func TestMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	lookup := mw.Wrap(func(ctx context.Context, m LookupMeta) (Outcome, error) {
		return OutcomePassthrough, nil
	})
	if outcome, err := lookup(context.Background(), LookupMeta{Family: "product"}); err != nil || outcome != OutcomePassthrough {
		t.Errorf("lookup = %v, %v", outcome, err)
	}
}

func TestLookupMeta(t *testing.T) {
	if err := (LookupMeta{}).Validate(); !errors.Is(err, ErrMissingFamily) {
		t.Errorf("Validate() = %v, want ErrMissingFamily", err)
	}
	if got := (LookupMeta{Family: "suppliers"}).SpanName(); got != "cache.lookup.suppliers" {
		t.Errorf("SpanName() = %q", got)
	}
}
