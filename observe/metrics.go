package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutcomeOK is the outcome label for a request that was forwarded upstream
// and returned without error.
const OutcomeOK = "ok"

// Metrics records per-request gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordDispatch records one gateway request with its duration and
	// outcome. Outcome is OutcomeOK for success or a rejection kind such
	// as "auth_error" or "rate_limit".
	RecordDispatch(ctx context.Context, meta RequestMeta, duration time.Duration, outcome string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	rejectCount  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"gateway.dispatch.total",
		metric.WithDescription("Total number of gateway requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	rejectCount, err := meter.Int64Counter(
		"gateway.dispatch.rejections",
		metric.WithDescription("Total number of rejected gateway requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"gateway.dispatch.duration_ms",
		metric.WithDescription("Gateway request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		rejectCount:  rejectCount,
		durationHist: durationHist,
	}, nil
}

// RecordDispatch records metrics for one gateway request.
func (m *metricsImpl) RecordDispatch(ctx context.Context, meta RequestMeta, duration time.Duration, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("request.tool", meta.Tool),
		attribute.String("request.outcome", outcome),
	}
	if meta.Provider != "" {
		attrs = append(attrs, attribute.String("request.provider", meta.Provider))
	}

	opt := metric.WithAttributes(attrs...)

	// Always increment total counter
	m.totalCount.Add(ctx, 1, opt)

	// Increment rejection counter on failure
	if outcome != OutcomeOK {
		m.rejectCount.Add(ctx, 1, opt)
	}

	// Record duration in milliseconds
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(ctx context.Context, meta RequestMeta, duration time.Duration, outcome string) {
}

var _ Metrics = (*metricsImpl)(nil)
var _ Metrics = NoopMetrics{}
