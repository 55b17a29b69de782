package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "heatmap.requests.total"
	metricRequestDuration  = "heatmap.request.duration.seconds"
	metricErrorsTotal      = "heatmap.errors.total"
	metricInflightRequests = "heatmap.inflight.requests"
	metricCacheLookups     = "heatmap.cache.lookups.total"
	metricCacheEvictions   = "heatmap.cache.evictions.total"

	attrOp     = "op"
	attrStatus = "status"
	attrCache  = "cache"
	attrResult = "result"

	// StatusOK and StatusError label request outcomes.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 30s; rendering a page is the slowest operation.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// REDMetrics holds the instruments for Rate, Error and Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// CacheMetrics counts lookups and evictions of a named in-process cache.
type CacheMetrics struct {
	name      string
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
}

// NewCacheMetrics creates the counters of cache name.
func NewCacheMetrics(mt metric.Meter, name string) (*CacheMetrics, error) {
	lookups, err := mt.Int64Counter(metricCacheLookups,
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheLookups, err)
	}

	evictions, err := mt.Int64Counter(metricCacheEvictions,
		metric.WithDescription("Entries dropped for capacity"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheEvictions, err)
	}

	return &CacheMetrics{name: name, lookups: lookups, evictions: evictions}, nil
}

// RecordEviction counts one entry dropped for capacity.
func (cm *CacheMetrics) RecordEviction(ctx context.Context) {
	cm.evictions.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCache, cm.name)))
}

// RecordLookup counts one hit or miss.
func (cm *CacheMetrics) RecordLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	cm.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCache, cm.name),
		attribute.String(attrResult, result),
	))
}
