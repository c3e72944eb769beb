package retrieval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce           sync.Once
	metricsInitErr        error
	queryLatencyHist      metric.Float64Histogram
	degradedSourceCounter metric.Int64Counter
	rerankFallbackCounter metric.Int64Counter
	emptyResultCounter    metric.Int64Counter
)

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter("resolvd.retrieval")
		queryLatencyHist, metricsInitErr = meter.Float64Histogram(
			"resolvd_retrieval_query_seconds",
			metric.WithDescription("End-to-end hybrid retrieval latency"),
		)
		if metricsInitErr != nil {
			return
		}
		degradedSourceCounter, metricsInitErr = meter.Int64Counter(
			"resolvd_retrieval_degraded_total",
			metric.WithDescription("Retrieval calls that lost a source to failure or timeout"),
		)
		if metricsInitErr != nil {
			return
		}
		rerankFallbackCounter, metricsInitErr = meter.Int64Counter(
			"resolvd_retrieval_rerank_fallback_total",
			metric.WithDescription("Retrieval calls that fell back to fused order"),
		)
		if metricsInitErr != nil {
			return
		}
		emptyResultCounter, metricsInitErr = meter.Int64Counter(
			"resolvd_retrieval_empty_total",
			metric.WithDescription("Retrieval calls that produced no candidates"),
		)
	})
	return metricsInitErr
}

func recordQueryLatency(ctx context.Context, collection Collection, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("collection", string(collection)),
	))
}

func recordDegradedSource(ctx context.Context, collection Collection, source string) {
	if err := ensureMetrics(); err != nil || degradedSourceCounter == nil {
		return
	}
	degradedSourceCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", string(collection)),
		attribute.String("source", source),
	))
}

func recordRerankFallback(ctx context.Context, collection Collection) {
	if err := ensureMetrics(); err != nil || rerankFallbackCounter == nil {
		return
	}
	rerankFallbackCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", string(collection)),
	))
}

func recordEmptyResult(ctx context.Context, collection Collection) {
	if err := ensureMetrics(); err != nil || emptyResultCounter == nil {
		return
	}
	emptyResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", string(collection)),
	))
}
