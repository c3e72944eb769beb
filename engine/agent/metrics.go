package agent

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce           sync.Once
	metricsInitErr        error
	routerDecisionCounter metric.Int64Counter
	runOutcomeCounter     metric.Int64Counter
)

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter("resolvd.agent")
		routerDecisionCounter, metricsInitErr = meter.Int64Counter(
			"resolvd_agent_router_decisions_total",
			metric.WithDescription("Router decisions by intent"),
		)
		if metricsInitErr != nil {
			return
		}
		runOutcomeCounter, metricsInitErr = meter.Int64Counter(
			"resolvd_agent_runs_total",
			metric.WithDescription("Finished workflow runs by terminal status"),
		)
	})
	return metricsInitErr
}

func recordRouterDecision(ctx context.Context, intent Intent) {
	if err := ensureMetrics(); err != nil || routerDecisionCounter == nil {
		return
	}
	routerDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", string(intent)),
	))
}

func recordRunOutcome(ctx context.Context, status Status) {
	if err := ensureMetrics(); err != nil || runOutcomeCounter == nil {
		return
	}
	runOutcomeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
	))
}
