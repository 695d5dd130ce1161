package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DecisionMetrics records rate limit decision outcomes and check latency.
type DecisionMetrics struct {
	decisions metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewDecisionMetrics creates the decision counter and latency histogram on
// the global meter provider.
func NewDecisionMetrics() (*DecisionMetrics, error) {
	meter := otel.Meter("ratelimiter/decisions")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by policy and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"ratelimit.check.duration",
		metric.WithDescription("Duration of rate limit checks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DecisionMetrics{decisions: decisions, latency: latency}, nil
}

// RecordDecision records one check outcome against the policy.
func (m *DecisionMetrics) RecordDecision(ctx context.Context, policy string, allowed bool, elapsed time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	attrs := metric.WithAttributes(
		attribute.String("policy", policy),
		attribute.String("outcome", outcome),
	)
	m.decisions.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}
