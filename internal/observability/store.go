package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ratelimiter/internal/store"
)

// InstrumentedStore wraps a store.Store implementation with OpenTelemetry
// tracing and metrics instrumentation.
type InstrumentedStore struct {
	inner    store.Store
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStore creates a store wrapper that records trace spans,
// operation latency histograms, and error counters for every store method call.
func NewInstrumentedStore(inner store.Store) (*InstrumentedStore, error) {
	tracer := otel.Tracer("ratelimiter/store")
	meter := otel.Meter("ratelimiter/store")

	duration, err := meter.Float64Histogram(
		"store.operation.duration",
		metric.WithDescription("Duration of key store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"store.operation.errors",
		metric.WithDescription("Number of key store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStore) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "store."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("store.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStore) Update(ctx context.Context, key string, ttl time.Duration, fn store.UpdateFunc) error {
	ctx, span := s.startSpan(ctx, "Update")
	start := time.Now()
	err := s.inner.Update(ctx, key, ttl, fn)
	s.record(ctx, span, "Update", start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := s.startSpan(ctx, "Get")
	start := time.Now()
	state, found, err := s.inner.Get(ctx, key)
	span.SetAttributes(attribute.Bool("store.found", found))
	s.record(ctx, span, "Get", start, err)
	return state, found, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "Delete")
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.record(ctx, span, "Delete", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStore) Stats(ctx context.Context) (store.Stats, error) {
	ctx, span := s.startSpan(ctx, "Stats")
	start := time.Now()
	stats, err := s.inner.Stats(ctx)
	s.record(ctx, span, "Stats", start, err)
	return stats, err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
