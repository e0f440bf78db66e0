package persistence

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neogan74/droppy-api/internal/metrics"
)

const tracerName = "github.com/neogan74/droppy-api/internal/persistence"

type instrumentedEngine struct {
	next   Engine
	store  string
	tracer trace.Tracer
}

// Instrument wraps engine so every Get and Put records a span and the
// store latency and outcome metrics. storeType labels both.
func Instrument(engine Engine, storeType string) Engine {
	return &instrumentedEngine{
		next:   engine,
		store:  storeType,
		tracer: otel.Tracer(tracerName),
	}
}

func (e *instrumentedEngine) Get(ctx context.Context, key string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "store.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", e.store),
			attribute.String("db.operation", "get"),
			attribute.String("droppy.key", key),
		),
	)
	defer span.End()

	start := time.Now()
	value, err := e.next.Get(ctx, key)
	e.observe(span, "get", start, err)
	span.SetAttributes(attribute.Bool("droppy.hit", err == nil))

	return value, err
}

func (e *instrumentedEngine) Put(ctx context.Context, key, value string, opts PutOptions) error {
	ctx, span := e.tracer.Start(ctx, "store.put",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", e.store),
			attribute.String("db.operation", "put"),
			attribute.String("droppy.key", key),
			attribute.Int("droppy.value_length", len(value)),
			attribute.Int64("droppy.ttl_seconds", int64(opts.ExpirationTTL/time.Second)),
		),
	)
	defer span.End()

	start := time.Now()
	err := e.next.Put(ctx, key, value, opts)
	e.observe(span, "put", start, err)

	return err
}

func (e *instrumentedEngine) Close() error {
	return e.next.Close()
}

func (e *instrumentedEngine) observe(span trace.Span, operation string, start time.Time, err error) {
	metrics.StoreOperationDuration.WithLabelValues(e.store, operation).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case err == nil:
	case IsNotFound(err):
		status = "not_found"
	default:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	metrics.StoreOperationsTotal.WithLabelValues(e.store, operation, status).Inc()
}
