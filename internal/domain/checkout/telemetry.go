package checkout

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/qorikusi/storefront/internal/domain/checkout"

// Telemetry holds the tracer and counters shared by every session's
// Orchestrator.
type Telemetry struct {
	tracer        trace.Tracer
	ordersCreated metric.Int64Counter
	declined      metric.Int64Counter
	completed     metric.Int64Counter
}

// NewTelemetry creates checkout instruments from the given providers.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)

	ordersCreated, err := meter.Int64Counter("checkout.orders.created",
		metric.WithDescription("Orders created by checkout submissions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	declined, err := meter.Int64Counter("checkout.payments.declined",
		metric.WithDescription("Payments that did not complete"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "declined counter")
	}
	completed, err := meter.Int64Counter("checkout.completed",
		metric.WithDescription("Checkouts that reached confirmation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "completed counter")
	}

	return &Telemetry{
		tracer:        tp.Tracer(instrumentationName),
		ordersCreated: ordersCreated,
		declined:      declined,
		completed:     completed,
	}, nil
}

// NopTelemetry returns instruments that record nothing.
func NopTelemetry() *Telemetry {
	t, err := NewTelemetry(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return t
}
