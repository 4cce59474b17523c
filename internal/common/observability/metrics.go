package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records aggregation pass metrics through otel. A nil
// *Observability is valid and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	passCounter   otelmetric.Int64Counter
	passDuration  otelmetric.Float64Histogram
	emitted       otelmetric.Int64Counter
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	passCounter, err := meter.Int64Counter(
		"aggregation.passes",
		otelmetric.WithDescription("Number of aggregation passes"),
	)
	if err != nil {
		return nil, err
	}

	passDuration, err := meter.Float64Histogram(
		"aggregation.duration",
		otelmetric.WithDescription("Aggregation pass duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	emitted, err := meter.Int64Counter(
		"notifications.emitted",
		otelmetric.WithDescription("Notifications emitted per source"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		passCounter:   passCounter,
		passDuration:  passDuration,
		emitted:       emitted,
	}, nil
}

func (o *Observability) RecordPass(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil || o.passCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	o.passCounter.Add(ctx, 1, attrs)
	o.passDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) RecordEmitted(ctx context.Context, source string, count int) {
	if o == nil || o.emitted == nil {
		return
	}
	o.emitted.Add(ctx, int64(count), otelmetric.WithAttributes(attribute.String("source", source)))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
