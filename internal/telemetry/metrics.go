package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/emissiontracker/emissiontracker/internal/telemetry"

// ProviderMetrics holds metrics for calls to remote collaborators.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewProviderMetrics creates provider call instruments on meter.
// A nil meter uses the global meter provider.
func NewProviderMetrics(meter metric.Meter) (*ProviderMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records metrics for a provider request.
// A nil receiver records nothing.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}

	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// TripMetrics holds metrics for saved trips.
type TripMetrics struct {
	savedTotal metric.Int64Counter
	emissions  metric.Float64Histogram
}

// NewTripMetrics creates trip instruments on meter.
// A nil meter uses the global meter provider.
func NewTripMetrics(meter metric.Meter) (*TripMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	savedTotal, err := meter.Int64Counter(
		"trip.saved.total",
		metric.WithDescription("Number of trips created or updated"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	emissions, err := meter.Float64Histogram(
		"trip.emissions.kg",
		metric.WithDescription("Total CO2 emissions of saved trips"),
		metric.WithUnit("kg"),
	)
	if err != nil {
		return nil, err
	}

	return &TripMetrics{
		savedTotal: savedTotal,
		emissions:  emissions,
	}, nil
}

// RecordSaved records a saved trip of the given transport mode.
// A nil receiver records nothing.
func (m *TripMetrics) RecordSaved(ctx context.Context, mode string, created bool, totalEmissions float64) {
	if m == nil {
		return
	}

	action := "update"
	if created {
		action = "create"
	}
	attrs := metric.WithAttributes(
		attribute.String("trip.transport_mode", mode),
		attribute.String("trip.action", action),
	)

	m.savedTotal.Add(ctx, 1, attrs)
	m.emissions.Record(ctx, totalEmissions, attrs)
}
