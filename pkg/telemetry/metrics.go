package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ghuser/secondchance/items"

// ItemMetrics records item lifecycle counters and upload sizes.
// Instruments are created on the global MeterProvider, so Setup must run
// first for them to reach /metrics.
type ItemMetrics struct {
	operations  metric.Int64Counter
	uploadBytes metric.Int64Histogram
}

// NewItemMetrics creates the item instruments on the global meter provider.
func NewItemMetrics() (*ItemMetrics, error) {
	return NewItemMetricsWithProvider(otel.GetMeterProvider())
}

// NewItemMetricsWithProvider creates the item instruments on mp.
func NewItemMetricsWithProvider(mp metric.MeterProvider) (*ItemMetrics, error) {
	meter := mp.Meter(meterName)

	operations, err := meter.Int64Counter("secondchance.items.operations",
		metric.WithDescription("Item store operations by kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("items operations counter: %w", err)
	}

	uploadBytes, err := meter.Int64Histogram("secondchance.items.upload.size",
		metric.WithDescription("Size of uploaded item images"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("items upload histogram: %w", err)
	}

	return &ItemMetrics{operations: operations, uploadBytes: uploadBytes}, nil
}

// RecordOperation counts one item operation. A nil receiver is a no-op.
func (m *ItemMetrics) RecordOperation(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordUpload records the size of a stored upload. A nil receiver is a no-op.
func (m *ItemMetrics) RecordUpload(ctx context.Context, size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Record(ctx, size)
}
