// Package telemetry wraps go.opentelemetry.io/otel/metric behind a small set
// of typed instrument constructors (Counter, Gauge, Timer), each configured
// with a name/description/unit and an optional set of fixed attributes.
// Metrics are pulled through a Prometheus exporter so the process's existing
// /metrics endpoint (served by promhttp.Handler against the default
// registerer) picks them up without any additional wiring.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Telemetry struct {
	provider *Provider
	meter    metric.Meter
}

func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	provider, err := NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	return &Telemetry{
		provider: provider,
		meter:    provider.Meter(),
	}, nil
}

// NewWithMeter builds a Telemetry around a caller-supplied meter, for tests
// that want an in-memory or noop reader rather than a real exporter.
func NewWithMeter(meter metric.Meter) *Telemetry {
	return &Telemetry{meter: meter}
}

func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

func (t *Telemetry) NewCounter(cfg CounterConfig) (*Counter, error) {
	return NewCounter(t.meter, cfg)
}

func (t *Telemetry) NewGauge(cfg GaugeConfig) (*Gauge, error) {
	return NewGauge(t.meter, cfg)
}

func (t *Telemetry) NewTimer(cfg TimerConfig) (*Timer, error) {
	return NewTimer(t.meter, cfg)
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func Int64Attr(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

// LatencyBoundaries are histogram bucket boundaries suited to millisecond
// job-handler durations.
var LatencyBoundaries = []float64{
	1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000,
}
