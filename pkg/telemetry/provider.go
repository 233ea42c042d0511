package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config names the meter a Provider publishes under. ServiceName becomes the
// instrumentation scope passed to MeterProvider.Meter.
type Config struct {
	ServiceName string
}

type Provider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
}

// NewProvider builds a pull-based metrics pipeline: a Prometheus exporter
// acting as the SDK's reader, registered against the default Prometheus
// registerer so the process's existing /metrics HTTP handler serves every
// instrument created off the returned Provider's meter.
func NewProvider(_ context.Context, cfg Config) (*Provider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	return &Provider{
		provider: provider,
		meter:    provider.Meter(cfg.ServiceName),
	}, nil
}

func (p *Provider) Meter() metric.Meter {
	return p.meter
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
