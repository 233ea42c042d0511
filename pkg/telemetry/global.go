package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	globalTelemetry *Telemetry
	globalMu        sync.RWMutex
	globalOnce      sync.Once
)

// Initialize sets up the global telemetry instance. Call once at process
// startup before any package's InitMetrics runs.
func Initialize(ctx context.Context, cfg Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	tel, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	globalTelemetry = tel
	return nil
}

// Global returns the global telemetry instance, or a noop-backed instance if
// Initialize has not been called (e.g. library use or tests).
func Global() *Telemetry {
	globalMu.RLock()
	if globalTelemetry != nil {
		defer globalMu.RUnlock()
		return globalTelemetry
	}
	globalMu.RUnlock()

	globalOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		if globalTelemetry == nil {
			globalTelemetry = NewWithMeter(noop.NewMeterProvider().Meter("noop"))
		}
	})

	return globalTelemetry
}

func Shutdown(ctx context.Context) error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalTelemetry != nil {
		return globalTelemetry.Shutdown(ctx)
	}
	return nil
}

func Meter() metric.Meter {
	return Global().Meter()
}

// SetGlobalForTesting installs tel as the global instance; tests should
// restore the previous value (possibly nil) when done.
func SetGlobalForTesting(tel *Telemetry) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalTelemetry = tel
}
