// Package telemetry wires the global pkg/telemetry instance into the fx
// lifecycle: initialized on OnStart before any actor metric is recorded,
// flushed on OnStop.
package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/flowkit/jobqueue/pkg/telemetry"
)

var Module = fx.Module("telemetry",
	fx.Invoke(Register),
)

func Register(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := telemetry.Initialize(ctx, telemetry.Config{ServiceName: "jobqueue"}); err != nil {
				return fmt.Errorf("initializing telemetry: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return telemetry.Shutdown(ctx)
		},
	})
}
