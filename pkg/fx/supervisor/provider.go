// Package supervisor wires actor.Supervisor into fx: on OnStart it recovers
// any queues persisted by a previous run and begins housekeeping; on OnStop
// it shuts every queue and worker actor down.
package supervisor

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"

	"github.com/flowkit/jobqueue/lib/jobqueue/actor"
	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/handler"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
	"github.com/flowkit/jobqueue/pkg/health"
)

var log = logging.Logger("fx/supervisor")

var Module = fx.Module("supervisor",
	fx.Provide(
		ProvideBus,
		handler.NewRegistry,
		Provide,
	),
	fx.Invoke(func(*actor.Supervisor) {}),
)

func ProvideBus() *events.Bus {
	return events.NewBus(events.DefaultCapacity)
}

// Provide constructs the Supervisor and registers its lifecycle: recover
// persisted queues on start, flip the health checker ready, and shut down
// cleanly on stop. Queue stats are recomputed from job_history rather than
// trusted from their last persisted value, since a crash between a status
// transition and the stats write could leave them stale.
func Provide(lc fx.Lifecycle, repo repository.Repository, registry *handler.Registry, bus *events.Bus, checker *health.Checker) *actor.Supervisor {
	sup := actor.New(repo, registry, bus, adaptLogger{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			queues, err := repo.ListQueues(ctx)
			if err != nil {
				return fmt.Errorf("listing persisted queues: %w", err)
			}
			for _, q := range queues {
				if _, err := sup.RegisterQueue(ctx, *q); err != nil {
					return fmt.Errorf("recovering queue %q: %w", q.Name, err)
				}
			}
			log.Infof("recovered %d queues", len(queues))
			sup.Tick(ctx)
			sup.Start(ctx)
			checker.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			checker.SetReady(false)
			sup.Shutdown(ctx)
			return nil
		},
	})

	return sup
}

// adaptLogger bridges ipfs go-log's *ZapEventLogger to logger.StandardLogger
// via the package-level logger declared above.
type adaptLogger struct{}

func (adaptLogger) Debug(args ...interface{})                       { log.Debug(args...) }
func (adaptLogger) Debugf(format string, args ...interface{})       { log.Debugf(format, args...) }
func (adaptLogger) Debugw(msg string, kv ...interface{})            { log.Debugw(msg, kv...) }
func (adaptLogger) Info(args ...interface{})                        { log.Info(args...) }
func (adaptLogger) Infof(format string, args ...interface{})        { log.Infof(format, args...) }
func (adaptLogger) Infow(msg string, kv ...interface{})             { log.Infow(msg, kv...) }
func (adaptLogger) Warn(args ...interface{})                        { log.Warn(args...) }
func (adaptLogger) Warnf(format string, args ...interface{})        { log.Warnf(format, args...) }
func (adaptLogger) Warnw(msg string, kv ...interface{})             { log.Warnw(msg, kv...) }
func (adaptLogger) Error(args ...interface{})                       { log.Error(args...) }
func (adaptLogger) Errorf(format string, args ...interface{})       { log.Errorf(format, args...) }
func (adaptLogger) Errorw(msg string, kv ...interface{})            { log.Errorw(msg, kv...) }
