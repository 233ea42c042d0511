// Package metrics declares the actor engine's OpenTelemetry instruments,
// created lazily off the global telemetry instance the first time any actor
// touches them.
package metrics

import (
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flowkit/jobqueue/pkg/telemetry"
)

var (
	PendingJobs   *telemetry.Gauge
	RunningJobs   *telemetry.Gauge
	DispatchTotal *telemetry.Counter
	RetryTotal    *telemetry.Counter
	JobDuration   *telemetry.Timer

	initOnce sync.Once
	initErrs []error
)

// InitMetrics initializes the package's instruments lazily. Safe to call
// repeatedly and from multiple goroutines; only the first call does work.
func InitMetrics() {
	initOnce.Do(func() {
		tel := telemetry.Global()

		var err error

		PendingJobs, err = tel.NewGauge(telemetry.GaugeConfig{
			Name:        "jobqueue_pending_jobs",
			Description: "Number of jobs currently pending, per queue",
			Unit:        "jobs",
		})
		if err != nil {
			initErrs = append(initErrs, err)
		}

		RunningJobs, err = tel.NewGauge(telemetry.GaugeConfig{
			Name:        "jobqueue_running_jobs",
			Description: "Number of jobs currently running, per queue",
			Unit:        "jobs",
		})
		if err != nil {
			initErrs = append(initErrs, err)
		}

		DispatchTotal, err = tel.NewCounter(telemetry.CounterConfig{
			Name:        "jobqueue_dispatch_total",
			Description: "Total number of jobs dispatched to a worker, per queue",
			Unit:        "count",
		})
		if err != nil {
			initErrs = append(initErrs, err)
		}

		RetryTotal, err = tel.NewCounter(telemetry.CounterConfig{
			Name:        "jobqueue_retry_total",
			Description: "Total number of jobs re-enqueued for retry, per queue",
			Unit:        "count",
		})
		if err != nil {
			initErrs = append(initErrs, err)
		}

		JobDuration, err = tel.NewTimer(telemetry.TimerConfig{
			Name:        "jobqueue_job_duration",
			Description: "Handler execution duration, per queue and outcome",
			Unit:        "ms",
			Boundaries:  telemetry.LatencyBoundaries,
		})
		if err != nil {
			initErrs = append(initErrs, err)
		}
	})
}

// InitErrors returns any errors encountered the one time InitMetrics did its
// work, mainly for tests. InitMetrics neither logs these errors nor fails;
// an instrument whose construction failed is left nil, and the actors record
// to the instruments without a nil check.
func InitErrors() []error {
	return initErrs
}

// QueueAttr labels a metric with the queue it belongs to.
func QueueAttr(queue string) attribute.KeyValue {
	return telemetry.StringAttr("queue", queue)
}

// OutcomeAttr labels a duration metric with its terminal outcome.
func OutcomeAttr(outcome string) attribute.KeyValue {
	return telemetry.StringAttr("outcome", outcome)
}
