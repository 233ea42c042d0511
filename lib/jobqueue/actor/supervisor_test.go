package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/handler"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository/memory"
)

// TestSupervisorEndToEndDispatch exercises the full stack (supervisor, queue
// actor, worker actor, real goroutines and heartbeat polling) for a single
// job running through to completion.
func TestSupervisorEndToEndDispatch(t *testing.T) {
	repo := memory.New()
	registry := handler.NewRegistry()
	done := make(chan struct{})
	require.NoError(t, registry.Register("greet", handler.HandlerFunc(
		func(ctx context.Context, j *job.Job) (job.Result, error) {
			close(done)
			return job.Result{Summary: "hello"}, nil
		},
	)))

	sup := New(repo, registry, events.NewBus(events.DefaultCapacity), nil)
	ctx := context.Background()

	q, err := sup.CreateQueue(ctx, "greetings", "", job.QueueConfig{
		Concurrency:        1,
		DefaultTimeoutSecs: 5,
		DefaultMaxRetries:  0,
	})
	require.NoError(t, err)
	defer sup.Shutdown(ctx)

	j, err := sup.EnqueueJob(ctx, q.ID, "greet", nil, job.PriorityNormal, 0, 5, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}

	require.Eventually(t, func() bool {
		got, err := sup.GetJob(ctx, j.ID)
		return err == nil && got.Status.Kind == job.StatusCompleted
	}, 2*time.Second, 20*time.Millisecond, "job never reached completed status")
}

// TestSupervisorRejectsDuplicateQueueName covers the Conflict error kind for
// CreateQueue.
func TestSupervisorRejectsDuplicateQueueName(t *testing.T) {
	sup := New(memory.New(), handler.NewRegistry(), events.NewBus(events.DefaultCapacity), nil)
	ctx := context.Background()

	_, err := sup.CreateQueue(ctx, "billing", "", job.DefaultQueueConfig())
	require.NoError(t, err)
	defer sup.Shutdown(ctx)

	_, err = sup.CreateQueue(ctx, "billing", "", job.DefaultQueueConfig())
	assert.Error(t, err)
}

// TestSupervisorRespawnsCrashedWorker breaks a live worker's bound queue
// actor so its next heartbeat tick panics, then checks the supervisor
// replaces it in place (workers are replaced on death, not left dead) and
// publishes a WorkerRespawned event.
func TestSupervisorRespawnsCrashedWorker(t *testing.T) {
	sup := New(memory.New(), handler.NewRegistry(), events.NewBus(events.DefaultCapacity), nil)
	ctx := context.Background()

	q, err := sup.CreateQueue(ctx, "crashy", "", job.QueueConfig{Concurrency: 1, DefaultTimeoutSecs: 5})
	require.NoError(t, err)
	defer sup.Shutdown(ctx)

	sub := sup.Subscribe()
	defer sub.Unsubscribe()

	sup.mu.Lock()
	original := sup.workers[q.ID][0]
	original.qa = nil // next tick's RequestJob poll dereferences this and panics
	sup.mu.Unlock()

	require.Eventually(t, func() bool {
		select {
		case ev := <-sub.Events:
			return ev.Kind == events.WorkerRespawned
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "expected a WorkerRespawned event after the crash")

	require.Eventually(t, func() bool {
		sup.mu.RLock()
		defer sup.mu.RUnlock()
		return sup.workers[q.ID][0] != original
	}, 2*time.Second, 10*time.Millisecond, "crashed worker was never replaced in its slot")
}

// TestSupervisorNoHandlerFailsJob covers the boundary case where a job_type
// has no registered handler: it goes through the normal retry/terminal path
// rather than panicking the worker.
func TestSupervisorNoHandlerFailsJob(t *testing.T) {
	sup := New(memory.New(), handler.NewRegistry(), events.NewBus(events.DefaultCapacity), nil)
	ctx := context.Background()

	q, err := sup.CreateQueue(ctx, "orphaned", "", job.QueueConfig{Concurrency: 1, DefaultTimeoutSecs: 5})
	require.NoError(t, err)
	defer sup.Shutdown(ctx)

	j, err := sup.EnqueueJob(ctx, q.ID, "no_such_handler", nil, job.PriorityNormal, 0, 5, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := sup.GetJob(ctx, j.ID)
		return err == nil && got.Status.Kind == job.StatusFailed
	}, 2*time.Second, 20*time.Millisecond, "job without a handler should terminate as failed")
}
