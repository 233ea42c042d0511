package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository/memory"
)

// newTestQueueActor builds a queueActor without starting its mailbox
// goroutine, so the do* methods below can be called directly and
// deterministically from the test goroutine.
func newTestQueueActor(t *testing.T, cfg job.QueueConfig) (*queueActor, *events.Bus) {
	t.Helper()
	repo := memory.New()
	bus := events.NewBus(16)
	q := job.Queue{
		ID:     job.NewQueueID(),
		Name:   "test-queue-" + string(job.NewQueueID()),
		State:  job.QueueRunning,
		Config: cfg,
	}
	require.NoError(t, repo.CreateQueue(context.Background(), &q))
	qa := newQueueActor(q, repo, bus, nil)
	return qa, bus
}

func mustEnqueue(t *testing.T, qa *queueActor, priority job.Priority, maxRetries uint) *job.Job {
	t.Helper()
	j := job.New(qa.queue.ID, "test_job", nil, priority, maxRetries, 30, nil, time.Now())
	out, err := qa.doEnqueue(j)
	require.NoError(t, err)
	return out
}

// TestPriorityDispatchOrder covers the priority ordering property: critical
// jobs dispatch before normal, normal before low, regardless of enqueue
// order, for jobs that arrive before any dispatch happens.
func TestPriorityDispatchOrder(t *testing.T) {
	qa, _ := newTestQueueActor(t, job.QueueConfig{Concurrency: 1, DefaultMaxRetries: 0})

	low := mustEnqueue(t, qa, job.PriorityLow, 0)
	critical := mustEnqueue(t, qa, job.PriorityCritical, 0)
	normal := mustEnqueue(t, qa, job.PriorityNormal, 0)

	first := qa.doRequestJob("w1")
	require.NotNil(t, first)
	assert.Equal(t, critical.ID, first.ID)

	// free the slot so the next dispatch can proceed
	qa.doJobCompleted(first.ID, job.Result{}, time.Now())

	second := qa.doRequestJob("w1")
	require.NotNil(t, second)
	assert.Equal(t, normal.ID, second.ID)

	qa.doJobCompleted(second.ID, job.Result{}, time.Now())

	third := qa.doRequestJob("w1")
	require.NotNil(t, third)
	assert.Equal(t, low.ID, third.ID)
}

// TestRetryThenTerminal covers a max_retries=2 sequence: attempts 1 -> 2 -> 3,
// where the first two failures retry and the third is terminal.
func TestRetryThenTerminal(t *testing.T) {
	qa, bus := newTestQueueActor(t, job.QueueConfig{Concurrency: 1, DefaultMaxRetries: 2})
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	j := mustEnqueue(t, qa, job.PriorityNormal, 2)
	drainEvents(sub, 1) // JobEnqueued

	for attempt := 1; attempt <= 2; attempt++ {
		dispatched := qa.doRequestJob("w1")
		require.NotNil(t, dispatched)
		assert.Equal(t, uint(attempt), dispatched.Attempts)
		drainEvents(sub, 1) // JobStarted

		qa.doJobFailed(j.ID, "boom", time.Now())
		evs := drainEvents(sub, 2) // JobFailed(will_retry), JobRetrying
		assert.Equal(t, events.JobFailed, evs[0].Kind)
		assert.True(t, evs[0].WillRetry)
		assert.Equal(t, events.JobRetrying, evs[1].Kind)
		assert.Equal(t, uint(attempt+1), evs[1].Attempt)
	}

	final := qa.doRequestJob("w1")
	require.NotNil(t, final)
	assert.Equal(t, uint(3), final.Attempts)
	drainEvents(sub, 1) // JobStarted

	qa.doJobFailed(j.ID, "still broken", time.Now())
	evs := drainEvents(sub, 1) // terminal JobFailed only, no JobRetrying
	assert.Equal(t, events.JobFailed, evs[0].Kind)
	assert.False(t, evs[0].WillRetry)

	assert.Len(t, qa.running, 0)
}

// TestCancelRunningJob covers cancelling a job that is already dispatched.
func TestCancelRunningJob(t *testing.T) {
	qa, _ := newTestQueueActor(t, job.QueueConfig{Concurrency: 1})
	j := mustEnqueue(t, qa, job.PriorityNormal, 0)
	dispatched := qa.doRequestJob("w1")
	require.NotNil(t, dispatched)

	err := qa.doCancelJob(j.ID, "user requested")
	require.NoError(t, err)
	assert.Len(t, qa.running, 0)

	err = qa.doCancelJob(j.ID, "again")
	assert.Error(t, err, "a job cannot be cancelled twice")
}

// TestPauseGatesDispatchAndEnqueue covers pause/resume semantics: a paused
// queue accepts no new jobs and dispatches none of its backlog.
func TestPauseGatesDispatchAndEnqueue(t *testing.T) {
	qa, _ := newTestQueueActor(t, job.QueueConfig{Concurrency: 1})
	mustEnqueue(t, qa, job.PriorityNormal, 0)

	require.NoError(t, qa.doSetState(job.QueuePaused))

	assert.Nil(t, qa.doRequestJob("w1"), "a paused queue must not dispatch its backlog")

	_, err := qa.doEnqueue(job.New(qa.queue.ID, "t", nil, job.PriorityNormal, 0, 30, nil, time.Now()))
	assert.Error(t, err, "a paused queue must reject new jobs")

	require.NoError(t, qa.doSetState(job.QueueRunning))
	assert.NotNil(t, qa.doRequestJob("w1"), "resuming must re-enable dispatch")
}

// TestConcurrencyCap covers the worker pool's concurrency bound: once
// Concurrency jobs are running, further RequestJob calls return nothing even
// with pending work available.
func TestConcurrencyCap(t *testing.T) {
	qa, _ := newTestQueueActor(t, job.QueueConfig{Concurrency: 2})
	mustEnqueue(t, qa, job.PriorityNormal, 0)
	mustEnqueue(t, qa, job.PriorityNormal, 0)
	mustEnqueue(t, qa, job.PriorityNormal, 0)

	first := qa.doRequestJob("w1")
	second := qa.doRequestJob("w2")
	require.NotNil(t, first)
	require.NotNil(t, second)

	third := qa.doRequestJob("w3")
	assert.Nil(t, third, "a third dispatch must be refused while at the concurrency cap")
}

// TestSetStateIsIdempotent covers resuming an already-running queue being a
// no-op, not an error, and publishing no state-change event.
func TestSetStateIsIdempotent(t *testing.T) {
	qa, bus := newTestQueueActor(t, job.QueueConfig{Concurrency: 1})
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	require.NoError(t, qa.doSetState(job.QueueRunning))
	select {
	case <-sub.Events:
		t.Fatal("no-op state transition must not publish an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func drainEvents(sub *events.Subscription, n int) []events.Event {
	out := make([]events.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-sub.Events:
			out = append(out, ev)
		case <-time.After(time.Second):
			return out
		}
	}
	return out
}
