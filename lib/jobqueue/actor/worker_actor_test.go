package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/jobqueue/lib/jobqueue/handler"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

func newTestWorkerActor() *workerActor {
	return newWorkerActor("w1", "q1", nil, handler.NewRegistry(), nil, nil, DefaultHeartbeat)
}

// TestInvokeTimeoutAbandonsSlowHandler covers a handler that outruns the
// job's timeout: invoke returns a failed outcome at the timeout rather than
// after the handler's own 3s duration.
func TestInvokeTimeoutAbandonsSlowHandler(t *testing.T) {
	w := newTestWorkerActor()
	j := &job.Job{ID: job.NewID(), TimeoutSecs: 1}
	slow := handler.HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) {
		select {
		case <-time.After(3 * time.Second):
			return job.Result{Summary: "too late"}, nil
		case <-ctx.Done():
			return job.Result{}, ctx.Err()
		}
	})

	start := time.Now()
	outcome := w.invoke(slow, j)
	elapsed := time.Since(start)

	require.Error(t, outcome.Err)
	assert.Less(t, elapsed, 2*time.Second, "invoke must return at the job timeout, not the handler's own duration")
}

func TestInvokeReturnsHandlerResult(t *testing.T) {
	w := newTestWorkerActor()
	j := &job.Job{ID: job.NewID(), TimeoutSecs: 5}
	h := handler.HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) {
		return job.Result{Summary: "done"}, nil
	})

	outcome := w.invoke(h, j)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "done", outcome.Result.Summary)
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	w := newTestWorkerActor()
	j := &job.Job{ID: job.NewID(), TimeoutSecs: 5}
	h := handler.HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) {
		panic("handler bug")
	})

	outcome := w.invoke(h, j)
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "panic")
}

// TestWorkerRunRecoversPanicAndReportsCrash forces run()'s tick loop to panic
// (a nil qa makes the RequestJob poll dereference a nil pointer) and checks
// that run() recovers rather than letting the panic take the process down,
// reporting itself as crashed so a supervisor can respawn it.
func TestWorkerRunRecoversPanicAndReportsCrash(t *testing.T) {
	w := newWorkerActor("w1", "q1", nil, handler.NewRegistry(), nil, nil, time.Millisecond)

	done := make(chan bool, 1)
	go func() { done <- w.run() }()

	select {
	case crashed := <-done:
		assert.True(t, crashed, "run() should report a crash, not a clean exit")
	case <-time.After(2 * time.Second):
		t.Fatal("run() never returned after its tick loop panicked")
	}
}

func TestInvokePropagatesHandlerError(t *testing.T) {
	w := newTestWorkerActor()
	j := &job.Job{ID: job.NewID(), TimeoutSecs: 5}
	wantErr := errors.New("downstream unavailable")
	h := handler.HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) {
		return job.Result{}, wantErr
	})

	outcome := w.invoke(h, j)
	assert.ErrorIs(t, outcome.Err, wantErr)
}
