package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/handler"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/logger"
	jqtrace "github.com/flowkit/jobqueue/lib/jobqueue/trace"
)

// DefaultHeartbeat is the worker's idle polling interval.
const DefaultHeartbeat = 100 * time.Millisecond

// requestJobCallTimeout bounds how long a worker waits for its queue actor to
// accept/answer a RequestJob poll; it is an internal caller bound (see
// jobqueueerr.Timeout), not the job's own execution timeout.
const requestJobCallTimeout = 2 * time.Second

// workerActor pulls at most one job at a time from its bound queue actor and
// runs it under the registered handler. One worker is bound to one queue
// actor for its entire lifetime.
type workerActor struct {
	id       string
	queueID  job.QueueID
	qa       *queueActor
	registry *handler.Registry
	bus      *events.Bus
	log      logger.StandardLogger
	heartbeat time.Duration

	currentJob atomic.Pointer[job.ID]

	stopCh  chan struct{}
	stopped chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup
}

func newWorkerActor(id string, queueID job.QueueID, qa *queueActor, registry *handler.Registry, bus *events.Bus, log logger.StandardLogger, heartbeat time.Duration) *workerActor {
	if log == nil {
		log = &logger.DiscardLogger{}
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &workerActor{
		id:        id,
		queueID:   queueID,
		qa:        qa,
		registry:  registry,
		bus:       bus,
		log:       log,
		heartbeat: heartbeat,
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// run is the worker's sole goroutine: a heartbeat loop that polls for work
// while idle and reports outcomes once a job completes or times out. It
// recovers a panic escaping tick (an unrecovered panic in any goroutine would
// otherwise crash the whole process) and reports itself as crashed so the
// supervisor can spawn a replacement in its place.
func (w *workerActor) run() (crashed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			w.log.Errorw("worker goroutine panicked", "worker_id", w.id, "panic", rec)
			close(w.stopped)
			crashed = true
		}
	}()

	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			w.wg.Wait() // Shutdown: finish the in-flight job's outcome before terminating.
			close(w.stopped)
			return false
		case t := <-ticker.C:
			w.tick(t)
		}
	}
}

func (w *workerActor) tick(t time.Time) {
	cur := w.currentJob.Load()
	w.publishHeartbeat(t, cur)
	if cur != nil {
		return // busy: only poll RequestJob while idle
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestJobCallTimeout)
	defer cancel()
	j, ok, err := w.qa.RequestJob(ctx, w.id)
	if err != nil {
		w.log.Warnw("request job failed", "worker_id", w.id, "err", err)
		return
	}
	if !ok {
		return
	}

	id := j.ID
	w.currentJob.Store(&id)
	w.wg.Add(1)
	go w.executeJob(j)
}

func (w *workerActor) publishHeartbeat(t time.Time, currentJob *job.ID) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(events.Event{
		Kind:       events.WorkerHeartbeat,
		Timestamp:  t,
		WorkerID:   w.id,
		QueueID:    w.queueID,
		CurrentJob: currentJob,
	})
}

func (w *workerActor) executeJob(j *job.Job) {
	defer w.wg.Done()
	defer w.currentJob.Store(nil)

	h, ok := w.registry.Lookup(j.JobType)
	if !ok {
		// No handler is an application error, but it still goes through the
		// normal retry/terminal path rather than a special case.
		if err := w.qa.JobFailed(context.Background(), j.ID, w.id, "no handler for job_type"); err != nil {
			w.log.Warnw("report job failed (no handler) failed", "job_id", j.ID, "err", err)
		}
		return
	}

	outcome := w.invoke(h, j)
	if outcome.Err != nil {
		if err := w.qa.JobFailed(context.Background(), j.ID, w.id, outcome.Err.Error()); err != nil {
			w.log.Warnw("report job failed failed", "job_id", j.ID, "err", err)
		}
		return
	}
	if err := w.qa.JobCompleted(context.Background(), j.ID, w.id, outcome.Result); err != nil {
		w.log.Warnw("report job completed failed", "job_id", j.ID, "err", err)
	}
}

// invoke bounds the handler call by job.TimeoutSecs. On timeout the
// invocation is abandoned and reported as a failure; the handler goroutine is
// signalled via ctx cancellation but MAY keep running in the background if it
// does not observe ctx.
func (w *workerActor) invoke(h handler.Handler, j *job.Job) handler.Outcome {
	linked := jqtrace.ContextWithStoredLink(context.Background(), j.TraceLink)
	ctx, cancel := context.WithTimeout(linked, j.Timeout())
	defer cancel()
	ctx, span := jqtrace.StartSpan(ctx, "jobqueue.handle."+j.JobType)
	defer span.End()

	resultCh := make(chan handler.Outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- handler.Outcome{Err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		result, err := h.Handle(ctx, j)
		resultCh <- handler.Outcome{Result: result, Err: err}
	}()

	select {
	case o := <-resultCh:
		return o
	case <-ctx.Done():
		return handler.Outcome{Err: fmt.Errorf("timeout")}
	}
}

// StopJob forcibly marks the in-flight job as failed with reason and frees
// the worker to poll again, without waiting for the handler goroutine to
// return. Used when a caller needs the worker slot back immediately rather
// than waiting out a stuck handler.
func (w *workerActor) StopJob(reason string) {
	id := w.currentJob.Load()
	if id == nil {
		return
	}
	jobID := *id
	w.currentJob.Store(nil)
	go func() {
		if err := w.qa.JobFailed(context.Background(), jobID, w.id, reason); err != nil {
			w.log.Warnw("stop job report failed", "job_id", jobID, "err", err)
		}
	}()
}

// Shutdown stops the heartbeat loop and waits for any in-flight job to report
// its outcome before returning.
func (w *workerActor) Shutdown() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.stopped
}
