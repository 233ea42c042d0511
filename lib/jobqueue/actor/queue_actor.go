// Package actor implements the supervised, actor-style concurrency core: the
// Supervisor, one Queue Actor per queue, and the Worker Actors that pull jobs
// from them. Each queue actor owns a single goroutine processing a serial
// mailbox; workers poll their queue actor on a heartbeat ticker, and the
// supervisor guards its registry with a mutex. The only suspension points
// are repository calls and, for workers, handler invocation.
package actor

import (
	"container/heap"
	"context"
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/events"
	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
	"github.com/flowkit/jobqueue/lib/jobqueue/logger"
	"github.com/flowkit/jobqueue/lib/jobqueue/metrics"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
)

// mailboxBuffer bounds how many in-flight requests a queue actor accepts
// before callers block; generous enough that bursts of RequestJob polling
// from many workers never deadlock against a slow repository call.
const mailboxBuffer = 256

// queueActor is the single-writer owner of one queue's in-memory and
// persisted job state.
type queueActor struct {
	queue   job.Queue
	pending pendingHeap
	running map[job.ID]*job.Job
	jobs    map[job.ID]*job.Job

	repo repository.Repository
	bus  *events.Bus
	log  logger.StandardLogger
	now  func() time.Time

	rateLimitLastAt time.Time

	mailbox chan any
	done    chan struct{}
}

func newQueueActor(q job.Queue, repo repository.Repository, bus *events.Bus, log logger.StandardLogger) *queueActor {
	metrics.InitMetrics()
	if log == nil {
		log = &logger.DiscardLogger{}
	}
	qa := &queueActor{
		queue:   q,
		pending: make(pendingHeap, 0),
		running: make(map[job.ID]*job.Job),
		jobs:    make(map[job.ID]*job.Job),
		repo:    repo,
		bus:     bus,
		log:     log,
		now:     time.Now,
		mailbox: make(chan any, mailboxBuffer),
		done:    make(chan struct{}),
	}
	heap.Init(&qa.pending)
	return qa
}

// run is the actor's sole goroutine: it processes exactly one message at a
// time from the mailbox until Shutdown closes it down.
func (qa *queueActor) run() {
	for msg := range qa.mailbox {
		qa.handle(msg)
	}
	close(qa.done)
}

func (qa *queueActor) handle(msg any) {
	switch m := msg.(type) {
	case enqueueMsg:
		j, err := qa.doEnqueue(m.job)
		m.reply <- enqueueReply{job: j, err: err}
	case requestJobMsg:
		m.reply <- requestJobReply{job: qa.doRequestJob(m.workerID)}
	case jobCompletedMsg:
		qa.doJobCompleted(m.jobID, m.result, m.at)
		m.reply <- struct{}{}
	case jobFailedMsg:
		qa.doJobFailed(m.jobID, m.errMsg, m.at)
		m.reply <- struct{}{}
	case cancelJobMsg:
		m.reply <- qa.doCancelJob(m.jobID, m.reason)
	case retryJobMsg:
		m.reply <- qa.doRetryJob(m.jobID)
	case getJobMsg:
		j, ok := qa.jobs[m.jobID]
		m.reply <- getJobReply{job: j, ok: ok}
	case listJobsMsg:
		out := make([]*job.Job, 0, len(qa.jobs))
		for _, j := range qa.jobs {
			out = append(out, j.Clone())
		}
		m.reply <- out
	case getInfoMsg:
		cp := qa.queue
		m.reply <- &cp
	case getStatsMsg:
		m.reply <- qa.queue.Stats
	case pauseMsg:
		m.reply <- qa.doSetState(job.QueuePaused)
	case resumeMsg:
		m.reply <- qa.doSetState(job.QueueRunning)
	case tickMsg:
		qa.doTick(m.at)
		m.reply <- struct{}{}
	case shutdownMsg:
		qa.doSetState(job.QueueStopped)
		close(qa.mailbox)
		m.reply <- struct{}{}
	}
}

func (qa *queueActor) publish(ev events.Event) {
	if qa.bus == nil {
		return
	}
	ev.Timestamp = qa.now()
	qa.bus.Publish(ev)
}

func (qa *queueActor) doEnqueue(j *job.Job) (*job.Job, error) {
	if !qa.queue.State.AcceptsNewJobs() {
		return nil, jobqueueerr.New(jobqueueerr.NotAccepting, "queue is not accepting new jobs")
	}
	if qa.queue.Config.MaxQueueSize != nil && uint(len(qa.pending)) >= *qa.queue.Config.MaxQueueSize {
		return nil, jobqueueerr.New(jobqueueerr.Full, "queue pending set is at capacity")
	}
	if err := qa.repo.CreateJob(context.Background(), j); err != nil {
		return nil, err
	}
	heap.Push(&qa.pending, j)
	qa.jobs[j.ID] = j
	qa.queue.Stats.Pending = uint(len(qa.pending))
	qa.publish(events.Event{Kind: events.JobEnqueued, Job: j.Clone(), QueueID: qa.queue.ID})
	return j, nil
}

// doRequestJob implements the priority dispatch algorithm and its atomic
// rollback on persistence failure.
func (qa *queueActor) doRequestJob(workerID string) *job.Job {
	if !qa.queue.State.DispatchesJobs() {
		return nil
	}
	if uint(len(qa.running)) >= qa.queue.Config.Concurrency {
		return nil
	}
	if len(qa.pending) == 0 {
		return nil
	}
	if rl := qa.queue.Config.RateLimit; rl != nil && *rl > 0 {
		minInterval := time.Duration(float64(time.Second) / *rl)
		if !qa.rateLimitLastAt.IsZero() && qa.now().Sub(qa.rateLimitLastAt) < minInterval {
			return nil
		}
	}

	j := heap.Pop(&qa.pending).(*job.Job)
	now := qa.now()
	prevAttempts := j.Attempts
	j.TransitionToRunning(now, workerID)

	if err := qa.repo.UpdateJobStatus(context.Background(), j.ID, j.Status, j.Attempts); err != nil {
		// Atomic rollback: the job never left Pending from the caller's
		// perspective.
		j.Status = job.Pending()
		j.Attempts = prevAttempts
		heap.Push(&qa.pending, j)
		qa.log.Warnw("dispatch persist failed, rolled back", "job_id", j.ID, "err", err)
		return nil
	}

	qa.running[j.ID] = j
	qa.rateLimitLastAt = now
	qa.queue.Stats.Pending = uint(len(qa.pending))
	qa.queue.Stats.Running = uint(len(qa.running))
	metrics.PendingJobs.Record(context.Background(), int64(qa.queue.Stats.Pending), metrics.QueueAttr(qa.queue.Name))
	metrics.RunningJobs.Record(context.Background(), int64(qa.queue.Stats.Running), metrics.QueueAttr(qa.queue.Name))
	metrics.DispatchTotal.Inc(context.Background(), metrics.QueueAttr(qa.queue.Name))
	qa.publish(events.Event{Kind: events.JobStarted, JobID: j.ID, QueueID: qa.queue.ID, WorkerID: workerID})
	return j
}

func (qa *queueActor) doJobCompleted(id job.ID, result job.Result, at time.Time) {
	j, ok := qa.running[id]
	if !ok {
		return // unknown or already-terminal job_id: silently ignored
	}
	delete(qa.running, id)
	startedAt := j.Status.StartedAt
	j.TransitionToCompleted(at, result)
	durationMs := at.Sub(startedAt).Milliseconds()

	if err := qa.repo.ArchiveJob(context.Background(), j); err != nil {
		qa.log.Errorw("archive completed job failed", "job_id", id, "err", err)
	}
	qa.queue.Stats.Running = uint(len(qa.running))
	qa.queue.Stats.Completed++
	metrics.RunningJobs.Record(context.Background(), int64(qa.queue.Stats.Running), metrics.QueueAttr(qa.queue.Name))
	metrics.JobDuration.Record(context.Background(), time.Duration(durationMs)*time.Millisecond, metrics.QueueAttr(qa.queue.Name), metrics.OutcomeAttr("completed"))
	qa.publish(events.Event{Kind: events.JobCompleted, JobID: id, QueueID: qa.queue.ID, DurationMs: durationMs})
}

func (qa *queueActor) doJobFailed(id job.ID, errMsg string, at time.Time) {
	j, ok := qa.running[id]
	if !ok {
		return
	}
	delete(qa.running, id)

	if !j.ExhaustedRetries() {
		j.TransitionToFailedRetry(at)
		if err := qa.repo.UpdateJobStatus(context.Background(), j.ID, j.Status, j.Attempts); err != nil {
			qa.log.Errorw("persist retry status failed", "job_id", id, "err", err)
		}
		heap.Push(&qa.pending, j)
		qa.queue.Stats.Running = uint(len(qa.running))
		qa.queue.Stats.Pending = uint(len(qa.pending))
		metrics.RunningJobs.Record(context.Background(), int64(qa.queue.Stats.Running), metrics.QueueAttr(qa.queue.Name))
		metrics.PendingJobs.Record(context.Background(), int64(qa.queue.Stats.Pending), metrics.QueueAttr(qa.queue.Name))
		metrics.RetryTotal.Inc(context.Background(), metrics.QueueAttr(qa.queue.Name))
		qa.publish(events.Event{Kind: events.JobFailed, JobID: id, QueueID: qa.queue.ID, Error: errMsg, Attempts: j.Attempts, WillRetry: true})
		qa.publish(events.Event{Kind: events.JobRetrying, JobID: id, QueueID: qa.queue.ID, Attempt: j.Attempts + 1})
		return
	}

	j.TransitionToFailedTerminal(at, errMsg)
	if err := qa.repo.ArchiveJob(context.Background(), j); err != nil {
		qa.log.Errorw("archive failed job failed", "job_id", id, "err", err)
	}
	qa.queue.Stats.Running = uint(len(qa.running))
	qa.queue.Stats.Failed++
	metrics.RunningJobs.Record(context.Background(), int64(qa.queue.Stats.Running), metrics.QueueAttr(qa.queue.Name))
	metrics.JobDuration.Record(context.Background(), at.Sub(j.Status.StartedAt), metrics.QueueAttr(qa.queue.Name), metrics.OutcomeAttr("failed"))
	qa.publish(events.Event{Kind: events.JobFailed, JobID: id, QueueID: qa.queue.ID, Error: errMsg, Attempts: j.Attempts, WillRetry: false})
}

func (qa *queueActor) doCancelJob(id job.ID, reason string) error {
	now := qa.now()
	if j, ok := qa.pending.removeByID(id); ok {
		j.TransitionToCancelled(now, reason)
		if err := qa.repo.ArchiveJob(context.Background(), j); err != nil {
			qa.log.Errorw("archive cancelled job failed", "job_id", id, "err", err)
		}
		qa.queue.Stats.Pending = uint(len(qa.pending))
		qa.publish(events.Event{Kind: events.JobCancelled, JobID: id, QueueID: qa.queue.ID, Reason: reason})
		return nil
	}
	if j, ok := qa.running[id]; ok {
		delete(qa.running, id)
		j.TransitionToCancelled(now, reason)
		if err := qa.repo.ArchiveJob(context.Background(), j); err != nil {
			qa.log.Errorw("archive cancelled job failed", "job_id", id, "err", err)
		}
		qa.queue.Stats.Running = uint(len(qa.running))
		qa.publish(events.Event{Kind: events.JobCancelled, JobID: id, QueueID: qa.queue.ID, Reason: reason})
		return nil
	}
	return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
}

func (qa *queueActor) doRetryJob(id job.ID) error {
	j, ok := qa.jobs[id]
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	if !j.Status.Retryable() {
		return jobqueueerr.New(jobqueueerr.Conflict, "job is not retryable in its current state")
	}
	j.TransitionToPendingRetry(qa.now())
	if err := qa.repo.CreateJob(context.Background(), j); err != nil {
		return err
	}
	heap.Push(&qa.pending, j)
	qa.queue.Stats.Pending = uint(len(qa.pending))
	return nil
}

func (qa *queueActor) doSetState(target job.QueueState) error {
	if qa.queue.State == target {
		return nil // already there; not an error
	}
	old := qa.queue.State
	qa.queue.State = target
	qa.queue.UpdatedAt = qa.now()
	if err := qa.repo.UpdateQueueState(context.Background(), qa.queue.ID, target); err != nil {
		qa.queue.State = old
		return err
	}
	qa.publish(events.Event{Kind: events.QueueStateChanged, QueueID: qa.queue.ID, OldState: old, NewState: target})
	return nil
}

// doTick recomputes stats from authoritative counts, emits
// QueueStatsUpdated, and evicts terminal entries past the retention window
// from the jobs map.
func (qa *queueActor) doTick(now time.Time) {
	qa.queue.Stats.Pending = uint(len(qa.pending))
	qa.queue.Stats.Running = uint(len(qa.running))

	counts, err := qa.repo.CountByStatus(context.Background(), qa.queue.ID)
	if err == nil {
		qa.queue.Stats.Completed = counts[job.StatusCompleted]
		qa.queue.Stats.Failed = counts[job.StatusFailed]
	}
	if err := qa.repo.UpdateQueueStats(context.Background(), qa.queue.ID, qa.queue.Stats); err != nil {
		qa.log.Warnw("persist queue stats failed", "queue_id", qa.queue.ID, "err", err)
	}

	retention := qa.queue.Config.RetentionWindow
	if retention <= 0 {
		retention = job.DefaultQueueConfig().RetentionWindow
	}
	for id, j := range qa.jobs {
		if !j.Status.Terminal() {
			continue
		}
		if _, stillPending := qa.running[id]; stillPending {
			continue
		}
		if now.Sub(j.UpdatedAt) > retention {
			delete(qa.jobs, id)
		}
	}

	stats := qa.queue.Stats
	qa.publish(events.Event{Kind: events.QueueStatsUpdated, QueueID: qa.queue.ID, Stats: &stats})
}
