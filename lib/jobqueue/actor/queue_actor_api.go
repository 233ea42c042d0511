package actor

import (
	"context"
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
)

// send delivers msg to the actor's mailbox, honoring ctx cancellation and the
// actor's own shutdown. It never races the handler's reply send because the
// reply channels used by callers below are always buffered by 1.
func (qa *queueActor) send(ctx context.Context, msg any) error {
	select {
	case qa.mailbox <- msg:
		return nil
	case <-qa.done:
		return jobqueueerr.New(jobqueueerr.NotAccepting, "queue actor has shut down")
	case <-ctx.Done():
		return jobqueueerr.Wrap(jobqueueerr.Timeout, "queue actor did not accept message in time", ctx.Err())
	}
}

// Enqueue submits a new Pending job to this queue.
func (qa *queueActor) Enqueue(ctx context.Context, j *job.Job) (*job.Job, error) {
	reply := make(chan enqueueReply, 1)
	if err := qa.send(ctx, enqueueMsg{job: j, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.job, r.err
	case <-ctx.Done():
		return nil, jobqueueerr.Wrap(jobqueueerr.Timeout, "enqueue reply not received in time", ctx.Err())
	}
}

// RequestJob is polled by worker actors; it returns (nil, false) when no job
// is currently dispatchable.
func (qa *queueActor) RequestJob(ctx context.Context, workerID string) (*job.Job, bool, error) {
	reply := make(chan requestJobReply, 1)
	if err := qa.send(ctx, requestJobMsg{workerID: workerID, reply: reply}); err != nil {
		return nil, false, err
	}
	select {
	case r := <-reply:
		return r.job, r.job != nil, nil
	case <-ctx.Done():
		return nil, false, jobqueueerr.Wrap(jobqueueerr.Timeout, "request job reply not received in time", ctx.Err())
	}
}

func (qa *queueActor) JobCompleted(ctx context.Context, id job.ID, workerID string, result job.Result) error {
	reply := make(chan struct{}, 1)
	if err := qa.send(ctx, jobCompletedMsg{jobID: id, workerID: workerID, result: result, at: time.Now(), reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

func (qa *queueActor) JobFailed(ctx context.Context, id job.ID, workerID, errMsg string) error {
	reply := make(chan struct{}, 1)
	if err := qa.send(ctx, jobFailedMsg{jobID: id, workerID: workerID, errMsg: errMsg, at: time.Now(), reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

func (qa *queueActor) CancelJob(ctx context.Context, id job.ID, reason string) error {
	reply := make(chan error, 1)
	if err := qa.send(ctx, cancelJobMsg{jobID: id, reason: reason, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (qa *queueActor) RetryJob(ctx context.Context, id job.ID) error {
	reply := make(chan error, 1)
	if err := qa.send(ctx, retryJobMsg{jobID: id, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (qa *queueActor) GetJob(ctx context.Context, id job.ID) (*job.Job, bool, error) {
	reply := make(chan getJobReply, 1)
	if err := qa.send(ctx, getJobMsg{jobID: id, reply: reply}); err != nil {
		return nil, false, err
	}
	r := <-reply
	if !r.ok {
		return nil, false, nil
	}
	return r.job.Clone(), true, nil
}

func (qa *queueActor) ListJobs(ctx context.Context) ([]*job.Job, error) {
	reply := make(chan []*job.Job, 1)
	if err := qa.send(ctx, listJobsMsg{reply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

func (qa *queueActor) GetInfo(ctx context.Context) (*job.Queue, error) {
	reply := make(chan *job.Queue, 1)
	if err := qa.send(ctx, getInfoMsg{reply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

func (qa *queueActor) GetStats(ctx context.Context) (job.QueueStats, error) {
	reply := make(chan job.QueueStats, 1)
	if err := qa.send(ctx, getStatsMsg{reply: reply}); err != nil {
		return job.QueueStats{}, err
	}
	return <-reply, nil
}

func (qa *queueActor) Pause(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := qa.send(ctx, pauseMsg{reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (qa *queueActor) Resume(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := qa.send(ctx, resumeMsg{reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (qa *queueActor) Tick(ctx context.Context, at time.Time) error {
	reply := make(chan struct{}, 1)
	if err := qa.send(ctx, tickMsg{at: at, reply: reply}); err != nil {
		return err
	}
	<-reply
	return nil
}

// Shutdown stops the actor from accepting further messages and waits for its
// goroutine to exit. Safe to call more than once.
func (qa *queueActor) Shutdown(ctx context.Context) error {
	select {
	case <-qa.done:
		return nil // already shut down
	default:
	}
	reply := make(chan struct{}, 1)
	if err := qa.send(ctx, shutdownMsg{reply: reply}); err != nil {
		return nil // already shut down
	}
	<-reply
	<-qa.done
	return nil
}
