// Package job defines the data model shared by every actor in the job queue:
// Job, its tagged-variant Status, and Priority.
package job

import (
	"encoding/json"
	"time"
)

// Job is a single unit of work. ID, QueueID, JobType, Payload, Priority,
// MaxRetries, TimeoutSecs, and Tags never change after Enqueue. CreatedAt is
// set by the repository when the job is created, and again when RetryJob
// re-creates it; everything else is owned exclusively by the queue actor
// that dispatches the job.
type Job struct {
	ID       ID      `json:"id"`
	QueueID  QueueID `json:"queue_id"`
	JobType  string  `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Priority Priority `json:"priority"`

	Status   Status `json:"status"`
	Attempts uint   `json:"attempts"`

	MaxRetries  uint `json:"max_retries"`
	TimeoutSecs uint `json:"timeout_secs"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tags []string `json:"tags,omitempty"`

	// TraceLink carries an opaque OpenTelemetry span-context payload captured
	// at enqueue time, so the worker can link (not parent) its handler span
	// back to the caller that submitted the job. Opaque to this package; see
	// lib/jobqueue/trace.
	TraceLink json.RawMessage `json:"trace_link,omitempty"`
}

// Timeout returns the job's wall-clock execution bound as a time.Duration.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutSecs) * time.Second
}

// ExhaustedRetries reports whether another dispatch attempt would push
// Attempts past MaxRetries+1.
func (j *Job) ExhaustedRetries() bool {
	return j.Attempts > j.MaxRetries
}

// touch bumps UpdatedAt, keeping it monotonically non-decreasing.
func (j *Job) touch(now time.Time) {
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}

// New constructs a Job in the Pending state with zero attempts, ready to be
// handed to a queue actor's Enqueue message.
func New(queueID QueueID, jobType string, payload json.RawMessage, priority Priority, maxRetries, timeoutSecs uint, tags []string, now time.Time) *Job {
	return &Job{
		ID:          NewID(),
		QueueID:     queueID,
		JobType:     jobType,
		Payload:     payload,
		Priority:    priority,
		Status:      Pending(),
		Attempts:    0,
		MaxRetries:  maxRetries,
		TimeoutSecs: timeoutSecs,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        tags,
	}
}

// Clone returns a deep-enough copy safe to hand to a caller without letting
// them mutate queue-actor-owned state.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Tags != nil {
		cp.Tags = append([]string(nil), j.Tags...)
	}
	if j.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.TraceLink != nil {
		cp.TraceLink = append(json.RawMessage(nil), j.TraceLink...)
	}
	return &cp
}

// TransitionToRunning moves the job Pending -> Running, incrementing attempts.
func (j *Job) TransitionToRunning(now time.Time, workerID string) {
	j.Attempts++
	j.Status = Running(now, workerID)
	j.touch(now)
}

// TransitionToCompleted moves the job Running -> Completed.
func (j *Job) TransitionToCompleted(now time.Time, result Result) {
	startedAt := j.Status.StartedAt
	j.Status = Completed(startedAt, now, result)
	j.touch(now)
}

// TransitionToFailedRetry moves a Running job back to Pending for another
// dispatch attempt.
func (j *Job) TransitionToFailedRetry(now time.Time) {
	j.Status = Pending()
	j.touch(now)
}

// TransitionToFailedTerminal moves the job Running -> Failed with no more
// retries available.
func (j *Job) TransitionToFailedTerminal(now time.Time, errMsg string) {
	startedAt := j.Status.StartedAt
	j.Status = Failed(startedAt, now, errMsg, j.Attempts)
	j.touch(now)
}

// TransitionToCancelled moves the job to Cancelled from any non-terminal state.
func (j *Job) TransitionToCancelled(now time.Time, reason string) {
	j.Status = Cancelled(now, reason)
	j.touch(now)
}

// TransitionToPendingRetry resets a Failed/Cancelled job back to Pending for
// RetryJob. Attempts is preserved, not reset, so a manually retried job keeps
// its history.
func (j *Job) TransitionToPendingRetry(now time.Time) {
	j.Status = Pending()
	j.touch(now)
}
