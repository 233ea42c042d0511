package job

import (
	"encoding/json"
	"time"
)

// StatusKind discriminates the variants of Status. Go has no sum types, so
// Status keeps a single discriminator field and serializes as a tagged
// object, rather than an ad-hoc pairing of (status, optional fields); only
// the fields belonging to the current Kind are meaningful.
type StatusKind string

const (
	StatusPending   StatusKind = "pending"
	StatusRunning   StatusKind = "running"
	StatusCompleted StatusKind = "completed"
	StatusFailed    StatusKind = "failed"
	StatusCancelled StatusKind = "cancelled"
	StatusPaused    StatusKind = "paused" // reachable only by a Queue, never by a Job.
)

// Result is the structured outcome of a successfully completed job.
type Result struct {
	Summary string          `json:"summary"`
	Output  json.RawMessage `json:"output,omitempty"`
}

// Status is the tagged-variant job status. Exactly one of the
// variant-specific field groups is meaningful, selected by Kind.
type Status struct {
	Kind StatusKind `json:"kind"`

	// Running
	StartedAt time.Time `json:"started_at,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`

	// Completed (also uses StartedAt)
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Result      *Result   `json:"result,omitempty"`

	// Failed (also uses StartedAt)
	FailedAt time.Time `json:"failed_at,omitempty"`
	Error    string    `json:"error,omitempty"`
	Attempts uint      `json:"attempts,omitempty"`

	// Cancelled
	CancelledAt time.Time `json:"cancelled_at,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// Terminal reports whether the status can never transition again without a
// RetryJob call.
func (s Status) Terminal() bool {
	switch s.Kind {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Retryable reports whether RetryJob is admissible from this status.
func (s Status) Retryable() bool {
	return s.Kind == StatusFailed || s.Kind == StatusCancelled
}

func Pending() Status { return Status{Kind: StatusPending} }

func Running(startedAt time.Time, workerID string) Status {
	return Status{Kind: StatusRunning, StartedAt: startedAt, WorkerID: workerID}
}

func Completed(startedAt, completedAt time.Time, result Result) Status {
	return Status{Kind: StatusCompleted, StartedAt: startedAt, CompletedAt: completedAt, Result: &result}
}

func Failed(startedAt, failedAt time.Time, errMsg string, attempts uint) Status {
	return Status{Kind: StatusFailed, StartedAt: startedAt, FailedAt: failedAt, Error: errMsg, Attempts: attempts}
}

func Cancelled(cancelledAt time.Time, reason string) Status {
	return Status{Kind: StatusCancelled, CancelledAt: cancelledAt, Reason: reason}
}

func PausedStatus() Status { return Status{Kind: StatusPaused} }
