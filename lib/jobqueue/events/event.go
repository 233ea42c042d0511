// Package events implements the job queue's lifecycle event stream: a
// tagged-variant JobEvent broadcast over a bounded, lossy fan-out bus.
package events

import (
	"time"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// Kind discriminates the JobEvent variants.
type Kind string

const (
	QueueCreated       Kind = "queue_created"
	QueueStateChanged  Kind = "queue_state_changed"
	QueueStatsUpdated  Kind = "queue_stats_updated"
	QueueDeleted       Kind = "queue_deleted"
	JobEnqueued        Kind = "job_enqueued"
	JobStarted         Kind = "job_started"
	JobCompleted       Kind = "job_completed"
	JobFailed          Kind = "job_failed"
	JobCancelled       Kind = "job_cancelled"
	JobRetrying        Kind = "job_retrying"
	WorkerHeartbeat    Kind = "worker_heartbeat"
	WorkerRespawned    Kind = "worker_respawned"
)

// Event is a single tagged record on the bus. Only the fields relevant to
// Kind are populated; this mirrors the discriminator-tagged approach used for
// job.Status.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Queue      *job.Queue `json:"queue,omitempty"`
	QueueID    job.QueueID `json:"queue_id,omitempty"`
	OldState   job.QueueState `json:"old_state,omitempty"`
	NewState   job.QueueState `json:"new_state,omitempty"`
	Stats      *job.QueueStats `json:"stats,omitempty"`

	Job        *job.Job `json:"job,omitempty"`
	JobID      job.ID   `json:"job_id,omitempty"`
	WorkerID   string   `json:"worker_id,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
	Attempts   uint     `json:"attempts,omitempty"`
	WillRetry  bool     `json:"will_retry,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Attempt    uint     `json:"attempt,omitempty"`
	CurrentJob *job.ID  `json:"current_job,omitempty"`
}
