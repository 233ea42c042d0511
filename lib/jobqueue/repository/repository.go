// Package repository defines the persistence contract the scheduler depends
// on. Any backend honoring this contract is acceptable; gormrepo and memory
// are the two implementations this module ships.
package repository

import (
	"context"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// JobFilter narrows ListJobs. Zero-value fields are not applied.
type JobFilter struct {
	QueueID  job.QueueID
	Status   job.StatusKind
	JobType  string
	Limit    int
}

// Repository is the combined job + queue persistence contract. Timestamps on
// create/update are set server-side by the implementation.
type Repository interface {
	// Job operations.
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, id job.ID) (*job.Job, error)
	UpdateJobStatus(ctx context.Context, id job.ID, status job.Status, attempts uint) error
	UpdateJob(ctx context.Context, j *job.Job) error
	DeleteJob(ctx context.Context, id job.ID) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*job.Job, error)
	GetPendingForQueue(ctx context.Context, queueID job.QueueID, limit int) ([]*job.Job, error)
	ArchiveJob(ctx context.Context, j *job.Job) error
	CountByStatus(ctx context.Context, queueID job.QueueID) (map[job.StatusKind]uint, error)

	// Queue operations.
	CreateQueue(ctx context.Context, q *job.Queue) error
	GetQueue(ctx context.Context, id job.QueueID) (*job.Queue, error)
	GetQueueByName(ctx context.Context, name string) (*job.Queue, error)
	ListQueues(ctx context.Context) ([]*job.Queue, error)
	ListQueuesByState(ctx context.Context, state job.QueueState) ([]*job.Queue, error)
	UpdateQueueState(ctx context.Context, id job.QueueID, state job.QueueState) error
	UpdateQueueStats(ctx context.Context, id job.QueueID, stats job.QueueStats) error
	UpdateQueue(ctx context.Context, q *job.Queue) error
	DeleteQueue(ctx context.Context, id job.QueueID) error
	QueueExists(ctx context.Context, id job.QueueID) (bool, error)
	QueueNameExists(ctx context.Context, name string) (bool, error)
}
