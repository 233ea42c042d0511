// Package memory is an in-memory Repository implementation: useful for unit
// tests and for running the scheduler without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
)

// Repository is a mutex-guarded, in-process implementation of
// repository.Repository.
type Repository struct {
	mu      sync.RWMutex
	jobs    map[job.ID]*job.Job
	history map[job.ID]*job.Job
	queues  map[job.QueueID]*job.Queue
	names   map[string]job.QueueID
	now     func() time.Time
}

var _ repository.Repository = (*Repository)(nil)

// New constructs an empty in-memory Repository.
func New() *Repository {
	return &Repository{
		jobs:    make(map[job.ID]*job.Job),
		history: make(map[job.ID]*job.Job),
		queues:  make(map[job.QueueID]*job.Queue),
		names:   make(map[string]job.QueueID),
		now:     time.Now,
	}
}

func (r *Repository) CreateJob(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; ok {
		return jobqueueerr.New(jobqueueerr.Conflict, "job already exists")
	}
	now := r.now()
	j.CreatedAt, j.UpdatedAt = now, now
	r.jobs[j.ID] = j.Clone()
	return nil
}

func (r *Repository) GetJob(_ context.Context, id job.ID) (*job.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if j, ok := r.jobs[id]; ok {
		return j.Clone(), nil
	}
	if j, ok := r.history[id]; ok {
		return j.Clone(), nil
	}
	return nil, jobqueueerr.New(jobqueueerr.NotFound, "job not found")
}

func (r *Repository) UpdateJobStatus(_ context.Context, id job.ID, status job.Status, attempts uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	j.Status = status
	j.Attempts = attempts
	j.UpdatedAt = r.now()
	return nil
}

func (r *Repository) UpdateJob(_ context.Context, updated *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[updated.ID]; !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	updated.UpdatedAt = r.now()
	r.jobs[updated.ID] = updated.Clone()
	return nil
}

func (r *Repository) DeleteJob(_ context.Context, id job.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func (r *Repository) ListJobs(_ context.Context, filter repository.JobFilter) ([]*job.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*job.Job, 0, len(r.jobs)+len(r.history))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	for _, j := range r.history {
		all = append(all, j)
	}
	filtered := lo.Filter(all, func(j *job.Job, _ int) bool {
		if filter.QueueID != "" && j.QueueID != filter.QueueID {
			return false
		}
		if filter.Status != "" && j.Status.Kind != filter.Status {
			return false
		}
		if filter.JobType != "" && j.JobType != filter.JobType {
			return false
		}
		return true
	})
	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}
	return lo.Map(filtered, func(j *job.Job, _ int) *job.Job { return j.Clone() }), nil
}

func (r *Repository) GetPendingForQueue(ctx context.Context, queueID job.QueueID, limit int) ([]*job.Job, error) {
	return r.ListJobs(ctx, repository.JobFilter{QueueID: queueID, Status: job.StatusPending, Limit: limit})
}

func (r *Repository) ArchiveJob(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, j.ID)
	r.history[j.ID] = j.Clone()
	return nil
}

func (r *Repository) CountByStatus(_ context.Context, queueID job.QueueID) (map[job.StatusKind]uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[job.StatusKind]uint)
	for _, j := range r.jobs {
		if j.QueueID == queueID {
			counts[j.Status.Kind]++
		}
	}
	for _, j := range r.history {
		if j.QueueID == queueID {
			counts[j.Status.Kind]++
		}
	}
	return counts, nil
}

func (r *Repository) CreateQueue(_ context.Context, q *job.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[q.Name]; ok {
		return jobqueueerr.New(jobqueueerr.Conflict, "queue name already exists")
	}
	now := r.now()
	q.CreatedAt, q.UpdatedAt = now, now
	cp := *q
	r.queues[q.ID] = &cp
	r.names[q.Name] = q.ID
	return nil
}

func (r *Repository) GetQueue(_ context.Context, id job.QueueID) (*job.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[id]
	if !ok {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	cp := *q
	return &cp, nil
}

func (r *Repository) GetQueueByName(_ context.Context, name string) (*job.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[name]
	if !ok {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	cp := *r.queues[id]
	return &cp, nil
}

func (r *Repository) ListQueues(_ context.Context) ([]*job.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*job.Queue, 0, len(r.queues))
	for _, q := range r.queues {
		cp := *q
		out = append(out, &cp)
	}
	return out, nil
}

func (r *Repository) ListQueuesByState(ctx context.Context, state job.QueueState) ([]*job.Queue, error) {
	all, err := r.ListQueues(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(q *job.Queue, _ int) bool { return q.State == state }), nil
}

func (r *Repository) UpdateQueueState(_ context.Context, id job.QueueID, state job.QueueState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[id]
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	q.State = state
	q.UpdatedAt = r.now()
	return nil
}

func (r *Repository) UpdateQueueStats(_ context.Context, id job.QueueID, stats job.QueueStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[id]
	if !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	q.Stats = stats
	q.UpdatedAt = r.now()
	return nil
}

func (r *Repository) UpdateQueue(_ context.Context, updated *job.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[updated.ID]; !ok {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	updated.UpdatedAt = r.now()
	cp := *updated
	r.queues[updated.ID] = &cp
	return nil
}

func (r *Repository) DeleteQueue(_ context.Context, id job.QueueID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[id]; ok {
		delete(r.names, q.Name)
	}
	delete(r.queues, id)
	return nil
}

func (r *Repository) QueueExists(_ context.Context, id job.QueueID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.queues[id]
	return ok, nil
}

func (r *Repository) QueueNameExists(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok, nil
}
