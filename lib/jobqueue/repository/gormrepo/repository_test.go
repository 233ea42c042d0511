package gormrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
)

// newTestRepository opens an isolated in-memory sqlite database per test,
// named after the test. The postgres dialect is exercised separately by the
// testcontainers-backed test in postgres_test.go.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"))
	require.NoError(t, err)
	return New(db)
}

func TestGormCreateAndGetJob(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	j := job.New("q1", "t", []byte(`{"x":1}`), job.PriorityHigh, 1, 30, []string{"a", "b"}, time.Now())

	require.NoError(t, r.CreateJob(ctx, j))

	got, err := r.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.JobType, got.JobType)
	assert.Equal(t, job.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestGormGetJobNotFound(t *testing.T) {
	r := newTestRepository(t)
	_, err := r.GetJob(context.Background(), "missing")
	assert.True(t, jobqueueerr.Is(err, jobqueueerr.NotFound))
}

func TestGormArchiveJobMovesRowAndIsCached(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	j := job.New("q1", "t", nil, job.PriorityNormal, 0, 30, nil, time.Now())
	require.NoError(t, r.CreateJob(ctx, j))

	j.Status = job.Completed(time.Now(), time.Now(), job.Result{Summary: "ok"})
	require.NoError(t, r.ArchiveJob(ctx, j))

	// first lookup misses the live table, hits job_history, and populates
	// the LRU cache; second lookup is served from the cache.
	first, err := r.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, first.Status.Kind)

	_, cached := r.history.Get(j.ID)
	assert.True(t, cached)

	second, err := r.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status.Kind, second.Status.Kind)
}

func TestGormCountByStatus(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	queueID := job.QueueID("q1")

	pending := job.New(queueID, "a", nil, job.PriorityNormal, 0, 30, nil, time.Now())
	running := job.New(queueID, "b", nil, job.PriorityNormal, 0, 30, nil, time.Now())
	require.NoError(t, r.CreateJob(ctx, pending))
	require.NoError(t, r.CreateJob(ctx, running))
	running.Status = job.Running(time.Now(), "w1")
	require.NoError(t, r.UpdateJobStatus(ctx, running.ID, running.Status, 1))

	counts, err := r.CountByStatus(ctx, queueID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), counts[job.StatusPending])
	assert.Equal(t, uint(1), counts[job.StatusRunning])
}

func TestGormQueueCRUD(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	q := &job.Queue{ID: job.NewQueueID(), Name: "billing", State: job.QueueRunning, Config: job.DefaultQueueConfig()}

	require.NoError(t, r.CreateQueue(ctx, q))

	dup := &job.Queue{ID: job.NewQueueID(), Name: "billing", Config: job.DefaultQueueConfig()}
	err := r.CreateQueue(ctx, dup)
	assert.True(t, jobqueueerr.Is(err, jobqueueerr.Conflict))

	require.NoError(t, r.UpdateQueueState(ctx, q.ID, job.QueuePaused))
	got, err := r.GetQueue(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, job.QueuePaused, got.State)

	require.NoError(t, r.DeleteQueue(ctx, q.ID))
	exists, err := r.QueueExists(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormListJobsOrdersByPriorityThenCreation(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()
	low := job.New("q1", "t", nil, job.PriorityLow, 0, 30, nil, now)
	high := job.New("q1", "t", nil, job.PriorityHigh, 0, 30, nil, now.Add(time.Millisecond))
	require.NoError(t, r.CreateJob(ctx, low))
	require.NoError(t, r.CreateJob(ctx, high))

	out, err := r.ListJobs(ctx, repository.JobFilter{QueueID: "q1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, high.ID, out[0].ID)
	assert.Equal(t, low.ID, out[1].ID)
}
