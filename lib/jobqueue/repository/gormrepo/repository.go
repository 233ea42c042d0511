package gormrepo

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
	"github.com/flowkit/jobqueue/lib/jobqueue/jobqueueerr"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
)

// historyCacheSize bounds the in-memory cache of archived job records. A
// job_history row never changes once written; a job revived by RetryJob and
// archived again gets a newer row, and ArchiveJob drops the job's cached
// entry so GetJob reads that one. An LRU eviction policy keeps memory
// bounded under repeated GetJob polling for old job IDs.
const historyCacheSize = 4096

// Repository is a gorm.DB-backed repository.Repository. It works unmodified
// against either the sqlite or the postgres driver; callers pick the dialect
// when opening db.
type Repository struct {
	db      *gorm.DB
	now     func() time.Time
	history *lru.Cache[job.ID, *job.Job]
}

var _ repository.Repository = (*Repository)(nil)

// New wraps an already-opened, already-migrated *gorm.DB.
func New(db *gorm.DB) *Repository {
	cache, _ := lru.New[job.ID, *job.Job](historyCacheSize)
	return &Repository{db: db, now: time.Now, history: cache}
}

func translateErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jobqueueerr.Wrap(jobqueueerr.NotFound, notFoundMsg, err)
	}
	return jobqueueerr.Wrap(jobqueueerr.Backend, "repository backend error", err)
}

func (r *Repository) CreateJob(ctx context.Context, j *job.Job) error {
	now := r.now()
	j.CreatedAt, j.UpdatedAt = now, now
	row, err := jobToRow(j)
	if err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "encode job", err)
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jobqueueerr.Wrap(jobqueueerr.Conflict, "job already exists", err)
		}
		return jobqueueerr.Wrap(jobqueueerr.Backend, "create job", err)
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id job.ID) (*job.Job, error) {
	var row jobRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error
	if err == nil {
		return rowToJob(&row)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "get job", err)
	}

	if cached, ok := r.history.Get(id); ok {
		return cached.Clone(), nil
	}
	var hrow jobHistoryRow
	if herr := r.db.WithContext(ctx).Where("job_id = ?", string(id)).
		Order("completed_at desc").First(&hrow).Error; herr != nil {
		return nil, jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	j, err := rowToJobFromHistory(&hrow)
	if err != nil {
		return nil, err
	}
	r.history.Add(id, j.Clone())
	return j, nil
}

func (r *Repository) UpdateJobStatus(ctx context.Context, id job.ID, status job.Status, attempts uint) error {
	row, err := jobToRow(&job.Job{ID: id, Status: status})
	if err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "encode status", err)
	}
	res := r.db.WithContext(ctx).Model(&jobRow{}).Where("id = ?", string(id)).
		Updates(map[string]any{
			"status_kind": row.StatusKind,
			"status_json": row.StatusJSON,
			"attempts":    attempts,
			"updated_at":  r.now(),
		})
	if res.Error != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "update job status", res.Error)
	}
	if res.RowsAffected == 0 {
		return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, j *job.Job) error {
	j.UpdatedAt = r.now()
	row, err := jobToRow(j)
	if err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "encode job", err)
	}
	res := r.db.WithContext(ctx).Model(&jobRow{}).Where("id = ?", row.ID).Updates(row)
	if res.Error != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "update job", res.Error)
	}
	if res.RowsAffected == 0 {
		return jobqueueerr.New(jobqueueerr.NotFound, "job not found")
	}
	return nil
}

func (r *Repository) DeleteJob(ctx context.Context, id job.ID) error {
	if err := r.db.WithContext(ctx).Delete(&jobRow{}, "id = ?", string(id)).Error; err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "delete job", err)
	}
	return nil
}

func (r *Repository) ListJobs(ctx context.Context, filter repository.JobFilter) ([]*job.Job, error) {
	q := r.db.WithContext(ctx).Model(&jobRow{})
	if filter.QueueID != "" {
		q = q.Where("queue_id = ?", string(filter.QueueID))
	}
	if filter.Status != "" {
		q = q.Where("status_kind = ?", string(filter.Status))
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []jobRow
	if err := q.Order("priority desc, created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "list jobs", err)
	}
	out := make([]*job.Job, 0, len(rows))
	for i := range rows {
		j, err := rowToJob(&rows[i])
		if err != nil {
			return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "decode job", err)
		}
		out = append(out, j)
	}
	return out, nil
}

func (r *Repository) GetPendingForQueue(ctx context.Context, queueID job.QueueID, limit int) ([]*job.Job, error) {
	return r.ListJobs(ctx, repository.JobFilter{QueueID: queueID, Status: job.StatusPending, Limit: limit})
}

// ArchiveJob moves a terminal job from the live table into job_history, in a
// single transaction so a crash mid-move never loses the record.
func (r *Repository) ArchiveJob(ctx context.Context, j *job.Job) error {
	hrow, err := jobToHistoryRow(j)
	if err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "encode job history", err)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hrow).Error; err != nil {
			return err
		}
		return tx.Delete(&jobRow{}, "id = ?", string(j.ID)).Error
	})
	if err == nil {
		r.history.Remove(j.ID)
	}
	return err
}

func (r *Repository) CountByStatus(ctx context.Context, queueID job.QueueID) (map[job.StatusKind]uint, error) {
	type row struct {
		StatusKind string
		Count      uint
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&jobRow{}).
		Select("status_kind, count(*) as count").
		Where("queue_id = ?", string(queueID)).
		Group("status_kind").Scan(&rows).Error; err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "count by status", err)
	}
	out := make(map[job.StatusKind]uint, len(rows))
	for _, rr := range rows {
		out[job.StatusKind(rr.StatusKind)] = rr.Count
	}
	var hrows []row
	if err := r.db.WithContext(ctx).Model(&jobHistoryRow{}).
		Select("final_status_kind as status_kind, count(*) as count").
		Where("queue_id = ?", string(queueID)).
		Group("final_status_kind").Scan(&hrows).Error; err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "count history by status", err)
	}
	for _, rr := range hrows {
		out[job.StatusKind(rr.StatusKind)] += rr.Count
	}
	return out, nil
}

func (r *Repository) CreateQueue(ctx context.Context, q *job.Queue) error {
	now := r.now()
	q.CreatedAt, q.UpdatedAt = now, now
	if err := r.db.WithContext(ctx).Create(queueToRow(q)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return jobqueueerr.Wrap(jobqueueerr.Conflict, "queue name already exists", err)
		}
		return jobqueueerr.Wrap(jobqueueerr.Backend, "create queue", err)
	}
	return nil
}

func (r *Repository) GetQueue(ctx context.Context, id job.QueueID) (*job.Queue, error) {
	var row queueRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, translateErr(err, "queue not found")
	}
	return rowToQueue(&row), nil
}

func (r *Repository) GetQueueByName(ctx context.Context, name string) (*job.Queue, error) {
	var row queueRow
	if err := r.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		return nil, translateErr(err, "queue not found")
	}
	return rowToQueue(&row), nil
}

func (r *Repository) ListQueues(ctx context.Context) ([]*job.Queue, error) {
	var rows []queueRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "list queues", err)
	}
	out := make([]*job.Queue, 0, len(rows))
	for i := range rows {
		out = append(out, rowToQueue(&rows[i]))
	}
	return out, nil
}

func (r *Repository) ListQueuesByState(ctx context.Context, state job.QueueState) ([]*job.Queue, error) {
	var rows []queueRow
	if err := r.db.WithContext(ctx).Where("state = ?", string(state)).Find(&rows).Error; err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "list queues by state", err)
	}
	out := make([]*job.Queue, 0, len(rows))
	for i := range rows {
		out = append(out, rowToQueue(&rows[i]))
	}
	return out, nil
}

func (r *Repository) UpdateQueueState(ctx context.Context, id job.QueueID, state job.QueueState) error {
	res := r.db.WithContext(ctx).Model(&queueRow{}).Where("id = ?", string(id)).
		Updates(map[string]any{"state": string(state), "updated_at": r.now()})
	if res.Error != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "update queue state", res.Error)
	}
	if res.RowsAffected == 0 {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return nil
}

func (r *Repository) UpdateQueueStats(ctx context.Context, id job.QueueID, stats job.QueueStats) error {
	res := r.db.WithContext(ctx).Model(&queueRow{}).Where("id = ?", string(id)).
		Updates(map[string]any{
			"stats_pending":   stats.Pending,
			"stats_running":   stats.Running,
			"stats_completed": stats.Completed,
			"stats_failed":    stats.Failed,
			"updated_at":      r.now(),
		})
	if res.Error != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "update queue stats", res.Error)
	}
	if res.RowsAffected == 0 {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return nil
}

func (r *Repository) UpdateQueue(ctx context.Context, q *job.Queue) error {
	q.UpdatedAt = r.now()
	res := r.db.WithContext(ctx).Model(&queueRow{}).Where("id = ?", string(q.ID)).Updates(queueToRow(q))
	if res.Error != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "update queue", res.Error)
	}
	if res.RowsAffected == 0 {
		return jobqueueerr.New(jobqueueerr.NotFound, "queue not found")
	}
	return nil
}

func (r *Repository) DeleteQueue(ctx context.Context, id job.QueueID) error {
	if err := r.db.WithContext(ctx).Delete(&queueRow{}, "id = ?", string(id)).Error; err != nil {
		return jobqueueerr.Wrap(jobqueueerr.Backend, "delete queue", err)
	}
	return nil
}

func (r *Repository) QueueExists(ctx context.Context, id job.QueueID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&queueRow{}).Where("id = ?", string(id)).Count(&count).Error; err != nil {
		return false, jobqueueerr.Wrap(jobqueueerr.Backend, "check queue exists", err)
	}
	return count > 0, nil
}

func (r *Repository) QueueNameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&queueRow{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, jobqueueerr.Wrap(jobqueueerr.Backend, "check queue name exists", err)
	}
	return count > 0, nil
}

// Open opens a gorm.DB with the given dialector (sqlite or postgres), then
// runs AutoMigrate.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	// TranslateError lets errors.Is(err, gorm.ErrDuplicatedKey) work across
	// both sqlite and postgres dialects in CreateJob/CreateQueue.
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "open database", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, jobqueueerr.Wrap(jobqueueerr.Backend, "migrate database", err)
	}
	return db, nil
}
