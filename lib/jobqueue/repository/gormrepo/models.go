// Package gormrepo is a gorm-backed Repository implementation (SQLite or
// Postgres) with a queue table, a job table, and an append-only
// job_history table.
package gormrepo

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

// queueRow is the `queue` table: primary key QueueId, unique index on name,
// index on state.
type queueRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"uniqueIndex;size:200"`
	Description string
	State       string `gorm:"index;size:20"`

	Concurrency        uint
	DefaultTimeoutSecs uint
	DefaultMaxRetries  uint
	MaxQueueSize       *uint
	RateLimit          *float64

	StatsPending   uint
	StatsRunning   uint
	StatsCompleted uint
	StatsFailed    uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (queueRow) TableName() string { return "queue" }

func queueToRow(q *job.Queue) *queueRow {
	return &queueRow{
		ID:                 string(q.ID),
		Name:               q.Name,
		Description:        q.Description,
		State:              string(q.State),
		Concurrency:        q.Config.Concurrency,
		DefaultTimeoutSecs: q.Config.DefaultTimeoutSecs,
		DefaultMaxRetries:  q.Config.DefaultMaxRetries,
		MaxQueueSize:       q.Config.MaxQueueSize,
		RateLimit:          q.Config.RateLimit,
		StatsPending:       q.Stats.Pending,
		StatsRunning:       q.Stats.Running,
		StatsCompleted:     q.Stats.Completed,
		StatsFailed:        q.Stats.Failed,
		CreatedAt:          q.CreatedAt,
		UpdatedAt:          q.UpdatedAt,
	}
}

func rowToQueue(r *queueRow) *job.Queue {
	return &job.Queue{
		ID:          job.QueueID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		State:       job.QueueState(r.State),
		Config: job.QueueConfig{
			Concurrency:        r.Concurrency,
			DefaultTimeoutSecs: r.DefaultTimeoutSecs,
			DefaultMaxRetries:  r.DefaultMaxRetries,
			MaxQueueSize:       r.MaxQueueSize,
			RateLimit:          r.RateLimit,
		},
		Stats: job.QueueStats{
			Pending:   r.StatsPending,
			Running:   r.StatsRunning,
			Completed: r.StatsCompleted,
			Failed:    r.StatsFailed,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// jobRow is the `job` table: indexes on queue_id, status, priority, job_type,
// created_at, and a composite (queue_id, status, priority) index for
// dispatch queries.
type jobRow struct {
	ID       string `gorm:"primaryKey;size:36"`
	QueueID  string `gorm:"index:idx_job_dispatch,priority:1;size:36"`
	JobType  string `gorm:"index;size:200"`
	Payload  []byte
	Priority int `gorm:"index:idx_job_dispatch,priority:3"`

	StatusKind string `gorm:"index:idx_job_dispatch,priority:2;size:20"`
	StatusJSON []byte

	Attempts    uint
	MaxRetries  uint
	TimeoutSecs uint

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Tags      string // comma-joined; jobs rarely carry more than a handful of tags
	TraceLink []byte
}

func (jobRow) TableName() string { return "job" }

// jobHistoryRow is the append-only archive for terminal jobs.
type jobHistoryRow struct {
	SurrogateID uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"index;size:36"`
	QueueID     string `gorm:"index;size:36"`
	JobType     string `gorm:"index;size:200"`
	Payload     []byte
	Priority    int

	FinalStatusKind string `gorm:"index;size:20"`
	StatusJSON      []byte

	Attempts    uint
	MaxRetries  uint
	TimeoutSecs uint

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time `gorm:"index"`

	Tags      string
	TraceLink []byte
}

func (jobHistoryRow) TableName() string { return "job_history" }

func jobToRow(j *job.Job) (*jobRow, error) {
	statusJSON, err := json.Marshal(j.Status)
	if err != nil {
		return nil, err
	}
	return &jobRow{
		ID:          string(j.ID),
		QueueID:     string(j.QueueID),
		JobType:     j.JobType,
		Payload:     j.Payload,
		Priority:    int(j.Priority),
		StatusKind:  string(j.Status.Kind),
		StatusJSON:  statusJSON,
		Attempts:    j.Attempts,
		MaxRetries:  j.MaxRetries,
		TimeoutSecs: j.TimeoutSecs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		Tags:        strings.Join(j.Tags, ","),
		TraceLink:   []byte(j.TraceLink),
	}, nil
}

func rowToJob(r *jobRow) (*job.Job, error) {
	var status job.Status
	if err := json.Unmarshal(r.StatusJSON, &status); err != nil {
		return nil, err
	}
	var tags []string
	if r.Tags != "" {
		tags = strings.Split(r.Tags, ",")
	}
	return &job.Job{
		ID:          job.ID(r.ID),
		QueueID:     job.QueueID(r.QueueID),
		JobType:     r.JobType,
		Payload:     r.Payload,
		Priority:    job.Priority(r.Priority),
		Status:      status,
		Attempts:    r.Attempts,
		MaxRetries:  r.MaxRetries,
		TimeoutSecs: r.TimeoutSecs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Tags:        tags,
		TraceLink:   r.TraceLink,
	}, nil
}

func jobToHistoryRow(j *job.Job) (*jobHistoryRow, error) {
	statusJSON, err := json.Marshal(j.Status)
	if err != nil {
		return nil, err
	}
	completedAt := j.UpdatedAt
	return &jobHistoryRow{
		JobID:           string(j.ID),
		QueueID:         string(j.QueueID),
		JobType:         j.JobType,
		Payload:         j.Payload,
		Priority:        int(j.Priority),
		FinalStatusKind: string(j.Status.Kind),
		StatusJSON:      statusJSON,
		Attempts:        j.Attempts,
		MaxRetries:      j.MaxRetries,
		TimeoutSecs:     j.TimeoutSecs,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		CompletedAt:     completedAt,
		Tags:            strings.Join(j.Tags, ","),
		TraceLink:       []byte(j.TraceLink),
	}, nil
}

func rowToJobFromHistory(r *jobHistoryRow) (*job.Job, error) {
	var status job.Status
	if err := json.Unmarshal(r.StatusJSON, &status); err != nil {
		return nil, err
	}
	var tags []string
	if r.Tags != "" {
		tags = strings.Split(r.Tags, ",")
	}
	return &job.Job{
		ID:          job.ID(r.JobID),
		QueueID:     job.QueueID(r.QueueID),
		JobType:     r.JobType,
		Payload:     r.Payload,
		Priority:    job.Priority(r.Priority),
		Status:      status,
		Attempts:    r.Attempts,
		MaxRetries:  r.MaxRetries,
		TimeoutSecs: r.TimeoutSecs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Tags:        tags,
		TraceLink:   r.TraceLink,
	}, nil
}

// AutoMigrate creates/updates the schema for all three tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&queueRow{}, &jobRow{}, &jobHistoryRow{})
}
