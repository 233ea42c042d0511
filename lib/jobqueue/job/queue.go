package job

import "time"

// QueueState is the lifecycle state machine of a Queue.
type QueueState string

const (
	QueueRunning  QueueState = "running"
	QueuePaused   QueueState = "paused"
	QueueDraining QueueState = "draining"
	QueueStopped  QueueState = "stopped"
)

// AcceptsNewJobs reports whether Enqueue is admissible in this state.
func (s QueueState) AcceptsNewJobs() bool { return s == QueueRunning }

// DispatchesJobs reports whether RequestJob may hand out work in this state.
func (s QueueState) DispatchesJobs() bool { return s == QueueRunning || s == QueueDraining }

// QueueConfig controls the scheduling discipline of one queue.
type QueueConfig struct {
	Concurrency       uint          `json:"concurrency"`
	DefaultTimeoutSecs uint         `json:"default_timeout_secs"`
	DefaultMaxRetries uint          `json:"default_max_retries"`
	MaxQueueSize      *uint         `json:"max_queue_size,omitempty"`
	RateLimit         *float64      `json:"rate_limit,omitempty"` // jobs/sec
	RetentionWindow   time.Duration `json:"-"`                    // how long terminal jobs stay in the in-memory jobs map
}

// DefaultQueueConfig gives a freshly created queue sane out-of-the-box
// behavior without requiring the caller to specify every field.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Concurrency:        1,
		DefaultTimeoutSecs: 30,
		DefaultMaxRetries:  3,
		RetentionWindow:    5 * time.Minute,
	}
}

// QueueStats is a point-in-time snapshot of a queue's activity.
type QueueStats struct {
	Pending         uint     `json:"pending"`
	Running         uint     `json:"running"`
	Completed       uint     `json:"completed"`
	Failed          uint     `json:"failed"`
	AvgDurationMs   float64  `json:"avg_duration_ms,omitempty"`
	ThroughputPerMin *float64 `json:"throughput_per_min,omitempty"`
}

// Queue is the metadata record for a named queue.
type Queue struct {
	ID          QueueID     `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	State       QueueState  `json:"state"`
	Config      QueueConfig `json:"config"`
	Stats       QueueStats  `json:"stats"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
