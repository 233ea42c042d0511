package config

import "time"

// SupervisorConfig holds the defaults for a newly created queue and the
// supervisor's housekeeping cadence. It is loaded and validated with the rest
// of AppConfig, but the supervisor does not read it: the tick interval and
// worker heartbeat are actor.TickInterval and actor.DefaultHeartbeat, and a
// queue takes its settings from the job.QueueConfig passed to CreateQueue.
type SupervisorConfig struct {
	TickIntervalSecs      uint `mapstructure:"tick_interval_secs" validate:"required,min=1" flag:"tick-interval-secs" toml:"tick_interval_secs"`
	HeartbeatMillis       uint `mapstructure:"heartbeat_millis" validate:"required,min=1" flag:"heartbeat-millis" toml:"heartbeat_millis"`
	DefaultConcurrency    uint `mapstructure:"default_concurrency" validate:"required,min=1" flag:"default-concurrency" toml:"default_concurrency"`
	DefaultTimeoutSecs    uint `mapstructure:"default_timeout_secs" validate:"required,min=1" flag:"default-timeout-secs" toml:"default_timeout_secs"`
	DefaultMaxRetries     uint `mapstructure:"default_max_retries" flag:"default-max-retries" toml:"default_max_retries"`
	RetentionWindowSecs   uint `mapstructure:"retention_window_secs" validate:"required,min=1" flag:"retention-window-secs" toml:"retention_window_secs"`
}

func (s SupervisorConfig) Validate() error {
	return validateConfig(s)
}

// TickInterval is SupervisorConfig.TickIntervalSecs as a time.Duration.
func (s SupervisorConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalSecs) * time.Second
}

// Heartbeat is SupervisorConfig.HeartbeatMillis as a time.Duration.
func (s SupervisorConfig) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatMillis) * time.Millisecond
}

// RetentionWindow is SupervisorConfig.RetentionWindowSecs as a time.Duration.
func (s SupervisorConfig) RetentionWindow() time.Duration {
	return time.Duration(s.RetentionWindowSecs) * time.Second
}

// DefaultSupervisorConfig matches job.DefaultQueueConfig's values so a fresh
// install behaves the same whether or not a config file is present.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		TickIntervalSecs:    30,
		HeartbeatMillis:     100,
		DefaultConcurrency:  1,
		DefaultTimeoutSecs:  30,
		DefaultMaxRetries:   3,
		RetentionWindowSecs: 300,
	}
}
