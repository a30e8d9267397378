// Package config defines and loads the daemon configuration.
package config

import (
	"time"
)

// Config is the root configuration of the wayline daemon.
type Config struct {
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt" validate:"required"`
	Database  DBConfig        `mapstructure:"database" yaml:"database" validate:"required"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle" yaml:"lifecycle"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// MQTTConfig configures the broker connection shared with the docks.
type MQTTConfig struct {
	BrokerURL string        `mapstructure:"broker_url" yaml:"broker_url" validate:"required,url"`
	ClientID  string        `mapstructure:"client_id" yaml:"client_id" validate:"required"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Password  string        `mapstructure:"password" yaml:"password"`
	Keepalive time.Duration `mapstructure:"keepalive" yaml:"keepalive" validate:"min=1s"`
}

// DBConfig configures task state persistence.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path" validate:"required"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout" validate:"min=100ms"`
}

// LifecycleConfig tunes the task lifecycle engine.
type LifecycleConfig struct {
	// CommandTimeout bounds one correlated device call.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout" validate:"min=1s"`

	// Retention is how long terminal tasks stay queryable in live
	// memory before eviction.
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"min=1m"`

	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"min=1s"`

	// ScheduleInterval is how often timed and conditional tasks are
	// re-evaluated.
	ScheduleInterval time.Duration `mapstructure:"schedule_interval" yaml:"schedule_interval" validate:"min=1s"`

	// ScheduleGrace is how far past a timed task's execute time the
	// scheduler keeps trying before declaring the window missed.
	ScheduleGrace time.Duration `mapstructure:"schedule_grace" yaml:"schedule_grace" validate:"min=1s"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output" yaml:"output"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName  string        `mapstructure:"service_name" yaml:"service_name"`
	SampleRate   float64       `mapstructure:"sample_rate" yaml:"sample_rate" validate:"min=0,max=1"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout" yaml:"flush_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}
