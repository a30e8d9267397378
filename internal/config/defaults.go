package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		MQTT: MQTTConfig{
			BrokerURL: "tcp://localhost:1883",
			ClientID:  "wayline-core",
			Keepalive: 30 * time.Second,
		},
		Database: DBConfig{
			Path:           filepath.Join(dataDir, "wayline.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			CommandTimeout:   15 * time.Second,
			Retention:        24 * time.Hour,
			SweepInterval:    time.Minute,
			ScheduleInterval: 5 * time.Second,
			ScheduleGrace:    2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Endpoint:     "localhost:4317",
			ServiceName:  "wayline-core",
			SampleRate:   1.0,
			FlushTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".wayline")
}
