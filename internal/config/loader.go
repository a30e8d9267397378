package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/leebs0521/wayline-core/internal/types"
)

// Loader loads configuration from YAML files.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a Loader backed by the given validator.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load reads and validates configuration from path. The file must
// exist.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "reading config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshaling config", err)
	}

	interpolateEnv(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults merges the file (which may be absent) over
// DefaultConfig.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v := viper.New()
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "reading config file", err)
			}
			if err := v.Unmarshal(cfg); err != nil {
				return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "unmarshaling config", err)
			}
		}
	}

	interpolateEnv(cfg)

	if err := l.validator.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv expands ${VAR} references in credential fields so
// secrets stay out of the file.
func interpolateEnv(cfg *Config) {
	cfg.MQTT.Username = expandEnv(cfg.MQTT.Username)
	cfg.MQTT.Password = expandEnv(cfg.MQTT.Password)
	cfg.MQTT.BrokerURL = expandEnv(cfg.MQTT.BrokerURL)
	cfg.Tracing.Endpoint = expandEnv(cfg.Tracing.Endpoint)
}

func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
