// Package config loads and validates sigrelay's runtime configuration via
// spf13/viper, mirroring original_source/app/env.py's
// ".env-defaults" -> ".env" -> process-environment merge order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"sigrelay/internal/apperrors"
)

// QueueType is a closed enumeration of the two queue backends.
type QueueType string

const (
	Persistent QueueType = "persistent"
	InMemory   QueueType = "in_memory"
)

// Config is sigrelay's immutable, validated runtime configuration. Once
// loaded it is never mutated, per spec.md §5's "Config is immutable after
// load."
type Config struct {
	APIKey                string
	UnreliableServiceURL  string
	LogLevel              string
	QueueType             QueueType
	PersistentQueuePath   string
	MaxTaskRetries        int
	MaxRequestsPerMinute  int
	Port                  string
	// OTLPEndpoint is the collector address for trace export (e.g.
	// "localhost:4318"). Empty disables exporting: dispatcher spans are
	// still created but recorded against the no-op tracer provider.
	OTLPEndpoint string
}

// keys lists the bare environment variable names sigrelay honors, matching
// spec.md §6's configuration table.
var keys = []string{
	"API_KEY",
	"UNRELIABLE_SERVICE_URL",
	"LOG_LEVEL",
	"QUEUE_TYPE",
	"PERSISTENT_QUEUE_PATH",
	"MAX_TASK_RETRIES",
	"MAX_REQUESTS_PER_MINUTE",
	"PORT",
	"OTLP_ENDPOINT",
}

// Load reads configuration from dir/.env-defaults (lowest precedence),
// dir/.env, then process environment variables (highest precedence). Viper
// additionally accepts a SIGRELAY_-prefixed alias for every key (e.g.
// SIGRELAY_MAX_TASK_RETRIES); the bare name wins if both are set, preserving
// the original Python implementation's contract exactly.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")

	v.SetDefault("QUEUE_TYPE", string(Persistent))
	v.SetDefault("MAX_TASK_RETRIES", 5)
	v.SetDefault("MAX_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("PORT", "8080")

	if err := mergeEnvFile(v, filepath.Join(dir, ".env-defaults")); err != nil {
		return nil, err
	}
	if err := mergeEnvFile(v, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	for _, key := range keys {
		// Bare name first so it wins over the SIGRELAY_-prefixed alias when
		// both are present in the process environment.
		if err := v.BindEnv(key, key, "SIGRELAY_"+key); err != nil {
			return nil, &apperrors.ConfigInvalidError{Field: key, Message: err.Error()}
		}
	}

	cfg := &Config{
		APIKey:               v.GetString("API_KEY"),
		UnreliableServiceURL: v.GetString("UNRELIABLE_SERVICE_URL"),
		LogLevel:             strings.ToUpper(v.GetString("LOG_LEVEL")),
		QueueType:            QueueType(v.GetString("QUEUE_TYPE")),
		PersistentQueuePath:  v.GetString("PERSISTENT_QUEUE_PATH"),
		MaxTaskRetries:       v.GetInt("MAX_TASK_RETRIES"),
		MaxRequestsPerMinute: v.GetInt("MAX_REQUESTS_PER_MINUTE"),
		Port:                 v.GetString("PORT"),
		OTLPEndpoint:         v.GetString("OTLP_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeEnvFile merges a dotenv-format file into v if it exists. A missing
// file is not an error: both .env-defaults and .env are optional layers.
func mergeEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &apperrors.ConfigInvalidError{Field: path, Message: err.Error()}
	}

	layer := viper.New()
	layer.SetConfigFile(path)
	layer.SetConfigType("env")
	if err := layer.ReadInConfig(); err != nil {
		return &apperrors.ConfigInvalidError{Field: path, Message: err.Error()}
	}
	return v.MergeConfigMap(layer.AllSettings())
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return &apperrors.ConfigInvalidError{Field: "API_KEY", Message: "required"}
	}
	if c.UnreliableServiceURL == "" {
		return &apperrors.ConfigInvalidError{Field: "UNRELIABLE_SERVICE_URL", Message: "required"}
	}
	if c.QueueType != Persistent && c.QueueType != InMemory {
		return &apperrors.ConfigInvalidError{Field: "QUEUE_TYPE", Message: fmt.Sprintf("must be %q or %q, got %q", Persistent, InMemory, c.QueueType)}
	}
	if c.QueueType == Persistent && c.PersistentQueuePath == "" {
		return &apperrors.ConfigInvalidError{Field: "PERSISTENT_QUEUE_PATH", Message: "required when QUEUE_TYPE=persistent"}
	}
	if c.MaxTaskRetries < 0 {
		return &apperrors.ConfigInvalidError{Field: "MAX_TASK_RETRIES", Message: "must be >= 0"}
	}
	return nil
}
