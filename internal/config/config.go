// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Collector CollectorConfig `mapstructure:"collector"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	DB        DBConfig        `mapstructure:"db"`
	Queue     QueueConfig     `mapstructure:"queue"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CollectorConfig governs retry, pacing, and fallback behavior for the
// upstream connectors.
type CollectorConfig struct {
	Concurrency        int `mapstructure:"concurrency"`
	QueueDepth         int `mapstructure:"queue_depth"`
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffInitialMs   int `mapstructure:"backoff_initial_ms"`
	RequestsPerMinute  int `mapstructure:"requests_per_minute"`
	FallbackThreshold  int `mapstructure:"fallback_threshold"`
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`
}

// BrowserConfig configures the fallback browser session.
type BrowserConfig struct {
	Headless           bool `mapstructure:"headless"`
	NavTimeoutSeconds  int  `mapstructure:"nav_timeout_seconds"`
	RespTimeoutSeconds int  `mapstructure:"response_timeout_seconds"`
	MinHumanDelayMs    int  `mapstructure:"min_human_delay_ms"`
	MaxHumanDelayMs    int  `mapstructure:"max_human_delay_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// QueueConfig selects the work-queue backend.
type QueueConfig struct {
	// Provider is "memory" (single process) or "pubsub".
	Provider string `mapstructure:"provider"`
	// TopicName and Subscription back the pubsub provider.
	TopicName    string `mapstructure:"topic_name"`
	Subscription string `mapstructure:"subscription"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StorageConfig selects and configures raw payload archival.
type StorageConfig struct {
	// Provider is "noop", "memory", "local", or "gcs".
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("collector.concurrency", 1)
	v.SetDefault("collector.queue_depth", 256)
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.backoff_initial_ms", 1000)
	v.SetDefault("collector.requests_per_minute", 12)
	v.SetDefault("collector.fallback_threshold", 3)
	v.SetDefault("collector.http_timeout_seconds", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.response_timeout_seconds", 15)
	v.SetDefault("browser.min_human_delay_ms", 2000)
	v.SetDefault("browser.max_human_delay_ms", 5000)
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.prefix", "raw")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Collector.Concurrency <= 0 {
		return fmt.Errorf("collector.concurrency must be > 0")
	}
	if c.Collector.MaxRetries <= 0 {
		return fmt.Errorf("collector.max_retries must be > 0")
	}
	if c.Collector.FallbackThreshold <= 0 {
		return fmt.Errorf("collector.fallback_threshold must be > 0")
	}
	if c.Browser.MinHumanDelayMs > c.Browser.MaxHumanDelayMs {
		return fmt.Errorf("browser.min_human_delay_ms must be <= max_human_delay_ms")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Queue.Provider {
	case "memory":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.Queue.TopicName == "" {
			return fmt.Errorf("queue.topic_name and pubsub.project_id are required for the pubsub queue")
		}
	default:
		return fmt.Errorf("queue.provider must be memory or pubsub, got %q", c.Queue.Provider)
	}
	switch c.Storage.Provider {
	case "noop", "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for local storage")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for gcs storage")
		}
	default:
		return fmt.Errorf("storage.provider must be noop, memory, local, or gcs, got %q", c.Storage.Provider)
	}
	return nil
}

// HTTPTimeout returns the direct-call timeout as a duration.
func (c CollectorConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// InitialBackoff returns the first retry delay as a duration.
func (c CollectorConfig) InitialBackoff() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}
