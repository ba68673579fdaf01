package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
collector:
  concurrency: 2
  queue_depth: 128
  max_retries: 5
  backoff_initial_ms: 500
  requests_per_minute: 30
  fallback_threshold: 5
  http_timeout_seconds: 45
browser:
  headless: false
  nav_timeout_seconds: 60
  response_timeout_seconds: 20
db:
  dsn: postgres://collector@localhost/kbland
  max_open_conns: 8
pubsub:
  project_id: my-project
  topic_name: collection-events
storage:
  gcs_bucket: bucket
  prefix: archive
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Collector.FallbackThreshold != 5 || cfg.Collector.RequestsPerMinute != 30 {
		t.Fatalf("expected collector overrides to apply: %+v", cfg.Collector)
	}
	if cfg.Browser.Headless {
		t.Fatalf("expected headless override to apply")
	}
	if cfg.DB.DSN != "postgres://collector@localhost/kbland" {
		t.Fatalf("expected db dsn override, got %q", cfg.DB.DSN)
	}
	if cfg.PubSub.TopicName != "collection-events" {
		t.Fatalf("expected pubsub topic override, got %q", cfg.PubSub.TopicName)
	}
	if got := cfg.Collector.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
	if got := cfg.Collector.InitialBackoff(); got != 500*time.Millisecond {
		t.Fatalf("expected initial backoff 500ms, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Collector.FallbackThreshold != 3 {
		t.Fatalf("expected default fallback threshold 3, got %d", cfg.Collector.FallbackThreshold)
	}
	if cfg.Collector.RequestsPerMinute != 12 {
		t.Fatalf("expected default 12 requests/minute, got %d", cfg.Collector.RequestsPerMinute)
	}
	if !cfg.Browser.Headless {
		t.Fatalf("expected headless by default")
	}
	if cfg.Storage.Prefix != "raw" {
		t.Fatalf("expected default storage prefix, got %q", cfg.Storage.Prefix)
	}
	if cfg.Queue.Provider != "memory" || cfg.Storage.Provider != "noop" {
		t.Fatalf("expected memory queue and noop storage defaults, got %q/%q",
			cfg.Queue.Provider, cfg.Storage.Provider)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Collector: CollectorConfig{
			Concurrency:       1,
			MaxRetries:        3,
			FallbackThreshold: 3,
		},
		Browser: BrowserConfig{MinHumanDelayMs: 1000, MaxHumanDelayMs: 2000},
		Queue:   QueueConfig{Provider: "memory"},
		Storage: StorageConfig{Provider: "noop"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Collector.Concurrency = 0
				return c
			}(),
			want: "collector.concurrency",
		},
		{
			name: "invalid retries",
			cfg: func() Config {
				c := base
				c.Collector.MaxRetries = 0
				return c
			}(),
			want: "collector.max_retries",
		},
		{
			name: "invalid fallback threshold",
			cfg: func() Config {
				c := base
				c.Collector.FallbackThreshold = 0
				return c
			}(),
			want: "collector.fallback_threshold",
		},
		{
			name: "inverted human delay range",
			cfg: func() Config {
				c := base
				c.Browser.MinHumanDelayMs = 5000
				c.Browser.MaxHumanDelayMs = 2000
				return c
			}(),
			want: "browser.min_human_delay_ms",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "unknown queue provider",
			cfg: func() Config {
				c := base
				c.Queue.Provider = "kafka"
				return c
			}(),
			want: "queue.provider",
		},
		{
			name: "pubsub queue missing topic",
			cfg: func() Config {
				c := base
				c.Queue.Provider = "pubsub"
				return c
			}(),
			want: "queue.topic_name",
		},
		{
			name: "gcs storage missing bucket",
			cfg: func() Config {
				c := base
				c.Storage.Provider = "gcs"
				return c
			}(),
			want: "storage.gcs_bucket",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
