package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.BaseURL != "https://tfgames.site" {
		t.Fatalf("unexpected base url %q", cfg.Crawler.BaseURL)
	}
	if cfg.Crawler.GameCap != 100 || cfg.Crawler.PoolLimit != 100 {
		t.Fatalf("unexpected crawl limits: %+v", cfg.Crawler)
	}
	if !cfg.Crawler.InsecureTLS {
		t.Fatal("expected insecure TLS on by default")
	}
	if cfg.DB.Driver != "memory" {
		t.Fatalf("unexpected default driver %q", cfg.DB.Driver)
	}
	if cfg.FetchTimeout() != 15*time.Second {
		t.Fatalf("unexpected fetch timeout %v", cfg.FetchTimeout())
	}
	if cfg.BackoffInitial() != 250*time.Millisecond || cfg.BackoffMax() != 2*time.Second {
		t.Fatalf("unexpected backoff: %v / %v", cfg.BackoffInitial(), cfg.BackoffMax())
	}
	if cfg.SchedulerInterval() != time.Hour {
		t.Fatalf("unexpected scheduler interval %v", cfg.SchedulerInterval())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  base_url: https://mirror.example.test
  game_cap: 25
  pool_limit: 10
  insecure_tls: false
http:
  timeout_seconds: 45
  max_retries: 4
scheduler:
  enabled: false
  interval_minutes: 15
db:
  driver: sqlite
  path: /tmp/catalog.db
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
	if cfg.Crawler.BaseURL != "https://mirror.example.test" {
		t.Fatalf("expected base url override, got %q", cfg.Crawler.BaseURL)
	}
	if cfg.Crawler.GameCap != 25 || cfg.Crawler.PoolLimit != 10 {
		t.Fatalf("expected crawl limit overrides, got %+v", cfg.Crawler)
	}
	if cfg.Crawler.InsecureTLS {
		t.Fatal("expected insecure TLS disabled")
	}
	if cfg.HTTP.TimeoutSeconds != 45 || cfg.HTTP.MaxRetries != 4 {
		t.Fatalf("expected http overrides, got %+v", cfg.HTTP)
	}
	if cfg.Scheduler.Enabled {
		t.Fatal("expected scheduler disabled")
	}
	if cfg.SchedulerInterval() != 15*time.Minute {
		t.Fatalf("unexpected interval %v", cfg.SchedulerInterval())
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "/tmp/catalog.db" {
		t.Fatalf("expected db overrides, got %+v", cfg.DB)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		return path
	}

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad port", "server:\n  port: -1\n", "port"},
		{"empty base url", "crawler:\n  base_url: \"\"\n", "base_url"},
		{"bad game cap", "crawler:\n  game_cap: 0\n", "game_cap"},
		{"bad pool limit", "crawler:\n  pool_limit: -5\n", "pool_limit"},
		{"bad timeout", "http:\n  timeout_seconds: 0\n", "timeout"},
		{"unknown driver", "db:\n  driver: oracle\n", "driver"},
		{"bad interval", "scheduler:\n  interval_minutes: 0\n", "interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(write(t, tc.yaml))
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("db:\n  driver: postgres\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for postgres driver without dsn")
	}
	if !strings.Contains(err.Error(), "dsn") {
		t.Fatalf("error %q does not mention dsn", err)
	}
}
