package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/discogs")
	t.Setenv("API_KEY", "local-key")
	t.Setenv("DISCOGS_USERNAME", "digger")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 || cfg.Server.RateLimit != 100 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Discogs.BaseURL != "https://api.discogs.com" {
		t.Fatalf("unexpected base url %q", cfg.Discogs.BaseURL)
	}
	if cfg.Discogs.CollectionFolderID != 1 || cfg.Discogs.SuggestionsFolderID != 8797697 {
		t.Fatalf("unexpected folders %+v", cfg.Discogs)
	}
	if !cfg.Sync.OnStartup || !cfg.Sync.CronEnabled {
		t.Fatalf("expected both triggers enabled by default, got %+v", cfg.Sync)
	}
	if cfg.Sync.StartupDelay != 5*time.Second || cfg.Sync.CronSpec != "0 0 * * *" {
		t.Fatalf("unexpected sync config %+v", cfg.Sync)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Database.MaxOpenConns != 10 || cfg.Database.ConnMaxLifetime != 30*time.Minute || cfg.Database.ConnectTimeout != 30*time.Second {
		t.Fatalf("unexpected pool config %+v", cfg.Database)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_ON_STARTUP", "false")
	t.Setenv("CRON_SYNC_ENABLED", "false")
	t.Setenv("SYNC_STARTUP_DELAY", "250")
	t.Setenv("DISCOGS_REQUESTS_PER_MINUTE", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sync.OnStartup || cfg.Sync.CronEnabled {
		t.Fatalf("expected triggers disabled, got %+v", cfg.Sync)
	}
	if cfg.Sync.StartupDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %s", cfg.Sync.StartupDelay)
	}
	if cfg.Discogs.RequestsPerMinute != 25 {
		t.Fatalf("expected 25 rpm, got %d", cfg.Discogs.RequestsPerMinute)
	}
	if got := strings.Join(cfg.CORS.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Fatalf("unexpected origins %q", got)
	}
}

func TestLoadBuildsDatabaseURLFromParts(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "sync")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.URL != "postgresql://sync:pw@db:5432/discogs?sslmode=disable" {
		t.Fatalf("unexpected url %q", cfg.Database.URL)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 0},
		Logging: LoggingConfig{Level: "loud", Format: "xml"},
		Discogs: DiscogsConfig{SuggestionsFolderID: 1},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "API_KEY", "DISCOGS_USERNAME", "PORT", "API_RATE_LIMIT", "LOG_LEVEL", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err.Error())
		}
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	setRequired(t)
	t.Setenv("SYNC_ON_STARTUP", "sometimes")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SYNC_ON_STARTUP") {
		t.Fatalf("expected SYNC_ON_STARTUP error, got %v", err)
	}
}
