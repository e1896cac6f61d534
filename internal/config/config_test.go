package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PODSCRUB_SERVER_URL", "PODSCRUB_FEED_TOKEN", "PODSCRUB_FEED_SECRET",
		"PODSCRUB_EPISODE_INTERVAL", "PODSCRUB_SUMMARY_INTERVAL",
		"PODSCRUB_LOG_FILE", "PODSCRUB_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("PODSCRUB_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.ServerURL != "http://localhost:5001" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.EpisodeInterval != 2*time.Second {
		t.Errorf("EpisodeInterval = %v", cfg.EpisodeInterval)
	}
	if cfg.SummaryInterval != 5*time.Second {
		t.Errorf("SummaryInterval = %v", cfg.SummaryInterval)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server_url: http://file:5001
feed_token: file-token
episode_interval: 10s
log_level: DEBUG
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PODSCRUB_CONFIG", path)
	t.Setenv("PODSCRUB_SERVER_URL", "http://env:5001")
	t.Setenv("PODSCRUB_FEED_TOKEN", "")
	t.Setenv("PODSCRUB_EPISODE_INTERVAL", "")
	t.Setenv("PODSCRUB_LOG_LEVEL", "")

	cfg := Load()

	// Env wins over the file.
	if cfg.ServerURL != "http://env:5001" {
		t.Errorf("ServerURL = %q, want env value", cfg.ServerURL)
	}
	// File fills what env leaves unset.
	if cfg.FeedToken != "file-token" {
		t.Errorf("FeedToken = %q", cfg.FeedToken)
	}
	if cfg.EpisodeInterval != 10*time.Second {
		t.Errorf("EpisodeInterval = %v", cfg.EpisodeInterval)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadMalformedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PODSCRUB_CONFIG", path)
	t.Setenv("PODSCRUB_SERVER_URL", "")

	cfg := Load()
	if cfg.ServerURL != "http://localhost:5001" {
		t.Errorf("ServerURL = %q, want default after malformed file", cfg.ServerURL)
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 2 * time.Second},
		{"500ms", 500 * time.Millisecond},
		{"-1s", 2 * time.Second},
		{"garbage", 2 * time.Second},
	}
	for _, tt := range tests {
		if got := parseInterval(tt.in, 2*time.Second); got != tt.want {
			t.Errorf("parseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
