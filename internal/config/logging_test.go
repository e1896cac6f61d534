package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("poll started", "guid", "ep-1")
	logger.Debug("below level")

	if !strings.Contains(stderr.String(), "poll started") {
		t.Errorf("stderr output missing record: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "below level") {
		t.Error("debug record leaked past the level filter")
	}

	// The file side is JSON.
	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
	}
	if record["msg"] != "poll started" || record["guid"] != "ep-1" {
		t.Errorf("unexpected file record: %v", record)
	}
}

func TestSetupLoggerFileFallback(t *testing.T) {
	// A directory in place of the log file forces the stderr-only fallback.
	dir := t.TempDir()
	logger, cleanup := SetupLogger(dir, slog.LevelInfo)
	defer cleanup()
	if logger == nil {
		t.Fatal("expected a usable logger despite the open failure")
	}
}

func TestSetupLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "podscrub.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Info("hello")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
