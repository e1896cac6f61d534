// Package config loads podscrub configuration from the environment and an
// optional YAML file, and wires up logging.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend connection
	ServerURL string

	// Feed access token pair for trigger-link status calls
	FeedToken  string
	FeedSecret string

	// Polling cadence
	EpisodeInterval time.Duration
	SummaryInterval time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the subset of settings the YAML config file may carry.
// Environment variables win over the file.
type fileConfig struct {
	ServerURL       string `yaml:"server_url"`
	FeedToken       string `yaml:"feed_token"`
	FeedSecret      string `yaml:"feed_secret"`
	EpisodeInterval string `yaml:"episode_interval"`
	SummaryInterval string `yaml:"summary_interval"`
	LogFile         string `yaml:"log_file"`
	LogLevel        string `yaml:"log_level"`
}

// Load reads configuration from ~/.config/podscrub/config.yaml (if present)
// and environment variables, env winning.
func Load() Config {
	file := loadFile(configFilePath())

	return Config{
		ServerURL:       getEnv("PODSCRUB_SERVER_URL", orElse(file.ServerURL, "http://localhost:5001")),
		FeedToken:       getEnv("PODSCRUB_FEED_TOKEN", file.FeedToken),
		FeedSecret:      getEnv("PODSCRUB_FEED_SECRET", file.FeedSecret),
		EpisodeInterval: parseInterval(getEnv("PODSCRUB_EPISODE_INTERVAL", file.EpisodeInterval), 2*time.Second),
		SummaryInterval: parseInterval(getEnv("PODSCRUB_SUMMARY_INTERVAL", file.SummaryInterval), 5*time.Second),
		LogFile:         getEnv("PODSCRUB_LOG_FILE", orElse(file.LogFile, defaultLogFile())),
		LogLevel:        parseLogLevel(getEnv("PODSCRUB_LOG_LEVEL", orElse(file.LogLevel, "INFO"))),
	}
}

func configFilePath() string {
	if p := os.Getenv("PODSCRUB_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "podscrub", "config.yaml")
}

func loadFile(path string) fileConfig {
	var fc fileConfig
	if path == "" {
		return fc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		slog.Warn("ignoring malformed config file", "file", path, "error", err)
		return fileConfig{}
	}
	return fc
}

func defaultLogFile() string {
	return filepath.Join(os.TempDir(), "podscrub.log")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func orElse(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseInterval(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
