// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"pairmux/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Directories are created so preflight checks pass without extra setup.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Notifications.Enabled = false

	for _, dir := range []string{cfg.Paths.WatchDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create test directory %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithFFmpegBinary overrides the remux binary on the test config.
func WithFFmpegBinary(binary string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FFmpeg.Binary = binary
	}
}

// WithWatcherMode overrides the watcher mode on the test config.
func WithWatcherMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Watcher.Mode = mode
	}
}
