package testsupport

import (
	"path/filepath"
	"testing"

	"transcriptor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithIsolation enables or disables the vocal isolation stage on the test
// config.
func WithIsolation(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tools.IsolationEnabled = enabled
	}
}

// WithMaxConcurrentJobs overrides the runner concurrency limit.
func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxConcurrentJobs = n
	}
}
