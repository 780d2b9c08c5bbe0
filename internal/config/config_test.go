package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transcriptor/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Paths.APIBind != "127.0.0.1:8537" {
		t.Fatalf("unexpected default bind %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.MaxConcurrentJobs != 4 {
		t.Fatalf("unexpected default concurrency %d", cfg.Workflow.MaxConcurrentJobs)
	}
	if !cfg.Tools.IsolationEnabled {
		t.Fatal("expected isolation enabled by default")
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
api_bind = "  127.0.0.1:0  "

[tools]
isolation_enabled = false
whisper_model = "medium"

[workflow]
max_concurrent_jobs = 2

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:0" {
		t.Fatalf("expected trimmed bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Tools.IsolationEnabled {
		t.Fatal("expected isolation disabled")
	}
	if cfg.Tools.WhisperModel != "medium" {
		t.Fatalf("unexpected model %q", cfg.Tools.WhisperModel)
	}
	if cfg.Workflow.MaxConcurrentJobs != 2 {
		t.Fatalf("unexpected concurrency %d", cfg.Workflow.MaxConcurrentJobs)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging settings, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for invalid logging format")
	}
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nmax_concurrent_jobs = 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRANSCRIPTOR_CONFIG", path)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected env config %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Workflow.MaxConcurrentJobs != 7 {
		t.Fatalf("unexpected concurrency %d", cfg.Workflow.MaxConcurrentJobs)
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.UploadDir(), cfg.ResultsDir(), cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatal("expected sample to contain a paths section")
	}

	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config did not load: %v", err)
	}
}
