package demucs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command is the default demucs executable name.
const Command = "demucs"

// DefaultModel is the hybrid transformer model demucs ships with.
const DefaultModel = "htdemucs"

// VocalsStem is the stem file name demucs writes for the vocal track.
const VocalsStem = "vocals.mp3"

// Config captures runtime settings for vocal isolation.
type Config struct {
	// Binary is the demucs executable. Defaults to Command when empty.
	Binary string
	// Model selects the separation model. Defaults to DefaultModel.
	Model string
}

// Separation describes the output of one isolation run.
type Separation struct {
	// VocalsPath is the isolated vocal track.
	VocalsPath string
	// StemPaths are the remaining stems (drums, bass, other) demucs produced
	// alongside the vocals.
	StemPaths []string
}

// Service extracts a vocal-only track from fetched media via demucs.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates an isolation service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = Command
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Isolate runs demucs over mediaPath, writing stems under scratchDir, and
// returns the discovered vocal track plus the remaining stems. scratchDir is
// owned by the caller and reclaimed by it regardless of outcome.
func (s *Service) Isolate(ctx context.Context, mediaPath, scratchDir string) (Separation, error) {
	var sep Separation

	if _, err := os.Stat(mediaPath); err != nil {
		return sep, fmt.Errorf("isolate: source media: %w", err)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return sep, fmt.Errorf("isolate: ensure scratch dir: %w", err)
	}

	args := []string{
		"-n", s.cfg.Model,
		"--mp3",
		"--out", scratchDir,
		mediaPath,
	}
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		return sep, fmt.Errorf("demucs: %w", err)
	}

	return s.discoverStems(scratchDir)
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// discoverStems locates the track output directory demucs created. The tool
// sanitizes track names, so the directory is found by listing rather than
// predicted from the input path.
func (s *Service) discoverStems(scratchDir string) (Separation, error) {
	var sep Separation

	modelDir := filepath.Join(scratchDir, s.cfg.Model)
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return sep, fmt.Errorf("demucs output dir: %w", err)
	}

	var trackDir string
	for _, entry := range entries {
		if entry.IsDir() {
			trackDir = filepath.Join(modelDir, entry.Name())
			break
		}
	}
	if trackDir == "" {
		return sep, fmt.Errorf("demucs produced no track directory under %s", modelDir)
	}

	stems, err := os.ReadDir(trackDir)
	if err != nil {
		return sep, fmt.Errorf("demucs track dir: %w", err)
	}
	for _, stem := range stems {
		if stem.IsDir() {
			continue
		}
		path := filepath.Join(trackDir, stem.Name())
		if stem.Name() == VocalsStem {
			sep.VocalsPath = path
			continue
		}
		sep.StemPaths = append(sep.StemPaths, path)
	}
	if sep.VocalsPath == "" {
		return sep, fmt.Errorf("demucs produced no %s under %s", VocalsStem, trackDir)
	}
	return sep, nil
}
