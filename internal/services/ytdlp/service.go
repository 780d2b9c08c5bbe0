package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Command is the default yt-dlp executable name.
const Command = "yt-dlp"

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".opus": {},
	".ogg":  {},
	".wav":  {},
	".flac": {},
}

// Config captures runtime settings for fetch operations.
type Config struct {
	// Binary is the yt-dlp executable. Defaults to Command when empty.
	Binary string
	// AudioFormat is the target audio container passed to --audio-format.
	AudioFormat string
	// FFmpegLocation points yt-dlp at a specific ffmpeg binary for audio
	// extraction. Empty leaves the tool to find ffmpeg on PATH.
	FFmpegLocation string
}

// Service downloads the audio track for a source locator via yt-dlp.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a fetch service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = Command
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Fetch downloads the audio for locator into destDir and returns the final
// media path. A locator the tool cannot fetch yields ("", nil): unfetchable
// sources are ordinary outcomes, not errors. The returned error is reserved
// for cancellation and filesystem failures.
func (s *Service) Fetch(ctx context.Context, locator, platformHint, destDir string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", nil
	}

	// Download into a private staging dir first so the produced file can be
	// identified without guessing yt-dlp's output naming.
	stagingDir, err := os.MkdirTemp(destDir, "fetch-*")
	if err != nil {
		return "", fmt.Errorf("create fetch staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	args := s.buildArgs(locator, platformHint, stagingDir)
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", nil
	}

	produced, err := findAudioFile(stagingDir)
	if err != nil {
		return "", err
	}
	if produced == "" {
		return "", nil
	}

	final := filepath.Join(destDir, filepath.Base(produced))
	if err := os.Rename(produced, final); err != nil {
		return "", fmt.Errorf("move fetched media: %w", err)
	}
	return final, nil
}

func (s *Service) buildArgs(locator, platformHint, stagingDir string) []string {
	args := []string{
		"--no-playlist",
		"-x",
		"--audio-format", s.cfg.AudioFormat,
		"--audio-quality", "0",
		"-o", filepath.Join(stagingDir, "%(title)s.%(ext)s"),
	}
	if loc := strings.TrimSpace(s.cfg.FFmpegLocation); loc != "" && loc != "ffmpeg" {
		args = append(args, "--ffmpeg-location", loc)
	}
	if hint := strings.ToLower(strings.TrimSpace(platformHint)); hint != "" {
		// Restrict extraction to the hinted platform so ambiguous locators
		// are not resolved against the generic extractor.
		args = append(args, "--extractor-args", "generic:impersonate", "--default-search", hint)
	}
	return append(args, locator)
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

func findAudioFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read fetch staging dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}
