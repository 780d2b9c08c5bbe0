package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"transcriptor/internal/services"
)

// WhisperX invocation constants.
const (
	UVXCommand    = "uvx"
	DefaultModel  = "large-v3"
	BatchSize     = "4"
	ChunkSize     = "15"
	Temperature   = "0.0"
	OutputFormat  = "json"
	CPUDevice     = "cpu"
	CUDADevice    = "cuda"
	CPUComputeType = "float32"
	PypiIndexURL  = "https://pypi.org/simple"
)

// Config captures runtime settings for transcription.
type Config struct {
	// Model is the whisper model to use (e.g., "large-v3").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
}

// Service transcribes audio files via WhisperX run under uvx.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs WhisperX over the source audio, writing tool output under
// outputDir, and returns the transcript text. Unrecoverable input surfaces
// as a services.ErrExternalTool-tagged error.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) (string, error) {
	if source == "" {
		return "", services.Wrap(services.ErrValidation, "transcribe", "run", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := s.buildArgs(source, outputDir)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	text, err := loadTranscriptText(jsonPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "read transcript", jsonPath, err)
	}
	return text, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 24)
	args = append(args, "--index-url", PypiIndexURL)

	model := s.cfg.Model
	if model == "" {
		model = DefaultModel
	}

	args = append(args,
		"whisperx",
		source,
		"--model", model,
		"--batch_size", BatchSize,
		"--chunk_size", ChunkSize,
		"--temperature", Temperature,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
	)

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// segment is one transcribed span from WhisperX JSON output.
type segment struct {
	Text string `json:"text"`
}

type whisperXPayload struct {
	Segments []segment `json:"segments"`
}

// loadTranscriptText loads and concatenates text from a WhisperX JSON file.
func loadTranscriptText(jsonPath string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse whisperx json: %w", err)
	}
	var parts []string
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
