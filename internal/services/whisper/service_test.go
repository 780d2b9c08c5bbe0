package whisper_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transcriptor/internal/services"
	"transcriptor/internal/services/whisper"
)

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocals.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestTranscribeJoinsSegmentText(t *testing.T) {
	source := writeSource(t)
	outputDir := t.TempDir()

	svc := whisper.NewService(whisper.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name != whisper.UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		payload := `{"segments":[{"text":" first line "},{"text":""},{"text":"second line"}]}`
		return os.WriteFile(filepath.Join(outputDir, "vocals.json"), []byte(payload), 0o644)
	})

	text, err := svc.Transcribe(context.Background(), source, outputDir)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "first line second line" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeBuildsModelAndDeviceArgs(t *testing.T) {
	source := writeSource(t)
	outputDir := t.TempDir()

	var captured []string
	svc := whisper.NewService(whisper.Config{Model: "medium"})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		captured = args
		return os.WriteFile(filepath.Join(outputDir, "vocals.json"), []byte(`{"segments":[]}`), 0o644)
	})

	if _, err := svc.Transcribe(context.Background(), source, outputDir); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	joined := strings.Join(captured, " ")
	for _, want := range []string{
		"whisperx",
		"--model medium",
		"--output_format json",
		"--device cpu --compute_type float32",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
}

func TestTranscribeToolFailure(t *testing.T) {
	source := writeSource(t)

	svc := whisper.NewService(whisper.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("CUDA out of memory")
	})

	_, err := svc.Transcribe(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestTranscribeMissingTranscriptJSON(t *testing.T) {
	source := writeSource(t)

	svc := whisper.NewService(whisper.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	_, err := svc.Transcribe(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestTranscribeEmptySource(t *testing.T) {
	svc := whisper.NewService(whisper.Config{})

	_, err := svc.Transcribe(context.Background(), "", t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
