package pipeline

import (
	"context"

	"transcriptor/internal/batch"
)

// MediaFetcher acquires the audio for a source locator into destDir. An
// unfetchable locator yields ("", nil) rather than an error.
type MediaFetcher interface {
	Fetch(ctx context.Context, locator, platformHint, destDir string) (string, error)
}

// Separation is the output of one vocal isolation run.
type Separation struct {
	VocalsPath string
	StemPaths  []string
}

// SignalIsolator extracts a vocal-only track from fetched media, writing
// intermediate output under scratchDir.
type SignalIsolator interface {
	Isolate(ctx context.Context, mediaPath, scratchDir string) (Separation, error)
}

// Transcriber turns an audio file into transcript text, writing tool output
// under outputDir.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath, outputDir string) (string, error)
}

// BatchReader parses a submitted batch file into ordered rows.
type BatchReader interface {
	Read(path string) ([]batch.Row, error)
}

// BatchReaderFunc adapts a plain function to the BatchReader interface.
type BatchReaderFunc func(path string) ([]batch.Row, error)

func (f BatchReaderFunc) Read(path string) ([]batch.Row, error) { return f(path) }
