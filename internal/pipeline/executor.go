package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcriptor/internal/archive"
	"transcriptor/internal/batch"
	"transcriptor/internal/jobs"
	"transcriptor/internal/logging"
)

// Options bundles the executor's tunables.
type Options struct {
	// ResultsDir is where packaged archives are written.
	ResultsDir string
	// IsolationEnabled controls whether the optional vocal isolation stage
	// runs at all.
	IsolationEnabled bool
	// Per-stage collaborator call timeouts. Zero disables the timeout.
	FetchTimeout      time.Duration
	IsolationTimeout  time.Duration
	TranscribeTimeout time.Duration
}

// Executor drives one job at a time through the per-item pipeline. All
// failures are captured into job state; Run never reports an error to its
// caller.
type Executor struct {
	store       *jobs.Store
	reader      BatchReader
	fetcher     MediaFetcher
	isolator    SignalIsolator
	transcriber Transcriber
	opts        Options
	logger      *slog.Logger
}

// NewExecutor constructs an executor over the given store and collaborators.
func NewExecutor(store *jobs.Store, reader BatchReader, fetcher MediaFetcher, isolator SignalIsolator, transcriber Transcriber, opts Options, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		store:       store,
		reader:      reader,
		fetcher:     fetcher,
		isolator:    isolator,
		transcriber: transcriber,
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run processes the job identified by jobID using the uploaded batch file at
// batchPath. It owns every mutation of that job until the job is terminal.
func (e *Executor) Run(ctx context.Context, jobID, batchPath string) {
	logger := e.logger.With(logging.String(logging.FieldJobID, jobID))
	started := time.Now()

	job, err := e.store.GetByID(ctx, jobID)
	if err != nil {
		logger.Error("job vanished before pipeline start", logging.Error(err))
		return
	}

	rows, fatal := e.readBatch(ctx, jobID, batchPath, logger)
	if fatal != nil {
		e.fail(ctx, jobID, fatal, logger)
		return
	}

	n := len(rows)
	for i, row := range rows {
		if ctx.Err() != nil {
			e.fail(ctx, jobID, errors.New(jobs.StopReason), logger)
			return
		}
		progress := 10 + int(float64(i+1)/float64(n)*70)
		statusLine := fmt.Sprintf("Processing %d/%d: %s", i+1, n, row.Locator)
		e.update(ctx, jobID, logger, func(j *jobs.Job) {
			j.Status = jobs.StatusProcessing
			j.StatusLine = statusLine
			j.Progress = progress
		})
		e.processItem(ctx, job, i+1, n, row, logger)
	}

	if ctx.Err() != nil {
		e.fail(ctx, jobID, errors.New(jobs.StopReason), logger)
		return
	}

	e.update(ctx, jobID, logger, func(j *jobs.Job) {
		j.Status = jobs.StatusPackaging
		j.StatusLine = "Creating ZIP archive..."
		j.Progress = 90
	})

	archivePath := filepath.Join(e.opts.ResultsDir, jobID+"_results.zip")
	if err := e.pack(job.WorkDir, archivePath); err != nil {
		e.fail(ctx, jobID, fmt.Errorf("package results: %w", err), logger)
		return
	}

	e.update(ctx, jobID, logger, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.StatusLine = "Done!"
		j.Progress = 100
		j.ArchivePath = archivePath
	})
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int(logging.FieldItemCount, n),
		logging.Duration("job_duration", time.Since(started)),
	)
}

// readBatch runs the Reading phase. A returned error is job-fatal.
func (e *Executor) readBatch(ctx context.Context, jobID, batchPath string, logger *slog.Logger) ([]batch.Row, error) {
	e.update(ctx, jobID, logger, func(j *jobs.Job) {
		j.Status = jobs.StatusReading
		j.StatusLine = "Reading file..."
		j.Progress = 5
	})

	rows, err := e.reader.Read(batchPath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no usable rows: every row is missing a locator")
	}
	e.log(ctx, jobID, fmt.Sprintf("Found %d URLs to process.", len(rows)), logger)
	return rows, nil
}

// processItem runs the fetch/isolate/transcribe pipeline for one item.
// Every failure is item-local: it is logged against the job and the method
// returns so the batch continues. The item's scratch directory is reclaimed
// on every path.
func (e *Executor) processItem(ctx context.Context, job *jobs.Job, index, total int, row batch.Row, logger *slog.Logger) {
	itemLogger := logger.With(
		logging.Int(logging.FieldItemIndex, index),
		logging.Int(logging.FieldItemCount, total),
		logging.String(logging.FieldLocator, row.Locator),
	)

	scratchDir, err := os.MkdirTemp("", "transcriptor-item-*")
	if err != nil {
		e.logItemError(ctx, job.ID, row.Locator, fmt.Errorf("create scratch dir: %w", err), itemLogger)
		return
	}
	defer os.RemoveAll(scratchDir)

	e.log(ctx, job.ID, "Downloading: "+row.Locator, itemLogger)
	mediaPath, err := e.fetch(ctx, row, job.WorkDir)
	if err != nil {
		e.logItemError(ctx, job.ID, row.Locator, err, itemLogger)
		return
	}
	if mediaPath == "" {
		e.log(ctx, job.ID, "Failed to download: "+row.Locator, itemLogger)
		return
	}
	baseName := filepath.Base(mediaPath)
	e.log(ctx, job.ID, "Downloaded: "+baseName, itemLogger)

	input := mediaPath
	if sep, skipReason := e.isolate(ctx, mediaPath, scratchDir, itemLogger); skipReason != "" {
		if e.opts.IsolationEnabled {
			e.log(ctx, job.ID, "Vocal isolation failed, using original audio: "+skipReason, itemLogger)
		}
	} else {
		input = sep.VocalsPath
		if err := e.collectStems(job.WorkDir, baseName, sep); err != nil {
			itemLogger.Warn("failed to copy isolation artifacts", logging.Error(err))
		}
	}

	e.update(ctx, job.ID, itemLogger, func(j *jobs.Job) {
		j.StatusLine = fmt.Sprintf("Transcribing %d/%d: %s", index, total, baseName)
	})
	e.log(ctx, job.ID, "Transcribing...", itemLogger)

	text, err := e.transcribe(ctx, input, scratchDir)
	if err != nil {
		e.logItemError(ctx, job.ID, row.Locator, err, itemLogger)
		return
	}

	txtName := strings.TrimSuffix(baseName, filepath.Ext(baseName)) + ".txt"
	txtPath := filepath.Join(job.WorkDir, txtName)
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		e.logItemError(ctx, job.ID, row.Locator, fmt.Errorf("save transcript: %w", err), itemLogger)
		return
	}
	e.log(ctx, job.ID, "Transcription saved.", itemLogger)
}

func (e *Executor) pack(workDir, archivePath string) error {
	return archive.Pack(workDir, archivePath)
}

func (e *Executor) fetch(ctx context.Context, row batch.Row, destDir string) (string, error) {
	ctx, cancel := maybeTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()
	return e.fetcher.Fetch(ctx, row.Locator, row.PlatformHint, destDir)
}

// isolate runs the optional isolation stage. The second return value is a
/// skip reason: "" means the vocals track was produced, anything else means
// the caller should fall back to the original media. The distinction between
// "disabled" and "attempted and failed" is visible in the reason.
func (e *Executor) isolate(ctx context.Context, mediaPath, scratchDir string, logger *slog.Logger) (Separation, string) {
	if !e.opts.IsolationEnabled || e.isolator == nil {
		return Separation{}, "isolation disabled"
	}

	isoCtx, cancel := maybeTimeout(ctx, e.opts.IsolationTimeout)
	defer cancel()

	sep, err := e.isolator.Isolate(isoCtx, mediaPath, filepath.Join(scratchDir, "separated"))
	if err != nil {
		logger.Debug("isolation stage failed", logging.Error(err))
		return Separation{}, err.Error()
	}
	return sep, ""
}

func (e *Executor) transcribe(ctx context.Context, input, scratchDir string) (string, error) {
	ctx, cancel := maybeTimeout(ctx, e.opts.TranscribeTimeout)
	defer cancel()
	return e.transcriber.Transcribe(ctx, input, filepath.Join(scratchDir, "transcript"))
}

// collectStems copies the isolated vocals and auxiliary stems into a
// per-item subdirectory of the job's working directory so they survive into
// the archive.
func (e *Executor) collectStems(workDir, mediaBase string, sep Separation) error {
	stemDir := filepath.Join(workDir, strings.TrimSuffix(mediaBase, filepath.Ext(mediaBase))+"_stems")
	if err := os.MkdirAll(stemDir, 0o755); err != nil {
		return fmt.Errorf("create stem dir: %w", err)
	}
	paths := append([]string{sep.VocalsPath}, sep.StemPaths...)
	for _, src := range paths {
		if src == "" {
			continue
		}
		if err := copyFile(src, filepath.Join(stemDir, filepath.Base(src))); err != nil {
			return err
		}
	}
	return nil
}

// update persists a job mutation. Persistence survives cancellation so a
// stopped job still records its terminal state.
func (e *Executor) update(ctx context.Context, jobID string, logger *slog.Logger, fn func(*jobs.Job)) {
	if _, err := e.store.Mutate(context.WithoutCancel(ctx), jobID, fn); err != nil {
		logger.Error("failed to persist job update", logging.Error(err))
	}
}

func (e *Executor) log(ctx context.Context, jobID, line string, logger *slog.Logger) {
	if err := e.store.AppendLog(context.WithoutCancel(ctx), jobID, line); err != nil {
		logger.Error("failed to append job log", logging.Error(err))
	}
	logger.Debug(line)
}

func (e *Executor) logItemError(ctx context.Context, jobID, locator string, err error, logger *slog.Logger) {
	e.log(ctx, jobID, fmt.Sprintf("Error processing %s: %s", locator, err.Error()), logger)
	logger.Warn("item failed",
		logging.String(logging.FieldEventType, "item_failed"),
		logging.Error(err),
	)
}

func (e *Executor) fail(ctx context.Context, jobID string, cause error, logger *slog.Logger) {
	e.update(ctx, jobID, logger, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.StatusLine = "Failed"
		j.ErrorMessage = cause.Error()
	})
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.Error(cause),
	)
}

func maybeTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
