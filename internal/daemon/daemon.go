package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"transcriptor/internal/batch"
	"transcriptor/internal/config"
	"transcriptor/internal/jobs"
	"transcriptor/internal/logging"
	"transcriptor/internal/pipeline"
	"transcriptor/internal/server"
	"transcriptor/internal/services/demucs"
	"transcriptor/internal/services/whisper"
	"transcriptor/internal/services/ytdlp"
)

// Daemon coordinates the HTTP server and job runner and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	runner *pipeline.Runner
	server *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// isolatorAdapter bridges the demucs service to the pipeline's Separation
// type.
type isolatorAdapter struct {
	svc *demucs.Service
}

func (a isolatorAdapter) Isolate(ctx context.Context, mediaPath, scratchDir string) (pipeline.Separation, error) {
	sep, err := a.svc.Isolate(ctx, mediaPath, scratchDir)
	if err != nil {
		return pipeline.Separation{}, err
	}
	return pipeline.Separation{VocalsPath: sep.VocalsPath, StemPaths: sep.StemPaths}, nil
}

// New constructs a daemon with its full collaborator graph wired from
// configuration.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	fetcher := ytdlp.NewService(ytdlp.Config{
		Binary:         cfg.Tools.YtdlpBinary,
		FFmpegLocation: cfg.Tools.FFmpegBinary,
	})
	isolator := isolatorAdapter{svc: demucs.NewService(demucs.Config{Binary: cfg.Tools.DemucsBinary})}
	transcriber := whisper.NewService(whisper.Config{Model: cfg.Tools.WhisperModel})

	exec := pipeline.NewExecutor(
		store,
		pipeline.BatchReaderFunc(batch.Read),
		fetcher,
		isolator,
		transcriber,
		pipeline.Options{
			ResultsDir:        cfg.ResultsDir(),
			IsolationEnabled:  cfg.Tools.IsolationEnabled,
			FetchTimeout:      time.Duration(cfg.Tools.FetchTimeout) * time.Second,
			IsolationTimeout:  time.Duration(cfg.Tools.IsolationTimeout) * time.Second,
			TranscribeTimeout: time.Duration(cfg.Tools.TranscribeTimeout) * time.Second,
		},
		logger,
	)
	runner := pipeline.NewRunner(exec, cfg.Workflow.MaxConcurrentJobs, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "transcriptord.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		runner:   runner,
		server:   server.New(cfg, store, runner, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the runner and HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another transcriptor daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.runner.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start runner: %w", err)
	}
	if err := d.server.Start(d.ctx); err != nil {
		d.runner.Stop()
		d.releaseLock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("transcriptor daemon started",
		logging.String("bind", d.server.Addr()),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop shuts down the HTTP server, cancels in-flight jobs, marks any
// still-running jobs failed, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.FailRunning(ctx, jobs.StopReason); err != nil {
		d.logger.Warn("failed to mark in-flight jobs", logging.Error(err))
	}

	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("transcriptor daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the HTTP server's bound address, empty before Start.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
