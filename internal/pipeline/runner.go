package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"transcriptor/internal/logging"
)

// Runner executes jobs on a bounded pool of goroutines. Submissions beyond
// the concurrency limit queue until a slot frees; the submitter never
// blocks on job completion, only on slot acquisition inside the spawned
// goroutine.
type Runner struct {
	exec   *Executor
	slots  chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner constructs a runner allowing up to maxConcurrent jobs in flight.
func NewRunner(exec *Executor, maxConcurrent int, logger *slog.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		exec:   exec,
		slots:  make(chan struct{}, maxConcurrent),
		logger: logging.NewComponentLogger(logger, "runner"),
	}
}

// Start makes the runner accept submissions until Stop or ctx cancellation.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	return nil
}

// Stop cancels in-flight jobs and waits for their goroutines to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

// Submit schedules the job for execution and returns immediately. The job
// runs as soon as a concurrency slot is available.
func (r *Runner) Submit(jobID, batchPath string) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return errors.New("runner not started")
	}
	ctx := r.ctx
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		select {
		case r.slots <- struct{}{}:
		case <-ctx.Done():
			r.logger.Warn("job abandoned before start",
				logging.String(logging.FieldJobID, jobID),
			)
			return
		}
		defer func() { <-r.slots }()
		r.exec.Run(ctx, jobID, batchPath)
	}()
	return nil
}
