package jobs

import (
	"context"
	"errors"
	"time"
)

// NotFoundSnapshot is emitted once when a watcher asks for an unknown job.
func NotFoundSnapshot() Snapshot {
	return Snapshot{Done: true, Error: "Job not found"}
}

// Watch returns a channel of progress snapshots for the job, one per poll
// interval. The channel closes after the first terminal snapshot, after a
// single not-found snapshot for unknown ids, or when ctx is cancelled.
// Watchers never mutate job state and multiple watchers for the same job
// are independent.
func (s *Store) Watch(ctx context.Context, id string, interval time.Duration) <-chan Snapshot {
	if interval <= 0 {
		interval = time.Second
	}
	out := make(chan Snapshot)

	go func() {
		defer close(out)
		for {
			snap, err := s.Snapshot(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					snap = NotFoundSnapshot()
				} else {
					snap = Snapshot{Done: true, Error: err.Error()}
				}
			}

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Done {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}()

	return out
}
