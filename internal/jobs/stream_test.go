package jobs_test

import (
	"context"
	"testing"
	"time"

	"transcriptor/internal/jobs"
	"transcriptor/internal/testsupport"
)

func TestWatchEmitsUntilTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updates := store.Watch(ctx, job.ID, 10*time.Millisecond)

	first, ok := <-updates
	if !ok {
		t.Fatal("expected at least one snapshot")
	}
	if first.Done {
		t.Fatalf("expected non-terminal first snapshot, got %#v", first)
	}

	if _, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.StatusLine = "Done!"
		j.Progress = 100
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	var last jobs.Snapshot
	for snap := range updates {
		last = snap
	}
	if !last.Done {
		t.Fatalf("expected terminal snapshot before close, got %#v", last)
	}
	if last.Status != jobs.StatusDone {
		t.Fatalf("expected done status, got %q", last.Status)
	}
}

func TestWatchUnknownJobEmitsSingleNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := store.Watch(ctx, "no-such-job", 10*time.Millisecond)

	snap, ok := <-updates
	if !ok {
		t.Fatal("expected not-found snapshot")
	}
	if !snap.Done || snap.Error != "Job not found" {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if _, ok := <-updates; ok {
		t.Fatal("expected channel closed after not-found snapshot")
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	updates := store.Watch(ctx, job.ID, 10*time.Millisecond)

	<-updates
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel did not close after cancel")
		}
	}
}
