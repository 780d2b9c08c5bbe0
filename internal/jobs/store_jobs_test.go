package jobs_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"transcriptor/internal/jobs"
	"transcriptor/internal/testsupport"
)

func TestCreateAssignsInitialState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Create(ctx, cfg.ResultsDir())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusCreated {
		t.Fatalf("expected status %q, got %q", jobs.StatusCreated, job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("expected progress 0, got %d", job.Progress)
	}
	if info, err := os.Stat(job.WorkDir); err != nil || !info.IsDir() {
		t.Fatalf("expected work dir to exist: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.StatusLine != "Uploaded" {
		t.Fatalf("unexpected status line %q", fetched.StatusLine)
	}
}

func TestGetByIDUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetByID(context.Background(), "no-such-job"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMutateClampsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx := context.Background()
	updated, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusProcessing
		j.Progress = 45
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if updated.Progress != 45 {
		t.Fatalf("expected progress 45, got %d", updated.Progress)
	}

	updated, err = store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Progress = 10
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if updated.Progress != 45 {
		t.Fatalf("expected progress to hold at 45, got %d", updated.Progress)
	}
}

func TestMutateTerminalIsNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx := context.Background()
	if _, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.StatusLine = "Done!"
		j.Progress = 100
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	after, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.ErrorMessage = "late failure"
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if after.Status != jobs.StatusDone {
		t.Fatalf("expected terminal job to stay done, got %q", after.Status)
	}
	if after.ErrorMessage != "" {
		t.Fatalf("expected no error message, got %q", after.ErrorMessage)
	}
}

func TestMutateRejectsInvalidStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	if _, err := store.Mutate(context.Background(), job.ID, func(j *jobs.Job) {
		j.Status = jobs.Status("bogus")
	}); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestMutateSerializesConcurrentUpdates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx := context.Background()
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
				j.Status = jobs.StatusProcessing
				j.Progress = j.Progress + 1
			})
			if err != nil {
				t.Errorf("Mutate failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Progress != writers {
		t.Fatalf("expected progress %d after %d serialized increments, got %d", writers, writers, final.Progress)
	}
}

func TestAppendLogAndLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx := context.Background()
	lines := []string{"Reading file...", "Found 2 URLs to process.", "Downloading: https://example.com/a"}
	for _, line := range lines {
		if err := store.AppendLog(ctx, job.ID, line); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	logged, err := store.Logs(ctx, job.ID)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if len(logged) != len(lines) {
		t.Fatalf("expected %d log lines, got %d", len(lines), len(logged))
	}
	for i, line := range lines {
		if logged[i] != line {
			t.Fatalf("log line %d: expected %q, got %q", i, line, logged[i])
		}
	}

	latest, err := store.LatestLog(ctx, job.ID)
	if err != nil {
		t.Fatalf("LatestLog failed: %v", err)
	}
	if latest != lines[len(lines)-1] {
		t.Fatalf("expected latest %q, got %q", lines[len(lines)-1], latest)
	}
}

func TestSnapshotDoneIncludesDownloadURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg)

	ctx := context.Background()
	if _, err := store.Mutate(ctx, job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.StatusLine = "Done!"
		j.Progress = 100
		j.ArchivePath = cfg.ResultsDir() + "/" + j.ID + "_results.zip"
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	snap, err := store.Snapshot(ctx, job.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.Done {
		t.Fatal("expected done snapshot")
	}
	want := "/download/" + job.ID + "_results.zip"
	if snap.DownloadURL != want {
		t.Fatalf("expected download URL %q, got %q", want, snap.DownloadURL)
	}
	if snap.Error != "" {
		t.Fatalf("expected no error, got %q", snap.Error)
	}
}

func TestFailRunningMarksInFlightJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	running := testsupport.NewJob(t, store, cfg)
	if _, err := store.Mutate(ctx, running.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusProcessing
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	done := testsupport.NewJob(t, store, cfg)
	if _, err := store.Mutate(ctx, done.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.Progress = 100
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if err := store.FailRunning(ctx, jobs.StopReason); err != nil {
		t.Fatalf("FailRunning failed: %v", err)
	}

	failed, err := store.GetByID(ctx, running.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != jobs.StatusFailed {
		t.Fatalf("expected running job failed, got %q", failed.Status)
	}
	if failed.ErrorMessage != jobs.StopReason {
		t.Fatalf("expected stop reason, got %q", failed.ErrorMessage)
	}

	untouched, err := store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != jobs.StatusDone {
		t.Fatalf("expected done job untouched, got %q", untouched.Status)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewJob(t, store, cfg)
	time.Sleep(5 * time.Millisecond)
	second := testsupport.NewJob(t, store, cfg)

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first ordering, got %s then %s", list[0].ID, list[1].ID)
	}
}
