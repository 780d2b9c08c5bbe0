// Package pipeline drives submitted jobs through the per-item
// fetch/isolate/transcribe pipeline and packages their artifacts.
//
// One executor run owns all mutation of its job: state transitions, progress
// updates, and log lines all flow through the job store. Item failures are
// isolated — a bad item logs a failure line and the batch continues — while
// batch-level problems (unreadable file, no usable rows, archive write
// failure) fail the whole job. Jobs run concurrently on a bounded runner;
// items within one job always run sequentially because the collaborators
// are heavyweight external tools.
package pipeline
