// Package jobs persists batch job state in SQLite and exposes it to two
// kinds of callers: the pipeline executor, which owns all mutation through
// Mutate and AppendLog, and progress observers, which read copy-on-read
// snapshots or follow a job with Watch. Mutations for one job are
// serialized; reads never block writers for other jobs.
package jobs
