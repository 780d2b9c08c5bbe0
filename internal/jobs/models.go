package jobs

import "time"

// Status represents the lifecycle of a job.
type Status string

const (
	StatusCreated    Status = "created"
	StatusReading    Status = "reading"
	StatusProcessing Status = "processing"
	StatusPackaging  Status = "packaging"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// StopReason is the error message set on jobs interrupted by daemon shutdown.
const StopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusCreated,
	StatusReading,
	StatusProcessing,
	StatusPackaging,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is a known lifecycle value.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether the status ends the job lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is one batch submission tracked by the store.
type Job struct {
	ID           string
	Status       Status
	StatusLine   string
	Progress     int
	ErrorMessage string
	ArchivePath  string
	WorkDir      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot is an immutable point-in-time view of a job exposed to progress
// observers.
type Snapshot struct {
	Status      Status
	StatusLine  string
	Progress    int
	LatestLog   string
	Done        bool
	DownloadURL string
	Error       string
}
