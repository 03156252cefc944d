package recorder

import "time"

// Run status values
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Run describes one pipeline invocation.
type Run struct {
	ID         string
	Mode       string // "create" or "append"
	Path       string
	RangeStart time.Time
	RangeEnd   time.Time
	StartedAt  time.Time
}

// RunResult closes a run.
type RunResult struct {
	Status  string
	Rows    int
	Windows int
	Err     error
}

// WindowEvent records one processed window of a run.
type WindowEvent struct {
	RunID string
	Start time.Time
	End   time.Time
	Rows  int
	Err   error
}

// RunSummary is a finished or running run as stored.
type RunSummary struct {
	ID         string
	Mode       string
	Path       string
	RangeStart time.Time
	RangeEnd   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Rows       int
	Windows    int
	Error      string
}

// Recorder persists the history of pipeline runs.
type Recorder interface {
	StartRun(run *Run) error
	RecordWindow(evt *WindowEvent) error
	FinishRun(id string, result *RunResult) error
	Close() error
}
