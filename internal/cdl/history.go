package cdl

import "time"

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// Run is one journaled CLI operation.
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Items      int
}

// RunHistory journals CLI operations.
type RunHistory interface {
	// CreateRun records the start of an operation and returns it with its ID set.
	CreateRun(operation, parameters string, startedAt time.Time) (*Run, error)

	// FinishRun records the outcome of an operation.
	FinishRun(id int64, status string, items int, finishedAt time.Time) error

	// ListRuns returns the most recent operations, newest first.
	ListRuns(limit int) ([]*Run, error)

	Close() error
}
