package app

import (
	"fmt"
	"strings"
	"time"

	"cdl-sync/internal/cdl"
)

// SyncOperation tracks one CLI operation in the run history.
// Operations are created in memory with ID=0; only data commands persist
// them, which gives them an auto-increment ID from the database.
type SyncOperation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	Status     string
	Items      int
}

// NewSyncOperation creates a new in-memory operation.
func NewSyncOperation(operation, parameters string, startedAt time.Time) *SyncOperation {
	return &SyncOperation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     cdl.RunSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *SyncOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *SyncOperation) Fail() {
	op.Status = cdl.RunError
}

// Parameters renders key=value pairs in the given order, skipping empty values.
func Parameters(kv ...string) string {
	var parts []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", kv[i], kv[i+1]))
	}
	return strings.Join(parts, " ")
}
