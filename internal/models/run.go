package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RunStatus is the outcome of a command invocation.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a persisted command invocation in the run ledger.
type Run struct {
	ID          surrealmodels.RecordID `json:"id"`
	Command     string                 `json:"command"`
	Tag         *string                `json:"tag,omitempty"`
	Status      string                 `json:"status"`
	Source      string                 `json:"source"`
	Total       int                    `json:"total"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	Unprocessed int                    `json:"unprocessed"`
	Error       *string                `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// RunFailure is one failed record of a run, kept for re-driving.
type RunFailure struct {
	ID         surrealmodels.RecordID `json:"id"`
	Run        surrealmodels.RecordID `json:"run"`
	Stage      string                 `json:"stage"`
	Identifier string                 `json:"identifier"`
	Reason     string                 `json:"reason"`
	Record     map[string]any         `json:"record,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// RunRecordState is the final state of one record of a run.
type RunRecordState struct {
	Identifier string      `json:"identifier"`
	State      RecordState `json:"state"`
	RemoteID   string      `json:"remote_id,omitempty"`
}

// RunCounts is the final tally of a run.
type RunCounts struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Unprocessed int `json:"unprocessed"`
}
