// Package history persists merge attempts in SQLite so past sessions
// survive daemon restarts. The in-memory correlator remains the authority
// for live sessions; this store is the durable audit trail behind the
// history CLI and the capture idempotence check.
package history

import "time"

// Status describes the lifecycle of a recorded merge attempt.
type Status string

const (
	StatusMerging   Status = "merging"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Source names where a merge's inputs came from.
type Source string

const (
	SourceFolder  Source = "folder"
	SourceCapture Source = "capture"
)

// Record is one merge attempt.
type Record struct {
	ID           int64
	SessionKey   string
	Source       Source
	VideoPath    string
	AudioPath    string
	OutputPath   string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
