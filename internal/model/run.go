package model

import "time"

// RunStatus is the lifecycle state of a persisted batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted batch execution. Artifact holds the JSON evidence
// artifact for completed runs; Error holds the abort reason for failed
// ones.
type Run struct {
	ID         string    `json:"id"`
	RunDate    string    `json:"run_date"` // DDMMYYYY
	Status     RunStatus `json:"status"`
	Processed  int       `json:"processed"`
	Matched    int       `json:"matched"`
	Failed     int       `json:"failed"`
	Instructed int       `json:"instructions"`
	Artifact   string    `json:"artifact,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
