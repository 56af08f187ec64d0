package models

import "time"

// RunStatus tracks a reconciliation run record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Run is the persisted record of one reconciliation pass. The newest row
// doubles as the advisory mutual-exclusion flag when redis is unavailable.
type Run struct {
	ID         string     `db:"id" json:"id"`
	Status     RunStatus  `db:"status" json:"status"`
	Forced     bool       `db:"forced" json:"forced"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`

	SemestersSeen     int `db:"semesters_seen" json:"semesters_seen"`
	SectionsProcessed int `db:"sections_processed" json:"sections_processed"`
	SectionsSkipped   int `db:"sections_skipped" json:"sections_skipped"`
	EnrollsApplied    int `db:"enrolls_applied" json:"enrolls_applied"`
	UnenrollsApplied  int `db:"unenrolls_applied" json:"unenrolls_applied"`
	ErrorsQueued      int `db:"errors_queued" json:"errors_queued"`

	LogTail string `db:"log_tail" json:"log_tail"`
}
