package handler

// JobKind discriminates the work carried on the ops queue.
type JobKind string

const (
	// JobRun requests a full reconciliation pass.
	JobRun JobKind = "reconcile_run"
	// JobReplay requests a replay of one queued error record.
	JobReplay JobKind = "error_replay"
)

// SyncJob is the single payload type the ops queue carries. Kind selects
// which of the remaining fields apply.
type SyncJob struct {
	Kind    JobKind
	Force   bool   // JobRun: bypass the run guard
	ErrorID string // JobReplay: the record to replay
}
