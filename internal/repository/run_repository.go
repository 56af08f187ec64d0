package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
)

const runColumns = "id, status, forced, started_at, finished_at, semesters_seen, sections_processed, sections_skipped, enrolls_applied, unenrolls_applied, errors_queued, log_tail"

// RunRepository persists reconciliation run records.
type RunRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(store *Store) *RunRepository {
	return &RunRepository{store: store, db: store.DB()}
}

// Create persists a new run in RUNNING state.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	const query = `INSERT INTO sync_runs (id, status, forced, started_at, finished_at, semesters_seen, sections_processed, sections_skipped, enrolls_applied, unenrolls_applied, errors_queued, log_tail)
        VALUES (:id, :status, :forced, :started_at, :finished_at, :semesters_seen, :sections_processed, :sections_skipped, :enrolls_applied, :unenrolls_applied, :errors_queued, :log_tail)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return storeErr(err, "create run")
	}
	return nil
}

// Finish closes out a run with its final status and counters.
func (r *RunRepository) Finish(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	const query = `UPDATE sync_runs SET status = :status, finished_at = :finished_at, semesters_seen = :semesters_seen,
        sections_processed = :sections_processed, sections_skipped = :sections_skipped, enrolls_applied = :enrolls_applied,
        unenrolls_applied = :unenrolls_applied, errors_queued = :errors_queued, log_tail = :log_tail WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return storeErr(err, "finish run")
	}
	return nil
}

// Latest returns the most recently started run, if any.
func (r *RunRepository) Latest(ctx context.Context) (*models.Run, error) {
	var runs []models.Run
	if err := r.store.Find(ctx, &runs, models.KindRun, runColumns, nil, "started_at DESC", 0, 1); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}
