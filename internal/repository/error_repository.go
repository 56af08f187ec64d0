package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
)

// ErrorRepository persists the replayable error queue.
type ErrorRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewErrorRepository constructs the repository.
func NewErrorRepository(store *Store) *ErrorRepository {
	return &ErrorRepository{store: store, db: store.DB()}
}

// Create enqueues a new error record.
func (r *ErrorRepository) Create(ctx context.Context, record *models.ErrorRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sync_errors (id, kind, params, message, created_at)
        VALUES (:id, :kind, :params, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return storeErr(err, "create error record")
	}
	return nil
}

// FindByID loads an error record.
func (r *ErrorRepository) FindByID(ctx context.Context, id string) (*models.ErrorRecord, error) {
	const query = `SELECT id, kind, params, message, created_at FROM sync_errors WHERE id = $1`
	var record models.ErrorRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns queued error records, oldest first.
func (r *ErrorRepository) List(ctx context.Context, filter models.ErrorFilter) ([]models.ErrorRecord, error) {
	f := NewFilter()
	if filter.Kind != "" {
		f.Equal("kind", filter.Kind)
	}
	if !filter.Before.IsZero() {
		f.Less("created_at", filter.Before)
	}

	var records []models.ErrorRecord
	if err := r.store.Find(ctx, &records, models.KindError, "id, kind, params, message, created_at", f, "created_at", 0, filter.Limit); err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of outstanding error records.
func (r *ErrorRepository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx, models.KindError, nil)
}

// Delete removes a consumed error record.
func (r *ErrorRepository) Delete(ctx context.Context, id string) error {
	_, err := r.store.Delete(ctx, models.KindError, NewFilter().Equal("id", id))
	return err
}
