package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
)

const semesterColumns = "id, year, name, campus, session_key, classes_start, grades_due, created_at, updated_at"

// SemesterRepository handles persistence for semesters.
type SemesterRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(store *Store) *SemesterRepository {
	return &SemesterRepository{store: store, db: store.DB()}
}

// List returns semesters matching the provided filter.
func (r *SemesterRepository) List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, error) {
	f := NewFilter()
	if filter.Year != 0 {
		f.Equal("year", filter.Year)
	}
	if filter.Name != "" {
		f.Equal("name", filter.Name)
	}
	if filter.Campus != "" {
		f.Equal("campus", filter.Campus)
	}
	if filter.SessionKey != "" {
		f.Equal("session_key", filter.SessionKey)
	}

	var semesters []models.Semester
	if err := r.store.Find(ctx, &semesters, models.KindSemester, semesterColumns, f, "classes_start", 0, 0); err != nil {
		return nil, err
	}
	return semesters, nil
}

// FindByID loads a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	const query = `SELECT id, year, name, campus, session_key, classes_start, grades_due, created_at, updated_at FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindByIdentity loads a semester by its natural key.
func (r *SemesterRepository) FindByIdentity(ctx context.Context, year int, name, campus, sessionKey string) (*models.Semester, error) {
	const query = `SELECT id, year, name, campus, session_key, classes_start, grades_due, created_at, updated_at
        FROM semesters WHERE year = $1 AND name = $2 AND campus = $3 AND session_key = $4`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, year, name, campus, sessionKey); err != nil {
		return nil, err
	}
	return &semester, nil
}

// Upsert inserts a semester or updates the stored row matching its natural
// key, returning the persisted record.
func (r *SemesterRepository) Upsert(ctx context.Context, semester *models.Semester) (*models.Semester, error) {
	existing, err := r.FindByIdentity(ctx, semester.Year, semester.Name, semester.Campus, semester.SessionKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr(err, "lookup semester")
	}

	now := time.Now().UTC()
	if existing == nil {
		semester.ID = uuid.NewString()
		semester.CreatedAt = now
		semester.UpdatedAt = now
		const query = `INSERT INTO semesters (id, year, name, campus, session_key, classes_start, grades_due, created_at, updated_at)
            VALUES (:id, :year, :name, :campus, :session_key, :classes_start, :grades_due, :created_at, :updated_at)`
		if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
			return nil, storeErr(err, "create semester")
		}
	} else {
		semester.ID = existing.ID
		semester.CreatedAt = existing.CreatedAt
		semester.UpdatedAt = now
		const query = `UPDATE semesters SET classes_start = :classes_start, grades_due = :grades_due, updated_at = :updated_at WHERE id = :id`
		if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
			return nil, storeErr(err, "update semester")
		}
	}

	if err := r.store.SaveMeta(ctx, models.KindSemester, semester.ID, semester.Meta); err != nil {
		return nil, fmt.Errorf("semester meta: %w", err)
	}
	return semester, nil
}
