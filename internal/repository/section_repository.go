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

// SectionRepository handles persistence for sections.
type SectionRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(store *Store) *SectionRepository {
	return &SectionRepository{store: store, db: store.DB()}
}

// List returns sections matching the provided filter. Department filtering
// joins through courses.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error) {
	f := NewFilter()
	if filter.CourseID != "" {
		f.Equal("sections.course_id", filter.CourseID)
	}
	if filter.SemesterID != "" {
		f.Equal("sections.semester_id", filter.SemesterID)
	}
	if filter.Status != "" {
		f.Equal("sections.status", filter.Status)
	}
	if filter.Department != "" {
		f.Join("courses", "c", "c.id = sections.course_id")
		f.Equal("c.department", filter.Department)
	}

	columns := "sections.id, sections.course_id, sections.semester_id, sections.sec_number, sections.status, sections.target_id, sections.created_at, sections.updated_at"
	var sections []models.Section
	if err := r.store.Find(ctx, &sections, models.KindSection, columns, f, "sections.sec_number", 0, 0); err != nil {
		return nil, err
	}
	return sections, nil
}

// FindByID loads a section by identifier.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, semester_id, sec_number, status, target_id, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindByIdentity loads a section by its natural key.
func (r *SectionRepository) FindByIdentity(ctx context.Context, courseID, semesterID, secNumber string) (*models.Section, error) {
	const query = `SELECT id, course_id, semester_id, sec_number, status, target_id, created_at, updated_at
        FROM sections WHERE course_id = $1 AND semester_id = $2 AND sec_number = $3`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, courseID, semesterID, secNumber); err != nil {
		return nil, err
	}
	return &section, nil
}

// Upsert inserts a new section as PENDING or returns the stored row.
func (r *SectionRepository) Upsert(ctx context.Context, section *models.Section) (*models.Section, error) {
	existing, err := r.FindByIdentity(ctx, section.CourseID, section.SemesterID, section.SecNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr(err, "lookup section")
	}

	now := time.Now().UTC()
	if existing == nil {
		section.ID = uuid.NewString()
		if section.Status == "" {
			section.Status = models.SectionStatusPending
		}
		section.CreatedAt = now
		section.UpdatedAt = now
		const query = `INSERT INTO sections (id, course_id, semester_id, sec_number, status, target_id, created_at, updated_at)
            VALUES (:id, :course_id, :semester_id, :sec_number, :status, :target_id, :created_at, :updated_at)`
		if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
			return nil, storeErr(err, "create section")
		}
	} else {
		*section = *existing
	}

	if err := r.store.SaveMeta(ctx, models.KindSection, section.ID, section.Meta); err != nil {
		return nil, fmt.Errorf("section meta: %w", err)
	}
	return section, nil
}

// UpdateStatus moves a section to a new status, enforcing transition legality.
func (r *SectionRepository) UpdateStatus(ctx context.Context, section *models.Section, status models.SectionStatus) error {
	if section.Status == status {
		return nil
	}
	if !section.Status.CanTransition(status) {
		return fmt.Errorf("illegal section transition %s -> %s", section.Status, status)
	}
	const query = `UPDATE sections SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, section.ID, status, time.Now().UTC()); err != nil {
		return storeErr(err, "update section status")
	}
	section.Status = status
	return nil
}

// SetTargetID records or clears the target-system identifier.
func (r *SectionRepository) SetTargetID(ctx context.Context, section *models.Section, targetID *string) error {
	const query = `UPDATE sections SET target_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, section.ID, targetID, time.Now().UTC()); err != nil {
		return storeErr(err, "set section target id")
	}
	section.TargetID = targetID
	return nil
}
