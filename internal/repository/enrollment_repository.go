package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
)

const enrollmentColumns = "id, section_id, user_id, role, primary_flag, status, created_at, updated_at"

// EnrollmentRepository handles persistence for teacher and student rows.
type EnrollmentRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(store *Store) *EnrollmentRepository {
	return &EnrollmentRepository{store: store, db: store.DB()}
}

// List returns enrollment rows matching the provided filter. Role is
// required; teacher and student rows are distinct record kinds.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	f := NewFilter()
	if filter.SectionID != "" {
		f.Equal("section_id", filter.SectionID)
	}
	if filter.UserID != "" {
		f.Equal("user_id", filter.UserID)
	}
	if filter.Status != "" {
		f.Equal("status", filter.Status)
	}

	var rows []models.Enrollment
	if err := r.store.Find(ctx, &rows, roleKind(filter.Role), enrollmentColumns, f, "created_at", 0, 0); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByKey looks up the unique row for (section, user, role). For teacher
// rows primary is part of the dedup key; pass nil to ignore it.
func (r *EnrollmentRepository) FindByKey(ctx context.Context, sectionID, userID string, role models.EnrollmentRole, primary *bool) (*models.Enrollment, error) {
	query := `SELECT id, section_id, user_id, role, primary_flag, status, created_at, updated_at
        FROM enrollments WHERE section_id = $1 AND user_id = $2 AND role = $3`
	args := []interface{}{sectionID, userID, role}
	if primary != nil {
		query += fmt.Sprintf(" AND primary_flag = $%d", len(args)+1)
		args = append(args, *primary)
	}
	var row models.Enrollment
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListBySection returns all rows of a role within a section.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string, role models.EnrollmentRole) ([]models.Enrollment, error) {
	const query = `SELECT id, section_id, user_id, role, primary_flag, status, created_at, updated_at
        FROM enrollments WHERE section_id = $1 AND role = $2`
	var rows []models.Enrollment
	if err := r.db.SelectContext(ctx, &rows, query, sectionID, role); err != nil {
		return nil, storeErr(err, "list section enrollments")
	}
	return rows, nil
}

// ListDetailBySection returns rows of a role with user identity attached,
// restricted to the given statuses when any are provided.
func (r *EnrollmentRepository) ListDetailBySection(ctx context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	f := NewFilter().
		Join("users", "u", "u.id = enrollments.user_id").
		Equal("enrollments.section_id", sectionID)
	if len(statuses) > 0 {
		values := make([]interface{}, len(statuses))
		for i, s := range statuses {
			values[i] = s
		}
		f.In("enrollments.status", values...)
	}

	columns := "enrollments.id, enrollments.section_id, enrollments.user_id, enrollments.role, enrollments.primary_flag, enrollments.status, enrollments.created_at, enrollments.updated_at, u.idnumber, u.username"
	var rows []models.EnrollmentDetail
	if err := r.store.Find(ctx, &rows, roleKind(role), columns, f, "u.username", 0, 0); err != nil {
		return nil, err
	}
	return rows, nil
}

// Create persists a new enrollment row.
func (r *EnrollmentRepository) Create(ctx context.Context, row *models.Enrollment) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Status == "" {
		row.Status = models.EnrollmentStatusProcessed
	}
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, section_id, user_id, role, primary_flag, status, created_at, updated_at)
        VALUES (:id, :section_id, :user_id, :role, :primary_flag, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return storeErr(err, "create enrollment")
	}
	if err := r.store.SaveMeta(ctx, roleKind(row.Role), row.ID, row.Meta); err != nil {
		return fmt.Errorf("enrollment meta: %w", err)
	}
	return nil
}

// UpdateStatus moves a row to a new status, enforcing transition legality.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, row *models.Enrollment, status models.EnrollmentStatus) error {
	if row.Status == status {
		return nil
	}
	if !row.Status.CanTransition(status) {
		return fmt.Errorf("illegal enrollment transition %s -> %s", row.Status, status)
	}
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, row.ID, status, time.Now().UTC()); err != nil {
		return storeErr(err, "update enrollment status")
	}
	row.Status = status
	return nil
}

// CountBySectionStatus counts rows of a role in the given statuses.
func (r *EnrollmentRepository) CountBySectionStatus(ctx context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) (int, error) {
	f := NewFilter().Equal("section_id", sectionID)
	if len(statuses) > 0 {
		values := make([]interface{}, len(statuses))
		for i, s := range statuses {
			values[i] = s
		}
		f.In("status", values...)
	}
	return r.store.Count(ctx, roleKind(role), f)
}

func roleKind(role models.EnrollmentRole) models.EntityKind {
	if role == models.RoleTeacher {
		return models.KindTeacher
	}
	return models.KindStudent
}
