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

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	store *Store
	db    *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(store *Store) *CourseRepository {
	return &CourseRepository{store: store, db: store.DB()}
}

// FindByID loads a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, department, course_number, full_name, grading_type, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIdentity loads a course by its natural key.
func (r *CourseRepository) FindByIdentity(ctx context.Context, department, courseNumber string) (*models.Course, error) {
	const query = `SELECT id, department, course_number, full_name, grading_type, created_at, updated_at
        FROM courses WHERE department = $1 AND course_number = $2`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, department, courseNumber); err != nil {
		return nil, err
	}
	return &course, nil
}

// Upsert inserts a course or refreshes mutable fields on the stored row.
func (r *CourseRepository) Upsert(ctx context.Context, course *models.Course) (*models.Course, error) {
	existing, err := r.FindByIdentity(ctx, course.Department, course.CourseNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr(err, "lookup course")
	}

	now := time.Now().UTC()
	if existing == nil {
		course.ID = uuid.NewString()
		course.CreatedAt = now
		course.UpdatedAt = now
		const query = `INSERT INTO courses (id, department, course_number, full_name, grading_type, created_at, updated_at)
            VALUES (:id, :department, :course_number, :full_name, :grading_type, :created_at, :updated_at)`
		if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
			return nil, storeErr(err, "create course")
		}
	} else {
		course.ID = existing.ID
		course.CreatedAt = existing.CreatedAt
		course.UpdatedAt = now
		const query = `UPDATE courses SET full_name = :full_name, grading_type = :grading_type, updated_at = :updated_at WHERE id = :id`
		if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
			return nil, storeErr(err, "update course")
		}
	}

	if err := r.store.SaveMeta(ctx, models.KindCourse, course.ID, course.Meta); err != nil {
		return nil, fmt.Errorf("course meta: %w", err)
	}
	return course, nil
}

// Departments returns the distinct departments with sections in a semester.
func (r *CourseRepository) Departments(ctx context.Context, semesterID string) ([]string, error) {
	const query = `SELECT DISTINCT c.department FROM courses c
        JOIN sections s ON s.course_id = c.id
        WHERE s.semester_id = $1 ORDER BY c.department`
	var departments []string
	if err := r.db.SelectContext(ctx, &departments, query, semesterID); err != nil {
		return nil, storeErr(err, "list departments")
	}
	return departments, nil
}
