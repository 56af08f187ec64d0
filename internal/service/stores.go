package service

import (
	"context"

	"github.com/lsuits/ues-sync/internal/models"
)

// Consumer-side views of the repositories, kept narrow so services can be
// exercised with hand-written fakes in tests.

type semesterStore interface {
	Upsert(ctx context.Context, semester *models.Semester) (*models.Semester, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, error)
}

type courseStore interface {
	Upsert(ctx context.Context, course *models.Course) (*models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIdentity(ctx context.Context, department, courseNumber string) (*models.Course, error)
	Departments(ctx context.Context, semesterID string) ([]string, error)
}

type sectionStore interface {
	Upsert(ctx context.Context, section *models.Section) (*models.Section, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error)
	UpdateStatus(ctx context.Context, section *models.Section, status models.SectionStatus) error
	SetTargetID(ctx context.Context, section *models.Section, targetID *string) error
}

type enrollmentDetailStore interface {
	enrollmentStore
	ListDetailBySection(ctx context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) ([]models.EnrollmentDetail, error)
}

type runStore interface {
	Create(ctx context.Context, run *models.Run) error
	Finish(ctx context.Context, run *models.Run) error
	Latest(ctx context.Context) (*models.Run, error)
}

type errorStore interface {
	Create(ctx context.Context, record *models.ErrorRecord) error
	FindByID(ctx context.Context, id string) (*models.ErrorRecord, error)
	List(ctx context.Context, filter models.ErrorFilter) ([]models.ErrorRecord, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}
