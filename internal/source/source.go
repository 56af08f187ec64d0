// Package source defines the pluggable roster-provider contract. Provider
// implementations (SOAP, REST, flat-file) live outside this module; the sync
// core only consumes this interface.
package source

import (
	"context"
	"time"
)

// SemesterRecord is a semester as reported by a provider.
type SemesterRecord struct {
	Year         int        `validate:"required"`
	Name         string     `validate:"required"`
	Campus       string     `validate:"required"`
	SessionKey   string
	ClassesStart time.Time
	GradesDue    *time.Time
}

// SectionRecord is a section number within a course record.
type SectionRecord struct {
	SecNumber string `validate:"required"`
}

// CourseRecord is a course with the sections a provider reports for it.
type CourseRecord struct {
	Department   string `validate:"required"`
	CourseNumber string `validate:"required"`
	FullName     string
	GradingType  string
	Sections     []SectionRecord
}

// UserRecord is a roster member. PrimaryFlag is meaningful for teachers only.
// Department-scoped lookups attribute each member to a section through
// CourseNumber and SecNumber; section-scoped lookups leave them empty.
type UserRecord struct {
	IDNumber    string `validate:"required"`
	Username    string `validate:"required"`
	FirstName   string
	LastName    string
	Email       string
	PrimaryFlag bool

	Department   string
	CourseNumber string
	SecNumber    string
}

// RosterSource is the provider capability the orchestrator pulls from.
// Department-scoped lookups are optional; capability flags advertise what a
// provider supports. A provider must support at least one of section or
// department lookups.
type RosterSource interface {
	Semesters(ctx context.Context, since time.Time) ([]SemesterRecord, error)
	Courses(ctx context.Context, semester SemesterRecord) ([]CourseRecord, error)

	Teachers(ctx context.Context, semester SemesterRecord, course CourseRecord, section SectionRecord) ([]UserRecord, error)
	Students(ctx context.Context, semester SemesterRecord, course CourseRecord, section SectionRecord) ([]UserRecord, error)

	SupportsSectionLookups() bool
	SupportsDepartmentLookups() bool
}

// DepartmentSource is implemented by providers that can pull a whole
// department in one call, which is cheaper on the wire.
type DepartmentSource interface {
	TeachersByDepartment(ctx context.Context, semester SemesterRecord, department string) ([]UserRecord, error)
	StudentsByDepartment(ctx context.Context, semester SemesterRecord, department string) ([]UserRecord, error)
}

// ReverseSource is implemented by providers that support reverse lookups
// from a teacher to their courses.
type ReverseSource interface {
	SupportsReverseLookups() bool
	TeacherInfo(ctx context.Context, semester SemesterRecord, user UserRecord) ([]CourseRecord, error)
}
