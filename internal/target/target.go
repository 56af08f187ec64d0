// Package target defines the enrollment-target contract: the learning
// platform where courses, groups and memberships are materialized.
package target

import "context"

// CourseSpec describes a course to find or create at the target.
type CourseSpec struct {
	Shortname string
	Fullname  string
	IDNumber  string
	Visible   bool
}

// CourseHandle identifies a materialized target course.
type CourseHandle struct {
	ID string
}

// GroupHandle identifies a group within a target course.
type GroupHandle struct {
	ID       string
	CourseID string
	Name     string
}

// EnrollOptions carries per-enrollment behaviour toggles.
type EnrollOptions struct {
	// RecoverGrades restores prior grade history when re-enrolling a user
	// who was previously unenrolled from the same course.
	RecoverGrades bool
}

// EnrollmentTarget is the capability the manifest step drives. Implementations
// are external collaborators; all operations are fallible and idempotent from
// the caller's point of view.
type EnrollmentTarget interface {
	EnsureCourse(ctx context.Context, spec CourseSpec) (CourseHandle, error)
	EnsureGroup(ctx context.Context, course CourseHandle, name string) (GroupHandle, error)

	Enroll(ctx context.Context, course CourseHandle, userID, role string, opts EnrollOptions) error
	Unenroll(ctx context.Context, course CourseHandle, userID, role string) error

	AddGroupMember(ctx context.Context, group GroupHandle, userID string) error
	RemoveGroupMember(ctx context.Context, group GroupHandle, userID string) error

	IsEnrolled(ctx context.Context, course CourseHandle, userID string) (bool, error)
}
