package models

import "time"

// EnrollmentRole discriminates teacher rows from student rows. Both share
// the same shape and lifecycle; teacher rows additionally carry PrimaryFlag.
type EnrollmentRole string

const (
	RoleTeacher EnrollmentRole = "TEACHER"
	RoleStudent EnrollmentRole = "STUDENT"
)

// Enrollment links a user to a section in a given role. Dedup identity is
// (section_id, user_id, role), with primary_flag joining the key for teacher
// rows, so a primary-status flip creates a new row and releases the old one.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	SectionID   string           `db:"section_id" json:"section_id"`
	UserID      string           `db:"user_id" json:"user_id"`
	Role        EnrollmentRole   `db:"role" json:"role"`
	PrimaryFlag bool             `db:"primary_flag" json:"primary_flag"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`

	Meta Metadata `db:"-" json:"meta,omitempty"`
}

// EnrollmentFilter constrains enrollment listings.
type EnrollmentFilter struct {
	SectionID string
	UserID    string
	Role      EnrollmentRole
	Status    EnrollmentStatus
}

// EnrollmentDetail enriches an enrollment with user identity for logging
// and the ops surface.
type EnrollmentDetail struct {
	Enrollment
	IDNumber string `db:"idnumber" json:"idnumber"`
	Username string `db:"username" json:"username"`
}
