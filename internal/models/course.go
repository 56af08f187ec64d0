package models

import "time"

// Course is identified by (department, course_number) and owns sections
// per semester.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Department   string    `db:"department" json:"department"`
	CourseNumber string    `db:"course_number" json:"course_number"`
	FullName     string    `db:"full_name" json:"full_name"`
	GradingType  string    `db:"grading_type" json:"grading_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Meta Metadata `db:"-" json:"meta,omitempty"`
}

// Section belongs to exactly one course and one semester. TargetID is set
// once a target-system entity exists; clearing it forces re-creation on the
// next manifest.
type Section struct {
	ID         string        `db:"id" json:"id"`
	CourseID   string        `db:"course_id" json:"course_id"`
	SemesterID string        `db:"semester_id" json:"semester_id"`
	SecNumber  string        `db:"sec_number" json:"sec_number"`
	Status     SectionStatus `db:"status" json:"status"`
	TargetID   *string       `db:"target_id" json:"target_id,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`

	Meta Metadata `db:"-" json:"meta,omitempty"`
}

// SectionFilter constrains section listings.
type SectionFilter struct {
	CourseID   string
	SemesterID string
	Status     SectionStatus
	Department string
}
