package models

import "time"

// Semester models an academic term as reported by the roster source.
// Identity is (year, name, campus, session_key).
type Semester struct {
	ID           string     `db:"id" json:"id"`
	Year         int        `db:"year" json:"year"`
	Name         string     `db:"name" json:"name"`
	Campus       string     `db:"campus" json:"campus"`
	SessionKey   string     `db:"session_key" json:"session_key"`
	ClassesStart time.Time  `db:"classes_start" json:"classes_start"`
	GradesDue    *time.Time `db:"grades_due" json:"grades_due,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Meta Metadata `db:"-" json:"meta,omitempty"`
}

// InSession reports whether the semester is active at the given instant.
// A missing grades-due date keeps the semester open indefinitely.
func (s *Semester) InSession(now time.Time) bool {
	if now.Before(s.ClassesStart) {
		return false
	}
	if s.GradesDue == nil {
		return true
	}
	return !now.After(*s.GradesDue)
}

// SemesterFilter constrains semester listings.
type SemesterFilter struct {
	Year       int
	Name       string
	Campus     string
	SessionKey string
}
