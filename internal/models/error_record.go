package models

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies a queued reconciliation failure by the granularity at
// which it can be replayed.
type ErrorKind string

const (
	ErrorKindCourse     ErrorKind = "COURSE"
	ErrorKindDepartment ErrorKind = "DEPARTMENT"
	ErrorKindSection    ErrorKind = "SECTION"
	ErrorKindCustom     ErrorKind = "CUSTOM"
)

// ErrorRecord captures a non-fatal failure with enough serialized context to
// replay the exact scope that failed. Deleted only after a successful replay.
type ErrorRecord struct {
	ID        string    `db:"id" json:"id"`
	Kind      ErrorKind `db:"kind" json:"kind"`
	Params    []byte    `db:"params" json:"params"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseErrorParams identifies a semester whose course pull failed.
type CourseErrorParams struct {
	SemesterID string `json:"semester_id"`
}

// DepartmentErrorParams identifies a (semester, department) roster pull.
type DepartmentErrorParams struct {
	SemesterID string `json:"semester_id"`
	Department string `json:"department"`
}

// SectionErrorParams identifies a single section roster pull.
type SectionErrorParams struct {
	SectionID string `json:"section_id"`
}

// CustomErrorParams carries a registered handler name and its arguments so an
// external hook failure can be retried without reimplementing its logic.
type CustomErrorParams struct {
	Handler string          `json:"handler"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// ErrorFilter constrains error listings.
type ErrorFilter struct {
	Kind   ErrorKind
	Before time.Time
	Limit  int
}
