package models

import "sort"

// EntityKind is the closed set of record kinds the store understands.
type EntityKind string

const (
	KindSemester   EntityKind = "semester"
	KindCourse     EntityKind = "course"
	KindSection    EntityKind = "section"
	KindTeacher    EntityKind = "teacher"
	KindStudent    EntityKind = "student"
	KindUser       EntityKind = "user"
	KindError      EntityKind = "error"
	KindRun        EntityKind = "run"
)

// EntityInfo describes how a kind maps onto storage. Teacher and student
// rows share the enrollments table, split by the role column.
type EntityInfo struct {
	Table     string
	MetaTable string
	// RoleValue is non-empty for kinds that are a role-scoped view of the
	// enrollments table.
	RoleValue EnrollmentRole
}

var entityRegistry = map[EntityKind]EntityInfo{
	KindSemester: {Table: "semesters", MetaTable: "semester_meta"},
	KindCourse:   {Table: "courses", MetaTable: "course_meta"},
	KindSection:  {Table: "sections", MetaTable: "section_meta"},
	KindTeacher:  {Table: "enrollments", MetaTable: "enrollment_meta", RoleValue: RoleTeacher},
	KindStudent:  {Table: "enrollments", MetaTable: "enrollment_meta", RoleValue: RoleStudent},
	KindUser:     {Table: "users", MetaTable: "user_meta"},
	KindError:    {Table: "sync_errors"},
	KindRun:      {Table: "sync_runs"},
}

// Info returns the storage mapping for a kind. The bool is false for
// unregistered kinds.
func (k EntityKind) Info() (EntityInfo, bool) {
	info, ok := entityRegistry[k]
	return info, ok
}

// Kinds returns all registered kinds in stable order.
func Kinds() []EntityKind {
	out := make([]EntityKind, 0, len(entityRegistry))
	for k := range entityRegistry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Metadata is the typed name/value bag attached to an entity. It is persisted
// as parent-id-keyed rows in the kind's meta side table; the domain model only
// ever sees this map.
type Metadata map[string]string

// Clone returns a copy so callers can mutate without aliasing.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal compares two metadata bags.
func (m Metadata) Equal(other Metadata) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if other[k] != v {
			return false
		}
	}
	return true
}
