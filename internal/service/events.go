package service

import "time"

// EventKind names a lifecycle notification point.
type EventKind string

const (
	EventSemesterProcessed     EventKind = "semester_processed"
	EventCourseProcessed       EventKind = "course_processed"
	EventSectionProcessed      EventKind = "section_processed"
	EventSectionDropped        EventKind = "section_dropped"
	EventTeacherEnrolled       EventKind = "teacher_enrolled"
	EventStudentEnrolled       EventKind = "student_enrolled"
	EventTeacherReleased       EventKind = "teacher_released"
	EventStudentReleased       EventKind = "student_released"
	EventPrimaryTeacherChanged EventKind = "primary_teacher_changed"
	EventGroupEmptied          EventKind = "group_emptied"
	EventCourseCreated         EventKind = "course_created"
	EventCourseSevered         EventKind = "course_severed"
	EventUserCreated           EventKind = "user_created"
	EventUserUpdated           EventKind = "user_updated"
	EventErrorThresholdReached EventKind = "error_threshold_reached"
)

// Event is a fire-and-forget lifecycle notification. Subscribers see a
// snapshot of the identifiers involved; no return value is consumed.
type Event struct {
	Kind       EventKind
	At         time.Time
	SemesterID string
	CourseID   string
	SectionID  string
	UserID     string
	Detail     string
}

// Observer receives lifecycle events synchronously. A panicking observer is
// recovered and logged; it never aborts the run.
type Observer func(Event)
