package models

// SectionStatus tracks a section through a reconciliation cycle.
type SectionStatus string

const (
	SectionStatusPending    SectionStatus = "PENDING"
	SectionStatusProcessed  SectionStatus = "PROCESSED"
	SectionStatusManifested SectionStatus = "MANIFESTED"
	SectionStatusSkipped    SectionStatus = "SKIPPED"
)

// sectionTransitions lists the legal section status moves. MANIFESTED and
// SKIPPED hold until the next pull re-evaluates the section.
var sectionTransitions = map[SectionStatus][]SectionStatus{
	SectionStatusPending:    {SectionStatusProcessed, SectionStatusSkipped},
	SectionStatusProcessed:  {SectionStatusManifested, SectionStatusPending},
	SectionStatusManifested: {SectionStatusProcessed, SectionStatusPending},
	SectionStatusSkipped:    {SectionStatusPending, SectionStatusProcessed},
}

// CanTransition reports whether a section may move from one status to another.
func (s SectionStatus) CanTransition(to SectionStatus) bool {
	for _, next := range sectionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// EnrollmentStatus tracks a teacher or student row through its lifecycle.
type EnrollmentStatus string

const (
	EnrollmentStatusPending    EnrollmentStatus = "PENDING"
	EnrollmentStatusProcessed  EnrollmentStatus = "PROCESSED"
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusUnenrolled EnrollmentStatus = "UNENROLLED"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusPending:    {EnrollmentStatusProcessed, EnrollmentStatusUnenrolled},
	EnrollmentStatusProcessed:  {EnrollmentStatusEnrolled, EnrollmentStatusPending},
	EnrollmentStatusEnrolled:   {EnrollmentStatusPending, EnrollmentStatusUnenrolled},
	EnrollmentStatusUnenrolled: {EnrollmentStatusProcessed},
}

// CanTransition reports whether an enrollment row may move between statuses.
func (s EnrollmentStatus) CanTransition(to EnrollmentStatus) bool {
	for _, next := range enrollmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Released returns the status an unconfirmed row takes when the source stops
// reporting it. A row that never reached the target goes straight to
// UNENROLLED; anything that may exist at the target goes to PENDING so the
// manifest pass can unenroll it.
func (s EnrollmentStatus) Released() EnrollmentStatus {
	switch s {
	case EnrollmentStatusPending:
		return EnrollmentStatusUnenrolled
	case EnrollmentStatusUnenrolled:
		return EnrollmentStatusUnenrolled
	default:
		return EnrollmentStatusPending
	}
}

// Current reports whether a row is already accounted for by a fresh pull and
// needs no rewrite.
func (s EnrollmentStatus) Current() bool {
	return s == EnrollmentStatusProcessed || s == EnrollmentStatusEnrolled
}
