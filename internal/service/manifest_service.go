package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/internal/target"
	"github.com/lsuits/ues-sync/pkg/config"
	"github.com/lsuits/ues-sync/pkg/metrics"
)

// ManifestService materializes reconciled state at the enrollment target:
// PENDING sections are retired, PROCESSED sections get their course and
// group ensured and their rows enrolled or unenrolled per status.
type ManifestService struct {
	sections    sectionStore
	courses     courseStore
	enrollments enrollmentDetailStore
	target      target.EnrollmentTarget
	namer       *Namer
	roles       config.RoleConfig
	recover     bool
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewManifestService constructs ManifestService.
func NewManifestService(sections sectionStore, courses courseStore, enrollments enrollmentDetailStore, tgt target.EnrollmentTarget, namer *Namer, roles config.RoleConfig, recoverGrades bool, m *metrics.Metrics, logger *zap.Logger) *ManifestService {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestService{
		sections:    sections,
		courses:     courses,
		enrollments: enrollments,
		target:      tgt,
		namer:       namer,
		roles:       roles,
		recover:     recoverGrades,
		metrics:     m,
		logger:      logger,
	}
}

// ManifestSemester applies target-side changes for every section of a
// semester that reached a decision during the diff phase. Sections in the
// failed set are left exactly as they are: an errored pull must never retire
// a section.
func (m *ManifestService) ManifestSemester(ctx context.Context, rc *RunContext, semester *models.Semester, failed map[string]bool) error {
	pending, err := m.sections.List(ctx, models.SectionFilter{SemesterID: semester.ID, Status: models.SectionStatusPending})
	if err != nil {
		return fmt.Errorf("list pending sections: %w", err)
	}
	for i := range pending {
		if failed[pending[i].ID] {
			continue
		}
		if err := m.retireSection(ctx, rc, &pending[i]); err != nil {
			return err
		}
	}

	processed, err := m.sections.List(ctx, models.SectionFilter{SemesterID: semester.ID, Status: models.SectionStatusProcessed})
	if err != nil {
		return fmt.Errorf("list processed sections: %w", err)
	}
	for i := range processed {
		if failed[processed[i].ID] {
			continue
		}
		if err := m.manifestSection(ctx, rc, semester, &processed[i]); err != nil {
			return err
		}
	}
	return nil
}

// ManifestSection applies target-side changes for a single section. Used by
// error replay so one section can converge without a semester-wide pass.
func (m *ManifestService) ManifestSection(ctx context.Context, rc *RunContext, semester *models.Semester, section *models.Section) error {
	switch section.Status {
	case models.SectionStatusPending:
		return m.retireSection(ctx, rc, section)
	case models.SectionStatusProcessed:
		return m.manifestSection(ctx, rc, semester, section)
	default:
		return nil
	}
}

// retireSection unenrolls everything a dropped section still holds at the
// target, clears the target identifier so a reappearing section is recreated,
// and marks the section SKIPPED for this cycle.
func (m *ManifestService) retireSection(ctx context.Context, rc *RunContext, section *models.Section) error {
	var handle *target.CourseHandle
	if section.TargetID != nil {
		handle = &target.CourseHandle{ID: *section.TargetID}
	}

	for _, role := range []models.EnrollmentRole{models.RoleTeacher, models.RoleStudent} {
		rows, err := m.enrollments.ListBySection(ctx, section.ID, role)
		if err != nil {
			return err
		}
		for i := range rows {
			row := &rows[i]
			if row.Status == models.EnrollmentStatusUnenrolled {
				continue
			}
			if row.Status.Current() {
				if err := m.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusPending); err != nil {
					return err
				}
			}
			if handle != nil {
				if err := m.target.Unenroll(ctx, *handle, row.UserID, m.roleName(row)); err != nil {
					rc.Errorf("unenroll %s from dropped section %s: %v", row.UserID, section.SecNumber, err)
					continue
				}
			}
			if err := m.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusUnenrolled); err != nil {
				return err
			}
			rc.Run.UnenrollsApplied++
			m.metrics.Releases.WithLabelValues(string(role)).Inc()
		}
	}

	if section.TargetID != nil {
		if err := m.sections.SetTargetID(ctx, section, nil); err != nil {
			return err
		}
	}
	if err := m.sections.UpdateStatus(ctx, section, models.SectionStatusSkipped); err != nil {
		return err
	}
	rc.Run.SectionsSkipped++
	m.metrics.SectionsSkipped.Inc()
	rc.Emit(Event{Kind: EventSectionDropped, SectionID: section.ID, CourseID: section.CourseID, SemesterID: section.SemesterID})

	return m.checkCourseSevered(ctx, rc, section)
}

// checkCourseSevered emits course_severed when the dropped section was the
// last one keeping the course alive at the target.
func (m *ManifestService) checkCourseSevered(ctx context.Context, rc *RunContext, dropped *models.Section) error {
	siblings, err := m.sections.List(ctx, models.SectionFilter{CourseID: dropped.CourseID})
	if err != nil {
		return err
	}
	for i := range siblings {
		if siblings[i].ID != dropped.ID && siblings[i].TargetID != nil {
			return nil
		}
	}
	rc.Emit(Event{Kind: EventCourseSevered, CourseID: dropped.CourseID})
	return nil
}

func (m *ManifestService) manifestSection(ctx context.Context, rc *RunContext, semester *models.Semester, section *models.Section) error {
	course, err := m.courses.FindByID(ctx, section.CourseID)
	if err != nil {
		return fmt.Errorf("load course for section %s: %w", section.SecNumber, err)
	}

	spec := target.CourseSpec{
		Shortname: m.namer.Shortname(semester, course),
		Fullname:  m.namer.Fullname(semester, course),
		IDNumber:  m.namer.Shortname(semester, course),
		Visible:   true,
	}
	handle, err := m.target.EnsureCourse(ctx, spec)
	if err != nil {
		rc.Errorf("ensure course %s: %v", spec.Shortname, err)
		return nil
	}
	if section.TargetID == nil {
		if err := m.sections.SetTargetID(ctx, section, &handle.ID); err != nil {
			return err
		}
		rc.Emit(Event{Kind: EventCourseCreated, CourseID: course.ID, SectionID: section.ID, Detail: spec.Shortname})
	}

	group, err := m.target.EnsureGroup(ctx, handle, m.namer.GroupName(course, section))
	if err != nil {
		rc.Errorf("ensure group for section %s: %v", section.SecNumber, err)
		return nil
	}

	for _, role := range []models.EnrollmentRole{models.RoleTeacher, models.RoleStudent} {
		if err := m.applyRows(ctx, rc, section, handle, group, role); err != nil {
			return err
		}
	}

	teachers, err := m.enrollments.CountBySectionStatus(ctx, section.ID, models.RoleTeacher, models.EnrollmentStatusEnrolled)
	if err != nil {
		return err
	}
	students, err := m.enrollments.CountBySectionStatus(ctx, section.ID, models.RoleStudent, models.EnrollmentStatusEnrolled)
	if err != nil {
		return err
	}
	if teachers+students == 0 {
		rc.Emit(Event{Kind: EventGroupEmptied, SectionID: section.ID, Detail: group.Name})
	}

	if err := m.sections.UpdateStatus(ctx, section, models.SectionStatusManifested); err != nil {
		return err
	}
	rc.Run.SectionsProcessed++
	m.metrics.SectionsProcessed.Inc()
	rc.Emit(Event{Kind: EventSectionProcessed, SectionID: section.ID, CourseID: course.ID, SemesterID: semester.ID})
	return nil
}

func (m *ManifestService) applyRows(ctx context.Context, rc *RunContext, section *models.Section, handle target.CourseHandle, group target.GroupHandle, role models.EnrollmentRole) error {
	releases, err := m.enrollments.ListDetailBySection(ctx, section.ID, role, models.EnrollmentStatusPending)
	if err != nil {
		return err
	}
	for i := range releases {
		row := &releases[i].Enrollment
		if err := m.target.Unenroll(ctx, handle, row.UserID, m.roleName(row)); err != nil {
			rc.Errorf("unenroll %s from section %s: %v", releases[i].Username, section.SecNumber, err)
			continue
		}
		if err := m.target.RemoveGroupMember(ctx, group, row.UserID); err != nil {
			rc.Errorf("remove %s from group %s: %v", releases[i].Username, group.Name, err)
		}
		if err := m.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusUnenrolled); err != nil {
			return err
		}
		rc.Run.UnenrollsApplied++
		m.metrics.Releases.WithLabelValues(string(role)).Inc()
	}

	additions, err := m.enrollments.ListDetailBySection(ctx, section.ID, role, models.EnrollmentStatusProcessed)
	if err != nil {
		return err
	}
	for i := range additions {
		row := &additions[i].Enrollment
		opts := target.EnrollOptions{RecoverGrades: m.recover}
		if err := m.target.Enroll(ctx, handle, row.UserID, m.roleName(row), opts); err != nil {
			rc.Errorf("enroll %s in section %s: %v", additions[i].Username, section.SecNumber, err)
			continue
		}
		if err := m.target.AddGroupMember(ctx, group, row.UserID); err != nil {
			rc.Errorf("add %s to group %s: %v", additions[i].Username, group.Name, err)
		}
		if err := m.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusEnrolled); err != nil {
			return err
		}
		rc.Run.EnrollsApplied++
		m.metrics.Enrollments.WithLabelValues(string(role)).Inc()
		kind := EventStudentEnrolled
		if role == models.RoleTeacher {
			kind = EventTeacherEnrolled
		}
		rc.Emit(Event{Kind: kind, SectionID: section.ID, UserID: row.UserID})
	}
	return nil
}

func (m *ManifestService) roleName(row *models.Enrollment) string {
	if row.Role == models.RoleTeacher {
		if row.PrimaryFlag {
			return m.roles.PrimaryTeacher
		}
		return m.roles.SecondaryTeacher
	}
	return m.roles.Student
}
