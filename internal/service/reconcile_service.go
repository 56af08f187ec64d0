package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/internal/source"
	"github.com/lsuits/ues-sync/pkg/config"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
	"github.com/lsuits/ues-sync/pkg/metrics"
)

// ReconcileService drives a full reconciliation pass: pull semesters, pull
// courses and sections per in-session semester, pull rosters per scope, diff,
// evaluate, then manifest. A failure inside any one scope enqueues a typed
// error record and the run moves on; nothing escapes a scope boundary.
type ReconcileService struct {
	src       source.RosterSource
	semesters semesterStore
	courses   courseStore
	sections  sectionStore
	diff      *DiffService
	manifest  *ManifestService
	errors    *ErrorQueueService
	guard     *GuardService
	cfg       config.SyncConfig
	metrics   *metrics.Metrics
	validator *validator.Validate
	logger    *zap.Logger
	observers []Observer
}

// NewReconcileService constructs ReconcileService.
func NewReconcileService(src source.RosterSource, semesters semesterStore, courses courseStore, sections sectionStore, diff *DiffService, manifest *ManifestService, errorQueue *ErrorQueueService, guard *GuardService, cfg config.SyncConfig, m *metrics.Metrics, validate *validator.Validate, logger *zap.Logger) *ReconcileService {
	if m == nil {
		m = metrics.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		src:       src,
		semesters: semesters,
		courses:   courses,
		sections:  sections,
		diff:      diff,
		manifest:  manifest,
		errors:    errorQueue,
		guard:     guard,
		cfg:       cfg,
		metrics:   m,
		validator: validate,
		logger:    logger,
	}
}

// Subscribe appends a lifecycle observer. Not safe to call once a run has
// started.
func (s *ReconcileService) Subscribe(observer Observer) {
	s.observers = append(s.observers, observer)
}

// Run executes one reconciliation pass, guarded against concurrent runs.
func (s *ReconcileService) Run(ctx context.Context, force bool) (*models.Run, error) {
	if s.src == nil {
		return nil, appErrors.ErrProviderUnavailable
	}
	if !s.src.SupportsSectionLookups() && !s.src.SupportsDepartmentLookups() {
		return nil, appErrors.ErrNoLookupCapability
	}

	run, err := s.guard.Acquire(ctx, force)
	if err != nil {
		return nil, err
	}
	rc := NewRunContext(run, s.logger, s.observers)

	start := time.Now()
	outcome := models.RunStatusSucceeded
	execErr := s.execute(ctx, rc)
	if execErr != nil {
		outcome = models.RunStatusFailed
		rc.Errorf("run aborted: %v", execErr)
	}

	s.metrics.RunsTotal.WithLabelValues(strings.ToLower(string(outcome))).Inc()
	s.metrics.RunDuration.Observe(time.Since(start).Seconds())

	if err := s.guard.Release(ctx, run, outcome, rc.LogTail()); err != nil {
		rc.Errorf("failed to close run record: %v", err)
	}
	return run, execErr
}

func (s *ReconcileService) execute(ctx context.Context, rc *RunContext) error {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -s.cfg.SubDays)

	records, err := s.src.Semesters(ctx, since)
	if err != nil {
		return fmt.Errorf("pull semesters: %w", err)
	}

	var inSession []semesterScope
	for _, record := range records {
		if record.ClassesStart.IsZero() {
			rc.Logf("semester %d %s %s has no start date, skipping", record.Year, record.Name, record.Campus)
			continue
		}
		if err := s.validator.Struct(record); err != nil {
			rc.Errorf("invalid semester record: %v", err)
			continue
		}

		semester := &models.Semester{
			Year:         record.Year,
			Name:         record.Name,
			Campus:       record.Campus,
			SessionKey:   record.SessionKey,
			ClassesStart: record.ClassesStart,
			GradesDue:    record.GradesDue,
		}
		semester, err := s.semesters.Upsert(ctx, semester)
		if err != nil {
			return fmt.Errorf("upsert semester: %w", err)
		}
		rc.Emit(Event{Kind: EventSemesterProcessed, SemesterID: semester.ID})

		if semester.InSession(now) {
			inSession = append(inSession, semesterScope{record: record, semester: semester})
		}
	}

	rc.Run.SemestersSeen = len(inSession)
	s.metrics.SemestersInFlight.Set(float64(len(inSession)))
	rc.Logf("%d in-session semesters", len(inSession))

	for _, scope := range inSession {
		s.processSemester(ctx, rc, scope.record, scope.semester)
	}

	return s.errors.ReplayOutstanding(ctx, rc, s)
}

type semesterScope struct {
	record   source.SemesterRecord
	semester *models.Semester
}

// processSemester pulls a semester's catalog and rosters. Scope failures are
// enqueued, never propagated.
func (s *ReconcileService) processSemester(ctx context.Context, rc *RunContext, record source.SemesterRecord, semester *models.Semester) {
	courseRecords, err := s.src.Courses(ctx, record)
	if err != nil {
		s.errors.Enqueue(ctx, rc, models.ErrorKindCourse, models.CourseErrorParams{SemesterID: semester.ID}, err)
		return
	}

	catalog, err := s.upsertCatalog(ctx, rc, semester, courseRecords)
	if err != nil {
		s.errors.Enqueue(ctx, rc, models.ErrorKindCourse, models.CourseErrorParams{SemesterID: semester.ID}, err)
		return
	}

	touched := map[string]bool{}
	failed := map[string]bool{}

	useDepartments := s.src.SupportsDepartmentLookups() &&
		(s.cfg.ProcessByDepartment || !s.src.SupportsSectionLookups())
	if useDepartments {
		departments, err := s.courses.Departments(ctx, semester.ID)
		if err != nil {
			s.errors.Enqueue(ctx, rc, models.ErrorKindCourse, models.CourseErrorParams{SemesterID: semester.ID}, err)
			return
		}
		for _, department := range departments {
			if err := s.processDepartment(ctx, rc, record, semester, department, touched); err != nil {
				s.errors.Enqueue(ctx, rc, models.ErrorKindDepartment,
					models.DepartmentErrorParams{SemesterID: semester.ID, Department: department}, err)
				s.markDepartmentFailed(ctx, semester.ID, department, failed)
			}
		}
	} else {
		for _, entry := range catalog {
			if err := s.processSection(ctx, rc, record, entry.courseRecord, entry.sectionRecord, entry.section); err != nil {
				s.errors.Enqueue(ctx, rc, models.ErrorKindSection,
					models.SectionErrorParams{SectionID: entry.section.ID}, err)
				failed[entry.section.ID] = true
				continue
			}
			touched[entry.section.ID] = true
		}
	}

	if err := s.finishSemester(ctx, rc, semester, touched, failed); err != nil {
		s.errors.Enqueue(ctx, rc, models.ErrorKindCourse, models.CourseErrorParams{SemesterID: semester.ID}, err)
	}
}

// finishSemester releases untouched sections, runs post-scope evaluation, and
// manifests. Sections inside errored scopes are left exactly as they were:
// an errored fetch must never cause a release.
func (s *ReconcileService) finishSemester(ctx context.Context, rc *RunContext, semester *models.Semester, touched, failed map[string]bool) error {
	all, err := s.sections.List(ctx, models.SectionFilter{SemesterID: semester.ID})
	if err != nil {
		return err
	}

	for i := range all {
		section := &all[i]
		if touched[section.ID] || failed[section.ID] || section.Status == models.SectionStatusSkipped {
			continue
		}
		// Not reported by the source this run: release its roster and mark
		// it a drop candidate.
		if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleTeacher, nil); err != nil {
			return err
		}
		if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleStudent, nil); err != nil {
			return err
		}
		if section.Status != models.SectionStatusPending {
			if err := s.sections.UpdateStatus(ctx, section, models.SectionStatusPending); err != nil {
				return err
			}
		}
	}

	for i := range all {
		section := &all[i]
		if failed[section.ID] {
			continue
		}
		// A skipped section the source reports again is eligible to recover.
		if section.Status == models.SectionStatusSkipped && !touched[section.ID] {
			continue
		}
		if err := s.diff.EvaluateSection(ctx, rc, s.sections, section); err != nil {
			return err
		}
	}

	return s.manifest.ManifestSemester(ctx, rc, semester, failed)
}

type catalogEntry struct {
	courseRecord  source.CourseRecord
	sectionRecord source.SectionRecord
	section       *models.Section
}

func (s *ReconcileService) upsertCatalog(ctx context.Context, rc *RunContext, semester *models.Semester, courseRecords []source.CourseRecord) ([]catalogEntry, error) {
	var catalog []catalogEntry
	for _, courseRecord := range courseRecords {
		if err := s.validator.Struct(courseRecord); err != nil {
			rc.Errorf("invalid course record: %v", err)
			continue
		}
		course := &models.Course{
			Department:   courseRecord.Department,
			CourseNumber: courseRecord.CourseNumber,
			FullName:     courseRecord.FullName,
			GradingType:  courseRecord.GradingType,
		}
		course, err := s.courses.Upsert(ctx, course)
		if err != nil {
			return nil, err
		}
		rc.Emit(Event{Kind: EventCourseProcessed, CourseID: course.ID, SemesterID: semester.ID})

		for _, sectionRecord := range courseRecord.Sections {
			section := &models.Section{
				CourseID:   course.ID,
				SemesterID: semester.ID,
				SecNumber:  sectionRecord.SecNumber,
			}
			section, err := s.sections.Upsert(ctx, section)
			if err != nil {
				return nil, err
			}
			catalog = append(catalog, catalogEntry{courseRecord: courseRecord, sectionRecord: sectionRecord, section: section})
		}
	}
	return catalog, nil
}

// processSection pulls and diffs one section's teacher and student rosters.
func (s *ReconcileService) processSection(ctx context.Context, rc *RunContext, semester source.SemesterRecord, courseRecord source.CourseRecord, sectionRecord source.SectionRecord, section *models.Section) error {
	teachers, err := s.src.Teachers(ctx, semester, courseRecord, sectionRecord)
	if err != nil {
		return fmt.Errorf("pull teachers: %w", err)
	}
	students, err := s.src.Students(ctx, semester, courseRecord, sectionRecord)
	if err != nil {
		return fmt.Errorf("pull students: %w", err)
	}

	if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleTeacher, teachers); err != nil {
		return err
	}
	if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleStudent, students); err != nil {
		return err
	}
	return nil
}

// processDepartment pulls a whole department's rosters in two calls and fans
// the members out to their sections. Both dispatch paths converge to the
// same stored state.
func (s *ReconcileService) processDepartment(ctx context.Context, rc *RunContext, semester source.SemesterRecord, stored *models.Semester, department string, touched map[string]bool) error {
	ds, ok := s.src.(source.DepartmentSource)
	if !ok {
		return fmt.Errorf("provider advertises department lookups but does not implement them")
	}

	teachers, err := ds.TeachersByDepartment(ctx, semester, department)
	if err != nil {
		return fmt.Errorf("pull department teachers: %w", err)
	}
	students, err := ds.StudentsByDepartment(ctx, semester, department)
	if err != nil {
		return fmt.Errorf("pull department students: %w", err)
	}

	type scopeKey struct{ courseNumber, secNumber string }
	teacherRosters := map[scopeKey][]source.UserRecord{}
	for _, record := range teachers {
		key := scopeKey{record.CourseNumber, record.SecNumber}
		teacherRosters[key] = append(teacherRosters[key], record)
	}
	studentRosters := map[scopeKey][]source.UserRecord{}
	for _, record := range students {
		key := scopeKey{record.CourseNumber, record.SecNumber}
		studentRosters[key] = append(studentRosters[key], record)
	}

	sections, err := s.sections.List(ctx, models.SectionFilter{SemesterID: stored.ID, Department: department})
	if err != nil {
		return err
	}
	courseNumbers := map[string]string{}
	for i := range sections {
		section := &sections[i]
		number, ok := courseNumbers[section.CourseID]
		if !ok {
			course, err := s.courses.FindByID(ctx, section.CourseID)
			if err != nil {
				return err
			}
			number = course.CourseNumber
			courseNumbers[section.CourseID] = number
		}
		key := scopeKey{number, section.SecNumber}

		if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleTeacher, teacherRosters[key]); err != nil {
			return err
		}
		if _, err := s.diff.ApplySection(ctx, rc, section, models.RoleStudent, studentRosters[key]); err != nil {
			return err
		}
		touched[section.ID] = true
	}
	return nil
}

// markDepartmentFailed shields a department's sections from the untouched
// release pass after its pull errored.
func (s *ReconcileService) markDepartmentFailed(ctx context.Context, semesterID, department string, failed map[string]bool) {
	sections, err := s.sections.List(ctx, models.SectionFilter{SemesterID: semesterID, Department: department})
	if err != nil {
		s.logger.Error("cannot list failed department sections", zap.String("department", department), zap.Error(err))
		return
	}
	for i := range sections {
		failed[sections[i].ID] = true
	}
}

// RunHook invokes a registered external hook, capturing a failure as a
// replayable CUSTOM error record.
func (s *ReconcileService) RunHook(ctx context.Context, rc *RunContext, name string, args []byte) {
	s.errors.CaptureHook(ctx, rc, name, args)
}

// ReplayCourse re-pulls a semester's catalog and rosters. Used by error
// replay at COURSE granularity.
func (s *ReconcileService) ReplayCourse(ctx context.Context, rc *RunContext, semesterID string) error {
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		return fmt.Errorf("load semester %s: %w", semesterID, err)
	}
	record := semesterRecord(semester)

	courseRecords, err := s.src.Courses(ctx, record)
	if err != nil {
		return fmt.Errorf("pull courses: %w", err)
	}
	catalog, err := s.upsertCatalog(ctx, rc, semester, courseRecords)
	if err != nil {
		return err
	}

	touched := map[string]bool{}
	for _, entry := range catalog {
		if err := s.processSection(ctx, rc, record, entry.courseRecord, entry.sectionRecord, entry.section); err != nil {
			return err
		}
		touched[entry.section.ID] = true
	}
	return s.finishSemester(ctx, rc, semester, touched, map[string]bool{})
}

// ReplayDepartment re-pulls one department's rosters.
func (s *ReconcileService) ReplayDepartment(ctx context.Context, rc *RunContext, semesterID, department string) error {
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		return fmt.Errorf("load semester %s: %w", semesterID, err)
	}
	record := semesterRecord(semester)

	touched := map[string]bool{}
	if err := s.processDepartment(ctx, rc, record, semester, department, touched); err != nil {
		return err
	}

	sections, err := s.sections.List(ctx, models.SectionFilter{SemesterID: semester.ID, Department: department})
	if err != nil {
		return err
	}
	for i := range sections {
		section := &sections[i]
		if section.Status == models.SectionStatusSkipped {
			continue
		}
		if err := s.diff.EvaluateSection(ctx, rc, s.sections, section); err != nil {
			return err
		}
		if err := s.manifest.ManifestSection(ctx, rc, semester, section); err != nil {
			return err
		}
	}
	return nil
}

// ReplaySection re-pulls a single section's rosters, reapplies the diff, and
// manifests just that section.
func (s *ReconcileService) ReplaySection(ctx context.Context, rc *RunContext, sectionID string) error {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		return fmt.Errorf("load section %s: %w", sectionID, err)
	}
	course, err := s.courses.FindByID(ctx, section.CourseID)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	semester, err := s.semesters.FindByID(ctx, section.SemesterID)
	if err != nil {
		return fmt.Errorf("load semester: %w", err)
	}

	record := semesterRecord(semester)
	courseRecord := source.CourseRecord{
		Department:   course.Department,
		CourseNumber: course.CourseNumber,
		FullName:     course.FullName,
		GradingType:  course.GradingType,
	}
	sectionRecord := source.SectionRecord{SecNumber: section.SecNumber}

	if err := s.processSection(ctx, rc, record, courseRecord, sectionRecord, section); err != nil {
		return err
	}
	if err := s.diff.EvaluateSection(ctx, rc, s.sections, section); err != nil {
		return err
	}
	return s.manifest.ManifestSection(ctx, rc, semester, section)
}

func semesterRecord(semester *models.Semester) source.SemesterRecord {
	return source.SemesterRecord{
		Year:         semester.Year,
		Name:         semester.Name,
		Campus:       semester.Campus,
		SessionKey:   semester.SessionKey,
		ClassesStart: semester.ClassesStart,
		GradesDue:    semester.GradesDue,
	}
}
