package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/internal/source"
	"github.com/lsuits/ues-sync/internal/target"
)

// In-memory fakes for the narrow store interfaces, shared by the service
// tests in this package.

type fakeSemesters struct {
	items []*models.Semester
}

func (f *fakeSemesters) Upsert(_ context.Context, semester *models.Semester) (*models.Semester, error) {
	for _, s := range f.items {
		if s.Year == semester.Year && s.Name == semester.Name && s.Campus == semester.Campus && s.SessionKey == semester.SessionKey {
			s.ClassesStart = semester.ClassesStart
			s.GradesDue = semester.GradesDue
			*semester = *s
			return s, nil
		}
	}
	semester.ID = fmt.Sprintf("sem-%d", len(f.items)+1)
	stored := *semester
	f.items = append(f.items, &stored)
	return semester, nil
}

func (f *fakeSemesters) FindByID(_ context.Context, id string) (*models.Semester, error) {
	for _, s := range f.items {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSemesters) List(_ context.Context, _ models.SemesterFilter) ([]models.Semester, error) {
	out := make([]models.Semester, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, *s)
	}
	return out, nil
}

type fakeCourses struct {
	items       []*models.Course
	departments map[string][]string
}

func (f *fakeCourses) Upsert(_ context.Context, course *models.Course) (*models.Course, error) {
	for _, c := range f.items {
		if c.Department == course.Department && c.CourseNumber == course.CourseNumber {
			c.FullName = course.FullName
			c.GradingType = course.GradingType
			*course = *c
			return c, nil
		}
	}
	course.ID = fmt.Sprintf("course-%d", len(f.items)+1)
	stored := *course
	f.items = append(f.items, &stored)
	return course, nil
}

func (f *fakeCourses) FindByID(_ context.Context, id string) (*models.Course, error) {
	for _, c := range f.items {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourses) FindByIdentity(_ context.Context, department, courseNumber string) (*models.Course, error) {
	for _, c := range f.items {
		if c.Department == department && c.CourseNumber == courseNumber {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourses) Departments(_ context.Context, semesterID string) ([]string, error) {
	if f.departments != nil {
		return f.departments[semesterID], nil
	}
	seen := map[string]bool{}
	var out []string
	for _, c := range f.items {
		if !seen[c.Department] {
			seen[c.Department] = true
			out = append(out, c.Department)
		}
	}
	return out, nil
}

type fakeSections struct {
	items []*models.Section
	// department per course id, for SectionFilter.Department
	courseDepartments map[string]string
}

func (f *fakeSections) Upsert(_ context.Context, section *models.Section) (*models.Section, error) {
	for _, s := range f.items {
		if s.CourseID == section.CourseID && s.SemesterID == section.SemesterID && s.SecNumber == section.SecNumber {
			*section = *s
			return s, nil
		}
	}
	section.ID = fmt.Sprintf("sec-%d", len(f.items)+1)
	if section.Status == "" {
		section.Status = models.SectionStatusPending
	}
	stored := *section
	f.items = append(f.items, &stored)
	return section, nil
}

func (f *fakeSections) FindByID(_ context.Context, id string) (*models.Section, error) {
	for _, s := range f.items {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSections) List(_ context.Context, filter models.SectionFilter) ([]models.Section, error) {
	var out []models.Section
	for _, s := range f.items {
		if filter.CourseID != "" && s.CourseID != filter.CourseID {
			continue
		}
		if filter.SemesterID != "" && s.SemesterID != filter.SemesterID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Department != "" && f.courseDepartments[s.CourseID] != filter.Department {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSections) UpdateStatus(_ context.Context, section *models.Section, status models.SectionStatus) error {
	if section.Status == status {
		return nil
	}
	if !section.Status.CanTransition(status) {
		return fmt.Errorf("illegal section transition %s -> %s", section.Status, status)
	}
	for _, s := range f.items {
		if s.ID == section.ID {
			s.Status = status
		}
	}
	section.Status = status
	return nil
}

func (f *fakeSections) SetTargetID(_ context.Context, section *models.Section, targetID *string) error {
	for _, s := range f.items {
		if s.ID == section.ID {
			s.TargetID = targetID
		}
	}
	section.TargetID = targetID
	return nil
}

func (f *fakeSections) byID(id string) *models.Section {
	for _, s := range f.items {
		if s.ID == id {
			return s
		}
	}
	return nil
}

type fakeEnrollments struct {
	rows []*models.Enrollment
}

func (f *fakeEnrollments) ListBySection(_ context.Context, sectionID string, role models.EnrollmentRole) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, r := range f.rows {
		if r.SectionID == sectionID && r.Role == role {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeEnrollments) Create(_ context.Context, row *models.Enrollment) error {
	if row.ID == "" {
		row.ID = fmt.Sprintf("row-%d", len(f.rows)+1)
	}
	if row.Status == "" {
		row.Status = models.EnrollmentStatusProcessed
	}
	stored := *row
	f.rows = append(f.rows, &stored)
	return nil
}

func (f *fakeEnrollments) UpdateStatus(_ context.Context, row *models.Enrollment, status models.EnrollmentStatus) error {
	if row.Status == status {
		return nil
	}
	if !row.Status.CanTransition(status) {
		return fmt.Errorf("illegal enrollment transition %s -> %s", row.Status, status)
	}
	for _, r := range f.rows {
		if r.ID == row.ID {
			r.Status = status
		}
	}
	row.Status = status
	return nil
}

func (f *fakeEnrollments) CountBySectionStatus(_ context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) (int, error) {
	count := 0
	for _, r := range f.rows {
		if r.SectionID != sectionID || r.Role != role {
			continue
		}
		if len(statuses) == 0 {
			count++
			continue
		}
		for _, s := range statuses {
			if r.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

func (f *fakeEnrollments) ListDetailBySection(ctx context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	rows, err := f.ListBySection(ctx, sectionID, role)
	if err != nil {
		return nil, err
	}
	var out []models.EnrollmentDetail
	for _, r := range rows {
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if r.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, models.EnrollmentDetail{Enrollment: r, IDNumber: r.UserID, Username: r.UserID})
	}
	return out, nil
}

func (f *fakeEnrollments) statusOf(sectionID, userID string, role models.EnrollmentRole, primary bool) models.EnrollmentStatus {
	for _, r := range f.rows {
		if r.SectionID == sectionID && r.UserID == userID && r.Role == role && r.PrimaryFlag == primary {
			return r.Status
		}
	}
	return ""
}

type fakeUsers struct {
	items []*models.User
}

func (f *fakeUsers) FindByIDNumber(_ context.Context, idnumber string) (*models.User, error) {
	for _, u := range f.items {
		if u.IDNumber == idnumber {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.items {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(f.items)+1)
	}
	stored := *user
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *models.User) error {
	for i, u := range f.items {
		if u.ID == user.ID {
			stored := *user
			f.items[i] = &stored
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeRuns struct {
	items []*models.Run
}

func (f *fakeRuns) Create(_ context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = fmt.Sprintf("run-%d", len(f.items)+1)
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	stored := *run
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, run *models.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	for i, r := range f.items {
		if r.ID == run.ID {
			stored := *run
			f.items[i] = &stored
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeRuns) Latest(_ context.Context) (*models.Run, error) {
	if len(f.items) == 0 {
		return nil, nil
	}
	latest := f.items[0]
	for _, r := range f.items[1:] {
		if r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	copied := *latest
	return &copied, nil
}

type fakeErrorStore struct {
	records []*models.ErrorRecord
	nextID  int
}

func (f *fakeErrorStore) Create(_ context.Context, record *models.ErrorRecord) error {
	f.nextID++
	if record.ID == "" {
		record.ID = fmt.Sprintf("err-%d", f.nextID)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	stored := *record
	f.records = append(f.records, &stored)
	return nil
}

func (f *fakeErrorStore) FindByID(_ context.Context, id string) (*models.ErrorRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeErrorStore) List(_ context.Context, filter models.ErrorFilter) ([]models.ErrorRecord, error) {
	var out []models.ErrorRecord
	for _, r := range f.records {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeErrorStore) Count(_ context.Context) (int, error) {
	return len(f.records), nil
}

func (f *fakeErrorStore) Delete(_ context.Context, id string) error {
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeSource is a scripted roster provider. Rosters are keyed by section
// number; error injection fields fail specific scopes.
type fakeSource struct {
	semesters []source.SemesterRecord
	courses   []source.CourseRecord

	teachers map[string][]source.UserRecord
	students map[string][]source.UserRecord

	semestersErr error
	coursesErr   error
	teachersErr  map[string]error

	departmentTeachers map[string][]source.UserRecord
	departmentStudents map[string][]source.UserRecord
	departmentErr      map[string]error

	sectionLookups    bool
	departmentLookups bool
}

func (f *fakeSource) Semesters(_ context.Context, _ time.Time) ([]source.SemesterRecord, error) {
	if f.semestersErr != nil {
		return nil, f.semestersErr
	}
	return f.semesters, nil
}

func (f *fakeSource) Courses(_ context.Context, _ source.SemesterRecord) ([]source.CourseRecord, error) {
	if f.coursesErr != nil {
		return nil, f.coursesErr
	}
	return f.courses, nil
}

func (f *fakeSource) Teachers(_ context.Context, _ source.SemesterRecord, _ source.CourseRecord, section source.SectionRecord) ([]source.UserRecord, error) {
	if err := f.teachersErr[section.SecNumber]; err != nil {
		return nil, err
	}
	return f.teachers[section.SecNumber], nil
}

func (f *fakeSource) Students(_ context.Context, _ source.SemesterRecord, _ source.CourseRecord, section source.SectionRecord) ([]source.UserRecord, error) {
	return f.students[section.SecNumber], nil
}

func (f *fakeSource) SupportsSectionLookups() bool    { return f.sectionLookups }
func (f *fakeSource) SupportsDepartmentLookups() bool { return f.departmentLookups }

func (f *fakeSource) TeachersByDepartment(_ context.Context, _ source.SemesterRecord, department string) ([]source.UserRecord, error) {
	if err := f.departmentErr[department]; err != nil {
		return nil, err
	}
	return f.departmentTeachers[department], nil
}

func (f *fakeSource) StudentsByDepartment(_ context.Context, _ source.SemesterRecord, department string) ([]source.UserRecord, error) {
	if err := f.departmentErr[department]; err != nil {
		return nil, err
	}
	return f.departmentStudents[department], nil
}

// fakeTarget records the enrollment state an EnrollmentTarget would hold.
type fakeTarget struct {
	courses map[string]string            // shortname -> handle id
	rolls   map[string]map[string]string // handle id -> user id -> role
	groups  map[string]map[string]bool   // group id -> user id -> member

	ensureCourseErr error
	enrollErr       error
	unenrollErr     error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		courses: map[string]string{},
		rolls:   map[string]map[string]string{},
		groups:  map[string]map[string]bool{},
	}
}

func (f *fakeTarget) EnsureCourse(_ context.Context, spec target.CourseSpec) (target.CourseHandle, error) {
	if f.ensureCourseErr != nil {
		return target.CourseHandle{}, f.ensureCourseErr
	}
	id, ok := f.courses[spec.Shortname]
	if !ok {
		id = fmt.Sprintf("tgt-%d", len(f.courses)+1)
		f.courses[spec.Shortname] = id
		f.rolls[id] = map[string]string{}
	}
	return target.CourseHandle{ID: id}, nil
}

func (f *fakeTarget) EnsureGroup(_ context.Context, course target.CourseHandle, name string) (target.GroupHandle, error) {
	id := course.ID + "/" + name
	if f.groups[id] == nil {
		f.groups[id] = map[string]bool{}
	}
	return target.GroupHandle{ID: id, CourseID: course.ID, Name: name}, nil
}

func (f *fakeTarget) Enroll(_ context.Context, course target.CourseHandle, userID, role string, _ target.EnrollOptions) error {
	if f.enrollErr != nil {
		return f.enrollErr
	}
	if f.rolls[course.ID] == nil {
		f.rolls[course.ID] = map[string]string{}
	}
	f.rolls[course.ID][userID] = role
	return nil
}

func (f *fakeTarget) Unenroll(_ context.Context, course target.CourseHandle, userID, _ string) error {
	if f.unenrollErr != nil {
		return f.unenrollErr
	}
	delete(f.rolls[course.ID], userID)
	return nil
}

func (f *fakeTarget) AddGroupMember(_ context.Context, group target.GroupHandle, userID string) error {
	if f.groups[group.ID] == nil {
		f.groups[group.ID] = map[string]bool{}
	}
	f.groups[group.ID][userID] = true
	return nil
}

func (f *fakeTarget) RemoveGroupMember(_ context.Context, group target.GroupHandle, userID string) error {
	delete(f.groups[group.ID], userID)
	return nil
}

func (f *fakeTarget) IsEnrolled(_ context.Context, course target.CourseHandle, userID string) (bool, error) {
	_, ok := f.rolls[course.ID][userID]
	return ok, nil
}

func testRunContext() *RunContext {
	return NewRunContext(&models.Run{ID: "run-test", StartedAt: time.Now().UTC()}, nil, nil)
}
