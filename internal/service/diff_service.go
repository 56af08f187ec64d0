package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	"github.com/lsuits/ues-sync/internal/source"
	"github.com/lsuits/ues-sync/pkg/config"
)

type enrollmentStore interface {
	ListBySection(ctx context.Context, sectionID string, role models.EnrollmentRole) ([]models.Enrollment, error)
	Create(ctx context.Context, row *models.Enrollment) error
	UpdateStatus(ctx context.Context, row *models.Enrollment, status models.EnrollmentStatus) error
	CountBySectionStatus(ctx context.Context, sectionID string, role models.EnrollmentRole, statuses ...models.EnrollmentStatus) (int, error)
}

type userStore interface {
	FindByIDNumber(ctx context.Context, idnumber string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// DiffResult summarizes what one scope's diff changed.
type DiffResult struct {
	Confirmed int
	Created   int
	Released  int
}

// DiffService compares a freshly pulled roster against the stored rows for a
// section and converges stored state: confirmed rows stay or become
// PROCESSED, unknown users get new PROCESSED rows, and rows the source no
// longer reports are released.
type DiffService struct {
	enrollments enrollmentStore
	users       userStore
	defaults    config.UserDefaultsConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDiffService constructs DiffService.
func NewDiffService(enrollments enrollmentStore, users userStore, defaults config.UserDefaultsConfig, validate *validator.Validate, logger *zap.Logger) *DiffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiffService{enrollments: enrollments, users: users, defaults: defaults, validator: validate, logger: logger}
}

// rowKey is the dedup identity within a section. Primary participates only
// for teacher rows, so a primary-status flip matches a different key and the
// old row is released rather than mutated in place.
type rowKey struct {
	userID  string
	primary bool
}

// ApplySection diffs one section's roster for one role.
func (s *DiffService) ApplySection(ctx context.Context, rc *RunContext, section *models.Section, role models.EnrollmentRole, pulled []source.UserRecord) (DiffResult, error) {
	var result DiffResult

	current, err := s.enrollments.ListBySection(ctx, section.ID, role)
	if err != nil {
		return result, fmt.Errorf("load current rows: %w", err)
	}
	working := make(map[rowKey]*models.Enrollment, len(current))
	byUser := make(map[string]*models.Enrollment, len(current))
	for i := range current {
		row := &current[i]
		working[rowKey{userID: row.UserID, primary: row.Role == models.RoleTeacher && row.PrimaryFlag}] = row
		byUser[row.UserID] = row
	}

	for _, record := range pulled {
		if err := s.validator.Struct(record); err != nil {
			rc.Errorf("skipping invalid roster record (section %s): %v", section.SecNumber, err)
			continue
		}

		user, err := s.ResolveUser(ctx, rc, record)
		if err != nil {
			return result, fmt.Errorf("resolve user %s: %w", record.Username, err)
		}

		primary := role == models.RoleTeacher && record.PrimaryFlag
		key := rowKey{userID: user.ID, primary: primary}

		if row, ok := working[key]; ok {
			delete(working, key)
			if row.Status.Current() {
				result.Confirmed++
				continue
			}
			if err := s.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusProcessed); err != nil {
				return result, err
			}
			result.Confirmed++
			continue
		}

		if role == models.RoleTeacher {
			if prior, ok := byUser[user.ID]; ok && prior.PrimaryFlag != primary {
				rc.Emit(Event{Kind: EventPrimaryTeacherChanged, SectionID: section.ID, UserID: user.ID})
			}
		}

		row := &models.Enrollment{
			SectionID:   section.ID,
			UserID:      user.ID,
			Role:        role,
			PrimaryFlag: primary,
			Status:      models.EnrollmentStatusProcessed,
		}
		if err := s.enrollments.Create(ctx, row); err != nil {
			return result, err
		}
		result.Created++
	}

	for _, row := range working {
		released := row.Status.Released()
		if released == row.Status {
			continue
		}
		if err := s.enrollments.UpdateStatus(ctx, row, released); err != nil {
			return result, err
		}
		rc.MarkReleased(row.ID)
		result.Released++
		kind := EventStudentReleased
		if role == models.RoleTeacher {
			kind = EventTeacherReleased
		}
		rc.Emit(Event{Kind: kind, SectionID: section.ID, UserID: row.UserID})
	}

	return result, nil
}

// ResolveUser finds the local user for a roster record, matching by idnumber
// first and username second, creating one with configured defaults when
// neither matches. Stored identity fields are refreshed when they drift.
func (s *DiffService) ResolveUser(ctx context.Context, rc *RunContext, record source.UserRecord) (*models.User, error) {
	user, err := s.users.FindByIDNumber(ctx, record.IDNumber)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		user, err = s.users.FindByUsername(ctx, record.Username)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	if user == nil {
		user = &models.User{
			IDNumber:  record.IDNumber,
			Username:  record.Username,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			Email:     record.Email,
			City:      s.defaults.City,
			Country:   s.defaults.Country,
			Auth:      s.defaults.AuthMethod,
			Confirmed: s.defaults.Confirmed,
		}
		if user.Email == "" && s.defaults.EmailSuffix != "" {
			user.Email = record.Username + "@" + s.defaults.EmailSuffix
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		rc.Emit(Event{Kind: EventUserCreated, UserID: user.ID})
		return user, nil
	}

	changed := user.IDNumber != record.IDNumber ||
		user.Username != record.Username ||
		user.FirstName != record.FirstName ||
		user.LastName != record.LastName ||
		(record.Email != "" && user.Email != record.Email)
	if changed {
		user.IDNumber = record.IDNumber
		user.Username = record.Username
		user.FirstName = record.FirstName
		user.LastName = record.LastName
		if record.Email != "" {
			user.Email = record.Email
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		rc.Emit(Event{Kind: EventUserUpdated, UserID: user.ID})
	}
	return user, nil
}

// EvaluateSection applies the post-scope rule: a section is eligible for
// PROCESSED only with at least one PROCESSED/ENROLLED teacher; eligible
// sections get their leftover pending teachers promoted so a section is
// never manifested teacherless. A row the same run just released stays
// PENDING, otherwise a teacher drop would be undone before manifestation.
func (s *DiffService) EvaluateSection(ctx context.Context, rc *RunContext, sections sectionStore, section *models.Section) error {
	teachers, err := s.enrollments.CountBySectionStatus(ctx, section.ID, models.RoleTeacher,
		models.EnrollmentStatusProcessed, models.EnrollmentStatusEnrolled)
	if err != nil {
		return err
	}
	if teachers == 0 {
		rc.Logf("section %s has no active teachers; leaving %s", section.SecNumber, section.Status)
		return nil
	}

	rows, err := s.enrollments.ListBySection(ctx, section.ID, models.RoleTeacher)
	if err != nil {
		return err
	}
	for i := range rows {
		row := &rows[i]
		if row.Status != models.EnrollmentStatusPending || rc.ReleasedThisRun(row.ID) {
			continue
		}
		if err := s.enrollments.UpdateStatus(ctx, row, models.EnrollmentStatusProcessed); err != nil {
			return err
		}
	}

	if section.Status == models.SectionStatusProcessed {
		return nil
	}
	return sections.UpdateStatus(ctx, section, models.SectionStatusProcessed)
}
