package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
	"github.com/lsuits/ues-sync/pkg/metrics"
)

// Replayer re-runs a single scope of the reconciliation at the granularity an
// error record was captured at. Implemented by ReconcileService.
type Replayer interface {
	ReplayCourse(ctx context.Context, rc *RunContext, semesterID string) error
	ReplayDepartment(ctx context.Context, rc *RunContext, semesterID, department string) error
	ReplaySection(ctx context.Context, rc *RunContext, sectionID string) error
}

// CustomHandler retries an external hook invocation from its serialized
// arguments.
type CustomHandler func(ctx context.Context, rc *RunContext, args json.RawMessage) error

// ErrorQueueService persists scoped failures and replays them independently.
// Records are deleted only after a successful replay.
type ErrorQueueService struct {
	repo      errorStore
	threshold int
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu       sync.RWMutex
	handlers map[string]CustomHandler
}

// NewErrorQueueService constructs ErrorQueueService.
func NewErrorQueueService(repo errorStore, threshold int, m *metrics.Metrics, logger *zap.Logger) *ErrorQueueService {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorQueueService{
		repo:      repo,
		threshold: threshold,
		metrics:   m,
		logger:    logger,
		handlers:  map[string]CustomHandler{},
	}
}

// RegisterHandler makes a named custom handler available for replay dispatch.
func (s *ErrorQueueService) RegisterHandler(name string, handler CustomHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Enqueue captures a scoped failure. The run continues; the record waits for
// replay.
func (s *ErrorQueueService) Enqueue(ctx context.Context, rc *RunContext, kind models.ErrorKind, params interface{}, cause error) {
	raw, err := json.Marshal(params)
	if err != nil {
		rc.Errorf("cannot serialize %s error params: %v", kind, err)
		return
	}
	record := &models.ErrorRecord{Kind: kind, Params: raw, Message: cause.Error()}
	if err := s.repo.Create(ctx, record); err != nil {
		rc.Errorf("cannot enqueue %s error: %v", kind, err)
		return
	}
	rc.Run.ErrorsQueued++
	s.metrics.ErrorsQueued.WithLabelValues(string(kind)).Inc()
	rc.Errorf("%s scope failed, queued for replay: %v", kind, cause)
}

// CaptureHook runs an external hook, converting a failure into a CUSTOM
// error record carrying the handler name and serialized arguments. The hook
// must be registered for later replay.
func (s *ErrorQueueService) CaptureHook(ctx context.Context, rc *RunContext, name string, args json.RawMessage) {
	s.mu.RLock()
	handler, ok := s.handlers[name]
	s.mu.RUnlock()
	if !ok {
		rc.Errorf("unknown hook %q", name)
		return
	}
	if err := handler(ctx, rc, args); err != nil {
		s.Enqueue(ctx, rc, models.ErrorKindCustom, models.CustomErrorParams{Handler: name, Args: args}, err)
	}
}

// List exposes the queued records for the ops surface.
func (s *ErrorQueueService) List(ctx context.Context, filter models.ErrorFilter) ([]models.ErrorRecord, error) {
	return s.repo.List(ctx, filter)
}

// Find loads one record.
func (s *ErrorQueueService) Find(ctx context.Context, id string) (*models.ErrorRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "error record not found")
		}
		return nil, err
	}
	return record, nil
}

// Discard drops a record without replaying it.
func (s *ErrorQueueService) Discard(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Replay dispatches a record back into the orchestrator at its captured
// granularity and deletes it on success. A failed replay leaves the record
// queued.
func (s *ErrorQueueService) Replay(ctx context.Context, rc *RunContext, record *models.ErrorRecord, replayer Replayer) error {
	var err error
	switch record.Kind {
	case models.ErrorKindCourse:
		var params models.CourseErrorParams
		if err = json.Unmarshal(record.Params, &params); err == nil {
			err = replayer.ReplayCourse(ctx, rc, params.SemesterID)
		}
	case models.ErrorKindDepartment:
		var params models.DepartmentErrorParams
		if err = json.Unmarshal(record.Params, &params); err == nil {
			err = replayer.ReplayDepartment(ctx, rc, params.SemesterID, params.Department)
		}
	case models.ErrorKindSection:
		var params models.SectionErrorParams
		if err = json.Unmarshal(record.Params, &params); err == nil {
			err = replayer.ReplaySection(ctx, rc, params.SectionID)
		}
	case models.ErrorKindCustom:
		var params models.CustomErrorParams
		if err = json.Unmarshal(record.Params, &params); err == nil {
			s.mu.RLock()
			handler, ok := s.handlers[params.Handler]
			s.mu.RUnlock()
			if !ok {
				err = fmt.Errorf("no handler registered for %q", params.Handler)
			} else {
				err = handler(ctx, rc, params.Args)
			}
		}
	default:
		err = fmt.Errorf("unknown error kind %q", record.Kind)
	}

	if err != nil {
		s.metrics.ErrorsReplayed.WithLabelValues(string(record.Kind), "failed").Inc()
		return fmt.Errorf("replay %s error %s: %w", record.Kind, record.ID, err)
	}
	if err := s.repo.Delete(ctx, record.ID); err != nil {
		return err
	}
	s.metrics.ErrorsReplayed.WithLabelValues(string(record.Kind), "succeeded").Inc()
	return nil
}

// ReplayOutstanding re-runs every queued record unless the backlog exceeds
// the configured threshold, in which case an operator alert is raised and
// nothing is replayed automatically.
func (s *ErrorQueueService) ReplayOutstanding(ctx context.Context, rc *RunContext, replayer Replayer) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	if s.threshold > 0 && count > s.threshold {
		rc.Errorf("%d queued errors exceed threshold %d; automatic replay skipped", count, s.threshold)
		rc.Emit(Event{Kind: EventErrorThresholdReached, Detail: fmt.Sprintf("%d queued", count)})
		return nil
	}

	records, err := s.repo.List(ctx, models.ErrorFilter{})
	if err != nil {
		return err
	}
	for i := range records {
		if err := s.Replay(ctx, rc, &records[i], replayer); err != nil {
			rc.Errorf("automatic replay failed: %v", err)
		}
	}
	return nil
}
