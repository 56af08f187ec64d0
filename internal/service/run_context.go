package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
)

const logTailLimit = 200

// RunContext carries the per-run accumulators through the orchestrator call
// graph: the run record, the run-scoped log, and the observer list. It is
// created when the guard admits a run and torn down when the run finishes.
type RunContext struct {
	Run       *models.Run
	Logger    *zap.Logger
	observers []Observer
	lines     []string
	released  map[string]bool
}

// NewRunContext binds a run record to a logger and observer list.
func NewRunContext(run *models.Run, logger *zap.Logger, observers []Observer) *RunContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunContext{Run: run, Logger: logger, observers: observers, released: map[string]bool{}}
}

// MarkReleased records an enrollment row released during this run. Later
// evaluation must not promote a row the same run just released.
func (rc *RunContext) MarkReleased(rowID string) {
	rc.released[rowID] = true
}

// ReleasedThisRun reports whether a row was released earlier in this run.
func (rc *RunContext) ReleasedThisRun(rowID string) bool {
	return rc.released[rowID]
}

// Logf records an informational line in the run log.
func (rc *RunContext) Logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	rc.Logger.Info(line, zap.String("run_id", rc.Run.ID))
	rc.append(line)
}

// Errorf records an error line in the run log.
func (rc *RunContext) Errorf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	rc.Logger.Error(line, zap.String("run_id", rc.Run.ID))
	rc.append("ERROR " + line)
}

func (rc *RunContext) append(line string) {
	rc.lines = append(rc.lines, line)
	if len(rc.lines) > logTailLimit {
		rc.lines = rc.lines[len(rc.lines)-logTailLimit:]
	}
}

// LogTail returns the accumulated run log, newest lines last.
func (rc *RunContext) LogTail() string {
	return strings.Join(rc.lines, "\n")
}

// Emit delivers an event to every observer, recovering panics so a bad
// subscriber cannot abort the run.
func (rc *RunContext) Emit(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	for _, observer := range rc.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					rc.Logger.Warn("observer panicked", zap.Any("panic", r), zap.String("event", string(event.Kind)))
				}
			}()
			observer(event)
		}()
	}
}
