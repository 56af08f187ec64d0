package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lsuits/ues-sync/internal/models"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
	"github.com/lsuits/ues-sync/pkg/jobs"
	"github.com/lsuits/ues-sync/pkg/response"
)

type runHistory interface {
	Latest(ctx context.Context) (*models.Run, error)
}

// SyncHandler exposes run control endpoints. Runs execute on the background
// queue; the endpoint only admits the request.
type SyncHandler struct {
	runs   runHistory
	queue  *jobs.Queue[SyncJob]
	logger *zap.Logger
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(runs runHistory, queue *jobs.Queue[SyncJob], logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{runs: runs, queue: queue, logger: logger}
}

// Trigger enqueues a reconciliation run.
func (h *SyncHandler) Trigger(c *gin.Context) {
	force := c.Query("force") == "true"

	job := jobs.Job[SyncJob]{
		ID:      uuid.NewString(),
		Payload: SyncJob{Kind: JobRun, Force: force},
	}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, "cannot enqueue run"))
		return
	}
	h.logger.Info("run enqueued", zap.String("job_id", job.ID), zap.Bool("force", force))
	response.Accepted(c, gin.H{"job_id": job.ID, "force": force})
}

// Latest returns the most recent run record.
func (h *SyncHandler) Latest(c *gin.Context) {
	run, err := h.runs.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if run == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no runs recorded yet"))
		return
	}
	response.JSON(c, http.StatusOK, run)
}
