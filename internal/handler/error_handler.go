package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lsuits/ues-sync/internal/models"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
	"github.com/lsuits/ues-sync/pkg/jobs"
	"github.com/lsuits/ues-sync/pkg/response"
)

type errorQueue interface {
	List(ctx context.Context, filter models.ErrorFilter) ([]models.ErrorRecord, error)
	Find(ctx context.Context, id string) (*models.ErrorRecord, error)
	Discard(ctx context.Context, id string) error
}

// ErrorHandler exposes the error queue for operators: inspect the backlog,
// replay a record, or discard one.
type ErrorHandler struct {
	errors errorQueue
	queue  *jobs.Queue[SyncJob]
}

// NewErrorHandler constructs ErrorHandler.
func NewErrorHandler(errors errorQueue, queue *jobs.Queue[SyncJob]) *ErrorHandler {
	return &ErrorHandler{errors: errors, queue: queue}
}

// List returns queued error records, oldest first.
func (h *ErrorHandler) List(c *gin.Context) {
	filter := models.ErrorFilter{Kind: models.ErrorKind(c.Query("kind"))}
	records, err := h.errors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Replay enqueues a replay of one error record.
func (h *ErrorHandler) Replay(c *gin.Context) {
	id := c.Param("id")
	record, err := h.errors.Find(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	job := jobs.Job[SyncJob]{ID: uuid.NewString(), Payload: SyncJob{Kind: JobReplay, ErrorID: record.ID}}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, "cannot enqueue replay"))
		return
	}
	response.Accepted(c, gin.H{"job_id": job.ID, "error_id": record.ID})
}

// Discard deletes a record without replaying it.
func (h *ErrorHandler) Discard(c *gin.Context) {
	if err := h.errors.Discard(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
