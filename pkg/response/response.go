package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/lsuits/ues-sync/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Accepted responds with HTTP 202 Accepted.
func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(statusFor(appErr), Envelope{Error: appErr})
}

func statusFor(err *appErrors.Error) int {
	switch err.Code {
	case appErrors.ErrNotFound.Code:
		return http.StatusNotFound
	case appErrors.ErrValidation.Code:
		return http.StatusBadRequest
	case appErrors.ErrRunInProgress.Code, appErrors.ErrRunTooSoon.Code, appErrors.ErrRunDisabled.Code:
		return http.StatusConflict
	case appErrors.ErrProviderUnavailable.Code, appErrors.ErrNoLookupCapability.Code:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
