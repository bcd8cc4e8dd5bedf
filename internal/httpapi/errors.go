package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/neurorisk/internal/assessment"
	"github.com/Skufu/neurorisk/internal/session"
)

type errorResponse struct {
	Error   string                      `json:"error"`
	Message string                      `json:"message,omitempty"`
	Fields  assessment.ValidationResult `json:"fields,omitempty"`
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: message})
}

// writeError maps errors from the assessment package onto status codes.
func writeError(c *gin.Context, err error) {
	var verr *assessment.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation_failed",
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
	case errors.Is(err, assessment.ErrSubmitInFlight):
		abortJSON(c, http.StatusConflict, "submit_in_flight", assessment.UserMessage(err))
	case errors.Is(err, assessment.ErrPredictionUnavailable):
		abortJSON(c, http.StatusBadGateway, "prediction_unavailable", assessment.PredictionFailedMessage)
	case errors.Is(err, assessment.ErrUnknownField):
		abortJSON(c, http.StatusNotFound, "not_found", "unknown field")
	case errors.Is(err, assessment.ErrFormClosed):
		abortJSON(c, http.StatusNotFound, "not_found", "form closed")
	case errors.Is(err, assessment.ErrFormReset):
		abortJSON(c, http.StatusConflict, "form_reset", assessment.UserMessage(err))
	case errors.Is(err, session.ErrFull):
		c.Header("Retry-After", "60")
		abortJSON(c, http.StatusServiceUnavailable, "too_many_forms", "Too many open forms. Please try again later.")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		c.AbortWithStatus(499)
	default:
		_ = c.Error(err)
		abortJSON(c, http.StatusInternalServerError, "internal_error", assessment.UserMessage(err))
	}
}
