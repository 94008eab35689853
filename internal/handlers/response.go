package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
)

type APIError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Envelope is the uniform response shape. Data and Error are mutually
// exclusive; ServerTimestamp lets offline clients re-anchor their clocks.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, Envelope{
		Success:   true,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, Envelope{
		Success:   false,
		Error:     &APIError{Code: code, Message: msg},
		Timestamp: time.Now().UTC(),
	})
}

// RespondServiceError maps the service sentinels onto statuses so handlers
// do not repeat the errors.Is ladder.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrForbidden):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, pkgerrors.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	case errors.Is(err, pkgerrors.ErrUnderflow):
		RespondError(c, http.StatusUnprocessableEntity, "insufficient_points", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
