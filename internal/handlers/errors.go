package handlers

import (
	"errors"
	"net/http"

	"vapor_recovery/internal/errs"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
)

// statusFor maps service sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrAlreadyRunning),
		errors.Is(err, errs.ErrLocked),
		errors.Is(err, errs.ErrShutdown),
		errors.Is(err, errs.ErrAlarmNotActive):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUnknownCycle),
		errors.Is(err, errs.ErrUnknownAlarm),
		errors.Is(err, errs.ErrUnknownProfile),
		errors.Is(err, errs.ErrNoExecution),
		errors.Is(err, errs.ErrNothingToResume):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTimeRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the failure and writes the mapped status. Internal errors
// are reported to the client with userMsg only.
func (h *Handler) respondError(c *gin.Context, userMsg, logKey string, err error, kv ...any) {
	code := statusFor(err)
	if h.log != nil {
		fields := append([]any{"err", err, "status", code}, kv...)
		if code >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	msg := userMsg
	if code < http.StatusInternalServerError {
		msg = err.Error()
	}
	c.JSON(code, gin.H{"error": msg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
