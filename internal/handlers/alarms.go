package handlers

import (
	"net/http"

	"vapor_recovery/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      List alarms
// @Description  Every configured alarm with its state; ?active=true keeps only active ones
// @Tags         alarms
// @Produce      json
// @Param        active  query     bool  false  "Only active alarms"
// @Success      200     {object}  map[string]interface{}  "count, alarms"
// @Router       /api/v1/alarms [get]
// @Security     BearerAuth
func (h *Handler) listAlarms(c *gin.Context) {
	alarms := h.services.Alarms()
	if c.Query("active") == "true" {
		alarms = h.services.ActiveAlarms()
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alarms),
		"alarms": alarms,
	})
}

// @Summary      Acknowledge an active alarm
// @Tags         alarms
// @Produce      json
// @Param        kind  path      string  true  "Alarm kind"  example(over_pressure)
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/alarms/{kind}/ack [post]
// @Security     BearerAuth
func (h *Handler) ackAlarm(c *gin.Context) {
	kind := models.AlarmKind(c.Param("kind"))
	if err := h.services.AcknowledgeAlarm(kind); err != nil {
		h.respondError(c, "failed to acknowledge alarm", "alarm_ack_failed", err, "kind", kind)
		return
	}
	if h.log != nil {
		operator, _ := c.Get(operatorCtxKey)
		h.log.Infow("alarm_ack_http", "kind", kind, "operator", operator)
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "kind": kind})
}

// @Summary      Shutdown timers
// @Tags         alarms
// @Produce      json
// @Success      200  {array}  models.ShutdownTimer
// @Router       /api/v1/shutdown [get]
// @Security     BearerAuth
func (h *Handler) getShutdownTimers(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.ShutdownTimers())
}
