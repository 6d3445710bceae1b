package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToggleRequest switches a device feature on or off.
type ToggleRequest struct {
	On *bool `json:"on" binding:"required" example:"true"`
}

// @Summary      Request zero-point calibration
// @Tags         device
// @Produce      json
// @Success      202  {object}  map[string]string
// @Router       /api/v1/device/calibrate [post]
// @Security     BearerAuth
func (h *Handler) calibrate(c *gin.Context) {
	h.services.Calibrate(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

// @Summary      Toggle fast status polling
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "on/off"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/device/fast-poll [post]
// @Security     BearerAuth
func (h *Handler) setFastPoll(c *gin.Context) {
	var req ToggleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	h.services.SetFastPoll(c.Request.Context(), *req.On)
	c.JSON(http.StatusAccepted, gin.H{"status": "requested", "on": *req.On})
}

// @Summary      Enable or disable the device failsafe
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "on/off"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/device/failsafe [post]
// @Security     BearerAuth
func (h *Handler) setFailsafe(c *gin.Context) {
	var req ToggleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	h.services.SetFailsafe(c.Request.Context(), *req.On)
	c.JSON(http.StatusAccepted, gin.H{"status": "requested", "on": *req.On})
}

// LinkRequest lends the serial link out or takes it back.
type LinkRequest struct {
	Suspended *bool `json:"suspended" binding:"required" example:"true"`
}

// @Summary      Serial link state
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /api/v1/device/link [get]
// @Security     BearerAuth
func (h *Handler) getLink(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suspended": h.services.LinkSuspended()})
}

// @Summary      Suspend or resume the serial link
// @Description  While suspended no frames are sent and snapshots go stale.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      LinkRequest  true  "suspended"
// @Success      200   {object}  map[string]bool
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/device/link [post]
// @Security     BearerAuth
func (h *Handler) setLink(c *gin.Context) {
	var req LinkRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	h.services.SetLinkSuspended(c.Request.Context(), *req.Suspended)
	c.JSON(http.StatusOK, gin.H{"suspended": h.services.LinkSuspended()})
}
