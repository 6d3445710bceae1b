package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProfileRequest selects a site profile.
type ProfileRequest struct {
	Name string `json:"name" binding:"required" example:"CS8"`
}

// @Summary      Commanded mode
// @Tags         status
// @Produce      json
// @Success      200  {object}  models.ModeStatus
// @Router       /api/v1/mode [get]
// @Security     BearerAuth
func (h *Handler) getMode(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Mode())
}

// @Summary      Latest sensor snapshot
// @Tags         status
// @Produce      json
// @Success      200  {object}  models.SensorSnapshot
// @Router       /api/v1/snapshot [get]
// @Security     BearerAuth
func (h *Handler) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Snapshot())
}

// @Summary      Extended device status
// @Description  Slow-changing fields (LTE, RSSI, carrier, profile) plus the latest calibration
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/status/extended [get]
// @Security     BearerAuth
func (h *Handler) getExtended(c *gin.Context) {
	resp := gin.H{
		"extended": h.services.Extended(),
		"locked":   h.services.Locked(),
	}
	cal, err := h.services.LatestCalibration(c.Request.Context())
	if err != nil {
		if h.log != nil {
			h.log.Warnw("calibration_load_failed", "err", err)
		}
	} else if cal != nil {
		resp["calibration"] = cal
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Engage or release the local lockout
// @Description  While engaged, operator cycle starts return 409; engaging stops any running cycle
// @Tags         status
// @Accept       json
// @Produce      json
// @Param        body  body      ToggleRequest  true  "on/off"
// @Success      200   {object}  map[string]bool
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/lockout [post]
// @Security     BearerAuth
func (h *Handler) setLockout(c *gin.Context) {
	var req ToggleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.SetLockout(c.Request.Context(), *req.On); err != nil {
		h.respondError(c, "failed to change lockout", "lockout_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": h.services.Locked()})
}

// @Summary      Active profile
// @Tags         status
// @Produce      json
// @Success      200  {object}  service.Profile
// @Router       /api/v1/profile [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Profile())
}

// @Summary      Switch profile
// @Tags         status
// @Accept       json
// @Produce      json
// @Param        body  body      ProfileRequest  true  "Profile"
// @Success      200   {object}  service.Profile
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/profile [put]
// @Security     BearerAuth
func (h *Handler) setProfile(c *gin.Context) {
	var req ProfileRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	p, err := h.services.SetProfile(req.Name)
	if err != nil {
		h.respondError(c, "failed to switch profile", "profile_switch_failed", err, "profile", req.Name)
		return
	}
	c.JSON(http.StatusOK, p)
}
