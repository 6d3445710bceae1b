package handlers

import (
	"net/http"

	"vapor_recovery/internal/models"
	"vapor_recovery/internal/service"

	"github.com/gin-gonic/gin"
)

// StartCycleRequest names a catalog cycle.
type StartCycleRequest struct {
	// Catalog name, e.g. standard, leak_test, canister_clean
	Name string `json:"name" binding:"required" example:"standard"`
}

// @Summary      List cycle catalog
// @Tags         cycles
// @Produce      json
// @Success      200  {array}   models.CycleSequence
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/cycles [get]
// @Security     BearerAuth
func (h *Handler) listCycles(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Cycles())
}

// @Summary      Start a cycle
// @Description  Fails with 409 while another cycle runs or the local lockout is engaged
// @Tags         cycles
// @Accept       json
// @Produce      json
// @Param        body  body      StartCycleRequest  true  "Cycle name"
// @Success      200   {object}  models.CycleStatus
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/cycles/start [post]
// @Security     BearerAuth
func (h *Handler) startCycle(c *gin.Context) {
	var req StartCycleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	st, err := h.services.StartCycle(c.Request.Context(), service.StartRequest{
		Name:   req.Name,
		Origin: models.OriginOperator,
	})
	if err != nil {
		h.respondError(c, "failed to start cycle", "cycle_start_failed", err, "cycle", req.Name)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Stop the active cycle
// @Description  Cancels the active cycle, discards a paused one and forces Rest
// @Tags         cycles
// @Produce      json
// @Success      200  {object}  models.CycleStatus
// @Router       /api/v1/cycles/stop [post]
// @Security     BearerAuth
func (h *Handler) stopCycle(c *gin.Context) {
	if err := h.services.StopCycle(c.Request.Context()); err != nil {
		h.respondError(c, "failed to stop cycle", "cycle_stop_failed", err)
		return
	}
	c.JSON(http.StatusOK, h.services.CycleStatus())
}

// @Summary      Pause the active cycle
// @Tags         cycles
// @Produce      json
// @Success      200  {object}  models.PausedCycle
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/cycles/pause [post]
// @Security     BearerAuth
func (h *Handler) pauseCycle(c *gin.Context) {
	p, err := h.services.PauseCycle(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to pause cycle", "cycle_pause_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Resume a paused cycle
// @Tags         cycles
// @Produce      json
// @Success      200  {object}  models.CycleStatus
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/cycles/resume [post]
// @Security     BearerAuth
func (h *Handler) resumeCycle(c *gin.Context) {
	st, err := h.services.ResumeCycle(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to resume cycle", "cycle_resume_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Cycle status
// @Tags         cycles
// @Produce      json
// @Success      200  {object}  models.CycleStatus
// @Router       /api/v1/cycles/status [get]
// @Security     BearerAuth
func (h *Handler) cycleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.CycleStatus())
}
