package handlers

import (
	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  bool
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, metrics bool) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live snapshot stream on the same port; browsers pass ?access_token=
	router.GET("/ws", h.operatorMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		api.GET("/mode", h.getMode)
		api.GET("/snapshot", h.getSnapshot)
		api.GET("/status/extended", h.getExtended)
		api.POST("/lockout", h.setLockout)
		api.GET("/profile", h.getProfile)
		api.PUT("/profile", h.setProfile)
		api.GET("/shutdown", h.getShutdownTimers)

		h.registerCycleRoutes(api)
		h.registerAlarmRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerCycleRoutes(api *gin.RouterGroup) {
	cycles := api.Group("/cycles")
	{
		cycles.GET("", h.listCycles)
		// Body example: {"name":"standard"}
		cycles.POST("/start", h.startCycle)
		cycles.POST("/stop", h.stopCycle)
		cycles.POST("/pause", h.pauseCycle)
		cycles.POST("/resume", h.resumeCycle)
		cycles.GET("/status", h.cycleStatus)
	}
}

func (h *Handler) registerAlarmRoutes(api *gin.RouterGroup) {
	alarms := api.Group("/alarms")
	{
		alarms.GET("", h.listAlarms)
		alarms.POST("/:kind/ack", h.ackAlarm)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	device := api.Group("/device")
	{
		device.POST("/calibrate", h.calibrate)
		device.POST("/fast-poll", h.setFastPoll)
		device.POST("/failsafe", h.setFailsafe)
		device.GET("/link", h.getLink)
		device.POST("/link", h.setLink)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
	api.GET("/samples", h.getSamples)
}
