package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"reportflow/internal/handler/api"
	"reportflow/internal/middleware"
	"reportflow/internal/service"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	scheduleService *service.ScheduleService,
	reportService *service.ReportService,
	jwtSecret string,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	scheduleHandler := api.NewScheduleHandler(scheduleService, logger)
	reportHandler := api.NewReportHandler(reportService, logger)

	v1 := e.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))

	// Schedules
	v1.POST("/reports/schedules", scheduleHandler.Create)
	v1.GET("/reports/schedules", scheduleHandler.List)
	v1.GET("/reports/schedules/summary", scheduleHandler.Summary)
	v1.GET("/reports/schedules/:id", scheduleHandler.Get)
	v1.PUT("/reports/schedules/:id", scheduleHandler.Update)
	v1.DELETE("/reports/schedules/:id", scheduleHandler.Delete)
	v1.POST("/reports/schedules/:id/pause", scheduleHandler.Pause)
	v1.POST("/reports/schedules/:id/resume", scheduleHandler.Resume)
	v1.GET("/reports/schedules/:id/history", scheduleHandler.History)
	v1.POST("/reports/schedules/:id/run", reportHandler.RunNow)

	// Reports
	v1.GET("/reports/types", reportHandler.Types)
	v1.POST("/reports/email", reportHandler.EmailReport)
	v1.GET("/reports/download/:fileName", reportHandler.Download)
	v1.GET("/reports/queue/status", reportHandler.QueueStatus)
}
