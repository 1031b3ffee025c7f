package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reportflow/internal/models"
	"reportflow/internal/report"
	"reportflow/internal/service"
)

// ReportHandler serves on-demand report endpoints: manual runs, one-off
// emails, downloads and the type catalog.
type ReportHandler struct {
	reports *service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// RunNow handles POST /schedules/:id/run.
func (h *ReportHandler) RunNow(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	record, err := h.reports.RunNow(a, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Run finished", record)
}

// EmailReport handles POST /reports/email.
func (h *ReportHandler) EmailReport(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req models.EmailReportRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	results, err := h.reports.EmailOneOff(c.Request().Context(), a, &req)
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Report sent", results)
}

// Download handles GET /reports/download/:fileName.
func (h *ReportHandler) Download(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	artifact, path, err := h.reports.ResolveDownload(a, c.Param("fileName"), c.QueryParam("token"))
	if err != nil {
		return mapError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, report.Format(artifact.Format).ContentType())
	return c.Attachment(path, artifact.FileName)
}

// Types handles GET /reports/types.
func (h *ReportHandler) Types(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	return successResponse(c, "", h.reports.ListTypes(a))
}

// QueueStatus handles GET /reports/queue/status.
func (h *ReportHandler) QueueStatus(c echo.Context) error {
	if _, err := actor(c); err != nil {
		return err
	}
	return successResponse(c, "", h.reports.QueueStatus())
}
