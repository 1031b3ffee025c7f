package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"reportflow/internal/middleware"
	"reportflow/internal/models"
	"reportflow/internal/permission"
	"reportflow/internal/service"
)

// ScheduleHandler serves the schedule CRUD and life cycle endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
	logger    *zap.Logger
}

func NewScheduleHandler(schedules *service.ScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

func actor(c echo.Context) (permission.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return permission.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}
	return a, nil
}

// Create handles POST /schedules.
func (h *ScheduleHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req models.SaveScheduleRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	schedule, err := h.schedules.Create(a, &req)
	if err != nil {
		return mapError(c, err)
	}
	return createdResponse(c, "Schedule created", schedule)
}

// Update handles PUT /schedules/:id.
func (h *ScheduleHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	var req models.SaveScheduleRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}

	schedule, err := h.schedules.Update(a, c.Param("id"), &req)
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Schedule updated", schedule)
}

// Get handles GET /schedules/:id.
func (h *ScheduleHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	schedule, err := h.schedules.Get(a, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "", schedule)
}

// List handles GET /schedules.
func (h *ScheduleHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	schedules, total, err := h.schedules.List(a, page, limit)
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "", paginatedResponse(schedules, total, page, limit))
}

// Summary handles GET /schedules/summary.
func (h *ScheduleHandler) Summary(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	summary, err := h.schedules.Summary(a)
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "", summary)
}

// Pause handles POST /schedules/:id/pause.
func (h *ScheduleHandler) Pause(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	schedule, err := h.schedules.Pause(a, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Schedule paused", schedule)
}

// Resume handles POST /schedules/:id/resume.
func (h *ScheduleHandler) Resume(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	schedule, err := h.schedules.Resume(a, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Schedule resumed", schedule)
}

// Delete handles DELETE /schedules/:id.
func (h *ScheduleHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	if err := h.schedules.Delete(a, c.Param("id")); err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "Schedule deleted", nil)
}

// History handles GET /schedules/:id/history.
func (h *ScheduleHandler) History(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	records, total, err := h.schedules.History(a, c.Param("id"), page, limit)
	if err != nil {
		return mapError(c, err)
	}
	return successResponse(c, "", paginatedResponse(records, total, page, limit))
}
