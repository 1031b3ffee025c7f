package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"reportflow/internal/models"
	"reportflow/internal/report"
)

// Response helpers: every endpoint returns the same envelope.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func createdResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusCreated, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

// mapError translates the error taxonomy to HTTP status codes.
func mapError(c echo.Context, err error) error {
	var validationErr *report.ValidationError
	var authzErr *report.AuthorizationError

	switch {
	case errors.As(err, &validationErr):
		return errorResponse(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &authzErr):
		return errorResponse(c, http.StatusForbidden, authzErr.Error())
	case errors.Is(err, report.ErrScheduleNotFound),
		errors.Is(err, report.ErrArtifactNotFound):
		return errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrAlreadyRunning):
		return errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrSchedulePaused):
		return errorResponse(c, http.StatusConflict, err.Error())
	default:
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 20
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
