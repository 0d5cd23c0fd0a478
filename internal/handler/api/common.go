package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"routepulse/internal/models"
	"routepulse/internal/repository"
)

// Repos bundles the repositories the API handlers need.
type Repos struct {
	Job      *repository.JobRepository
	Snapshot *repository.SnapshotRepository
}

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
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
		limit = 50
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

func queryInt(c echo.Context, key string, fallback int) int {
	raw := c.QueryParam(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(c echo.Context, key string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(key))
	return v
}
