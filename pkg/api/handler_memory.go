package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// listMemoryLimit caps GET /api/memory.
const listMemoryLimit = 50

type createMemoryRequest struct {
	Content string `json:"content"`
}

func (s *Server) listMemoriesHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not configured")
	}

	memories, err := s.memories.Recent(c.Request().Context(), listMemoryLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list memories")
	}
	if memories == nil {
		memories = []models.Memory{}
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *Server) createMemoryHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not configured")
	}

	var req createMemoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	mem, err := s.memories.Add(c.Request().Context(), req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save memory")
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": mem.ID})
}

func (s *Server) deleteMemoryHandler(c *echo.Context) error {
	if s.memories == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory store not configured")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid memory id")
	}

	deleted, err := s.memories.Delete(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete memory")
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "memory not found")
	}
	return c.NoContent(http.StatusNoContent)
}
