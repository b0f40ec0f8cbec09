package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// agentHandler serves POST /api/chat and POST /agent/run. Returns either a
// ChatResponse JSON body or an SSE stream when the request asks for one and
// takes the plain completion path.
func (s *Server) agentHandler(c *echo.Context) error {
	var req models.AgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	slog.Info("Agent request",
		"query", req.Query, "session_id", req.SessionID, "stream", req.Stream)

	if s.agent.ShouldStream(req) {
		return s.streamAgent(c, req)
	}

	resp, err := s.agent.Run(c.Request().Context(), req)
	if err != nil {
		slog.Error("Agent run failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}
