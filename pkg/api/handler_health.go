package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tabpilot/tabpilot/pkg/version"
)

func (s *Server) helloHandler(c *echo.Context) error {
	return c.String(http.StatusOK, "Hello World")
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Full(),
	})
}

// debugContextHandler reports the last page context seen per session.
func (s *Server) debugContextHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"active_sessions": s.connManager.SessionCount(),
		"contexts":        s.connManager.Contexts(),
	})
}
