package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// permissiveCORS returns middleware that allows any origin, method, and
// header. The extension runs from an arbitrary browser context, so the API
// is intentionally open.
func permissiveCORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "*")
			h.Set("Access-Control-Allow-Headers", "*")

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
