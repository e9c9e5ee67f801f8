package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireToken only lets requests through that carry "Authorization: Bearer <token>".
// An empty token disables the check.
func RequireToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		want := []byte(token)
		return func(c echo.Context) error {
			got := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"code":    "UNAUTHENTICATED",
					"message": "missing bearer token",
				})
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"code":    "UNAUTHENTICATED",
					"message": "invalid bearer token",
				})
			}
			return next(c)
		}
	}
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
