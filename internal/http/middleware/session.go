package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/monozip/internal/session"
	echo "github.com/labstack/echo/v4"
)

// Authenticator is satisfied by *session.Gate.
type Authenticator interface {
	IsAuthenticated(ctx context.Context, token string) bool
}

// SessionMiddleware lets requests with an open session through. Others get
// 401 JSON on /api/* and a redirect to the login page everywhere else.
func SessionMiddleware(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			if ck, err := c.Cookie(session.CookieName); err == nil {
				token = ck.Value
			}
			if auth.IsAuthenticated(c.Request().Context(), token) {
				return next(c)
			}

			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"success": false,
					"error":   "login required",
					"kind":    "unauthenticated",
				})
			}
			return c.Redirect(http.StatusFound, "/login")
		}
	}
}
