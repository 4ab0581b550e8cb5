package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Middleware resolves a bearer token into a Principal and stores it in the
// request context. Requests without a token (or with a dead one) pass through
// unauthenticated; route groups that need auth use RequireUserType.
func Middleware(m *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return next(c)
			}

			p, err := m.Resolve(c.Request().Context(), token)
			if err != nil {
				return next(c)
			}

			ctx := NewContext(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireUserType gates a route group to the given identity kinds.
func RequireUserType(types ...UserType) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := FromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, t := range types {
				if p.UserType == t {
					return next(c)
				}
			}
			names := make([]string, len(types))
			for i, t := range types {
				names[i] = string(t)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required user type: %s", strings.Join(names, " or ")))
		}
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
