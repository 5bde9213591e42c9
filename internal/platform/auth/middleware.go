package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// Middleware validates the bearer token and stores the caller's identity in
// the request context. Requests without a valid token get 401.
func Middleware(tm *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			userID, claims, err := tm.Verify(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", userID.String())

			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user's id, or uuid.Nil when the
// request is unauthenticated.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	uid, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return uid
}

// RoleFromContext returns the authenticated user's role.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}
