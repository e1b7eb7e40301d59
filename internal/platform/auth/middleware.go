package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ActorIDKey   contextKey = "actor_id"
	ActorRoleKey contextKey = "actor_role"
	ActorNameKey contextKey = "actor_name"
)

// Middleware authenticates requests with a Bearer session token and stores
// the actor's identity in both the echo context and the request context.
func Middleware(tm *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authorization header must be a bearer token")
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ActorIDKey, claims.Subject)
			ctx = context.WithValue(ctx, ActorRoleKey, claims.Role)
			ctx = context.WithValue(ctx, ActorNameKey, claims.Name)
			c.SetRequest(c.Request().WithContext(ctx))

			c.Set("actor_id", claims.Subject)
			c.Set("actor_role", claims.Role)
			c.Set("actor_name", claims.Name)

			return next(c)
		}
	}
}

// RequireRole allows the request through only when the authenticated actor
// has one of the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("actor_role").(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !allowed[role] {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// ActorID returns the authenticated actor id from a request context.
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(ActorIDKey).(string)
	return id
}

// ActorRole returns the authenticated actor role from a request context.
func ActorRole(ctx context.Context) string {
	role, _ := ctx.Value(ActorRoleKey).(string)
	return role
}
