// Package identity resolves the caller's role from inbound requests.
// Authentication happens upstream; a missing or unknown role header always
// resolves to the least privileged role.
package identity

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/workflow"
)

type contextKey struct{}

const echoKey = "identity.role"

// WithRole returns a copy of ctx carrying role.
func WithRole(ctx context.Context, role workflow.Role) context.Context {
	return context.WithValue(ctx, contextKey{}, role)
}

// RoleFrom returns the role stored in ctx, or RoleUser when none is set.
func RoleFrom(ctx context.Context) workflow.Role {
	if role, ok := ctx.Value(contextKey{}).(workflow.Role); ok {
		return role
	}
	return workflow.RoleUser
}

// Role returns the role resolved for the current echo request.
func Role(c echo.Context) workflow.Role {
	if role, ok := c.Get(echoKey).(workflow.Role); ok {
		return role
	}
	return RoleFrom(c.Request().Context())
}

// Middleware reads the configured role header and stores the resolved role
// on both the echo context and the request context.
func Middleware(cfg config.Auth, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	header := cfg.RoleHeader
	if header == "" {
		header = "X-User-Role"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(header)
			role, ok := workflow.ParseRole(raw)
			switch {
			case raw == "":
				logger.Debug("role header missing; defaulting to user", zap.String("path", c.Path()))
			case !ok:
				logger.Warn("unrecognized role header; defaulting to user", zap.String("value", raw), zap.String("path", c.Path()))
			}

			c.Set(echoKey, role)
			req := c.Request()
			c.SetRequest(req.WithContext(WithRole(req.Context(), role)))
			return next(c)
		}
	}
}
