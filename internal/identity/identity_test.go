package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/workflow"
)

func TestMiddlewareResolvesRole(t *testing.T) {
	cases := []struct {
		name   string
		header string
		value  string
		want   workflow.Role
	}{
		{"admin", "X-User-Role", "admin", workflow.RoleAdmin},
		{"user", "X-User-Role", "user", workflow.RoleUser},
		{"padded admin", "X-User-Role", " admin ", workflow.RoleUser},
		{"missing", "", "", workflow.RoleUser},
		{"unknown", "X-User-Role", "root", workflow.RoleUser},
		{"wrong case", "X-User-Role", "Admin", workflow.RoleUser},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var fromEcho, fromCtx workflow.Role
			h := Middleware(config.Auth{RoleHeader: "X-User-Role"}, zap.NewNop())(func(c echo.Context) error {
				fromEcho = Role(c)
				fromCtx = RoleFrom(c.Request().Context())
				return nil
			})

			require.NoError(t, h(c))
			assert.Equal(t, tc.want, fromEcho)
			assert.Equal(t, tc.want, fromCtx)
		})
	}
}

func TestMiddlewareCustomHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Role", "admin")
	req.Header.Set("X-User-Role", "user")
	c := e.NewContext(req, httptest.NewRecorder())

	var got workflow.Role
	h := Middleware(config.Auth{RoleHeader: "X-Role"}, nil)(func(c echo.Context) error {
		got = Role(c)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, workflow.RoleAdmin, got)
}

func TestRoleFromDefaultsToUser(t *testing.T) {
	assert.Equal(t, workflow.RoleUser, RoleFrom(context.Background()))
	assert.Equal(t, workflow.RoleAdmin, RoleFrom(WithRole(context.Background(), workflow.RoleAdmin)))
}
