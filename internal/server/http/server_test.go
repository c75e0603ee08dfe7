package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/identity"
)

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.HTTP.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Auth.RoleHeader = "X-User-Role"
	cfg.Observability.PrometheusPath = "/metrics"
	return cfg
}

func TestHealthAndRequestID(t *testing.T) {
	e := NewEcho(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestCORSAllowsRoleHeader(t *testing.T) {
	e := NewEcho(testConfig(), nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/purchase-orders", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPut)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), "X-User-Role")
}

func TestIdentityMiddlewareInstalled(t *testing.T) {
	e := NewEcho(testConfig(), nil, zap.NewNop())
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, identity.Role(c).String())
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-Role", "admin")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "admin", rec.Body.String())
}

func TestStaticFallbackSkipsAPI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>orders</h1>"), 0o600))

	cfg := testConfig()
	cfg.HTTP.StaticDir = dir
	e := NewEcho(cfg, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orders")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
