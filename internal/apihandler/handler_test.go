package apihandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/api/handler"
	"github.com/hewenyu/modularity/pkg/registry"
)

func newTestHandler(t *testing.T, cfg config.ServerConfig) *EchoHandler {
	r := registry.New(registry.Options{})
	t.Cleanup(func() { r.Close() })
	return NewAPIHandler(cfg, config.NewNopLogger(), r, handler.NewMetricsHandler(r))
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      0,
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t, defaultServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Contains(t, response, "timestamp")
	assert.Equal(t, "ecosystem-registry", response["service"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID), "响应应带有请求ID")
}

func TestCORSAllowedOrigins(t *testing.T) {
	h := newTestHandler(t, defaultServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(echo.HeaderAccessControlAllowCredentials))

	req = httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set(echo.HeaderOrigin, "http://evil.example.com")
	rec = httptest.NewRecorder()
	h.Echo().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestMutatingEndpointsAreRateLimited(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	h := newTestHandler(t, cfg)

	send := func() int {
		req := httptest.NewRequest(http.MethodDelete, "/api/unregister/missing", nil)
		rec := httptest.NewRecorder()
		h.Echo().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNotFound, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// 查询接口不受影响
	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	h.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	h := newTestHandler(t, defaultServerConfig())
	require.NoError(t, h.Start())

	url := fmt.Sprintf("http://%s/api/register", h.Addr())
	body := `{"id":"svc-1","name":"n","capabilities":["a"],"location":"http://127.0.0.1:1","mode":"standalone"}`
	resp, err := http.Post(url, echo.MIMEApplicationJSON, strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	_, err = http.Get(fmt.Sprintf("http://%s/health", h.Addr()))
	assert.Error(t, err, "关闭后不应再接受连接")
}
