package gateway

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddHealthCheckServesHealthEndpoint(t *testing.T) {
	handler := addHealthCheck(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not run for /api/v1/health")
	}))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAddHealthCheckPassesThroughOtherPaths(t *testing.T) {
	called := false
	handler := addHealthCheck(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/plan", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/v1/plan", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.NotEmpty(t, w.Header().Get("X-Response-Time"))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestGetCORSOriginsDefaultsWithoutEnv(t *testing.T) {
	os.Unsetenv("CORS_ALLOWED_ORIGINS")
	origins := getCORSOrigins()
	assert.Contains(t, origins, "http://localhost:5173")
}

func TestGetCORSOriginsFromEnv(t *testing.T) {
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	defer os.Unsetenv("CORS_ALLOWED_ORIGINS")

	origins := getCORSOrigins()
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, origins)
}

func TestCacheEndpointsDisabledWithoutCache(t *testing.T) {
	gw := &GatewayServer{}

	req := httptest.NewRequest("GET", "/api/v1/cache/health", nil)
	w := httptest.NewRecorder()
	gw.handleCacheHealth()(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	w = httptest.NewRecorder()
	gw.handleCacheStats()(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
