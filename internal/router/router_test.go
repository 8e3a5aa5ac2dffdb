package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seolab-api/internal/crew"
	"seolab-api/internal/handlers"
	"seolab-api/internal/middleware"
	"seolab-api/internal/models"
	"seolab-api/internal/services"
)

type fakeSEO struct{}

func (fakeSEO) Generate(context.Context, models.GenerateRequest, crew.ProgressFunc) (*services.GenerateResult, error) {
	return &services.GenerateResult{Response: &models.GenerateResponse{
		HTML:    "<h1>ok</h1>",
		Meta:    models.Meta{Keywords: []string{}},
		TraceID: "trace_1_00000000",
	}}, nil
}

func (fakeSEO) Health(context.Context) services.HealthReport {
	return services.HealthReport{Status: "healthy", Version: services.Version}
}

func (fakeSEO) Prepare(*models.GenerateRequest) error { return nil }

func (fakeSEO) GetGeneration(context.Context, string) (*models.Generation, error) {
	return nil, services.ErrHistoryUnavailable
}

func (fakeSEO) ListGenerations(context.Context, string, int, int) ([]*models.Generation, int, error) {
	return nil, 0, services.ErrHistoryUnavailable
}

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	limiter := middleware.NewRateLimiter(limit, time.Minute)
	t.Cleanup(limiter.Stop)

	svc := fakeSEO{}
	return New(
		handlers.NewSEOHandler(svc),
		handlers.NewJobHandler(svc, nil, middleware.NewStreamTokens("secret")),
		handlers.NewGenerationHandler(svc),
		nil,
		Options{APIKey: "edge-key", AllowedOrigins: []string{"*"}, Limiter: limiter, Logger: zap.NewNop()},
	)
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, 10)

	for _, path := range []string{"/", "/health", "/api/seo", "/api/seo/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader), path)
	}
}

func TestRouter_ProtectedRoutesRequireKey(t *testing.T) {
	r := newTestRouter(t, 10)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/seo/generate"},
		{http.MethodPost, "/api/seo/jobs"},
		{http.MethodGet, "/api/seo/generations"},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestRouter_GenerateWithKey(t *testing.T) {
	r := newTestRouter(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/seo/generate", strings.NewReader(`{"brand":"Acme","topic":"Shoes"}`))
	req.Header.Set("x-api-key", "edge-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var resp models.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "<h1>ok</h1>", resp.HTML)
	assert.Equal(t, "trace_1_00000000", resp.TraceID)
}

func TestRouter_OptionalBackends(t *testing.T) {
	r := newTestRouter(t, 10)

	for _, tc := range []struct {
		method, path, code string
	}{
		{http.MethodPost, "/api/seo/jobs", "QUEUE_UNAVAILABLE"},
		{http.MethodGet, "/api/seo/generations", "HISTORY_UNAVAILABLE"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"brand":"a","topic":"b"}`))
		req.Header.Set("x-api-key", "edge-key")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
		assert.Contains(t, rec.Body.String(), tc.code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/seo/ws?token=x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RateLimitsWrites(t *testing.T) {
	r := newTestRouter(t, 1)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/seo/generate", strings.NewReader(`{"brand":"Acme","topic":"Shoes"}`))
		req.Header.Set("x-api-key", "edge-key")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Reads are not limited
	req := httptest.NewRequest(http.MethodGet, "/api/seo/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
