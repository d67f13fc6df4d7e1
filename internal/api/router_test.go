package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	customMiddleware "github.com/Rrens/text-to-dashboard/internal/api/middleware"
	"github.com/Rrens/text-to-dashboard/internal/config"
	"github.com/Rrens/text-to-dashboard/internal/domain"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/Rrens/text-to-dashboard/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDashboards struct{}

func (stubDashboards) GenerateDashboard(context.Context, domain.DashboardRequest) (*domain.DashboardResult, error) {
	return &domain.DashboardResult{DashboardID: 1}, nil
}

func (stubDashboards) ListDashboards(context.Context, int, int) ([]domain.DashboardSummary, error) {
	return []domain.DashboardSummary{}, nil
}

func (stubDashboards) GetDashboard(_ context.Context, id int) (*domain.DashboardSummary, error) {
	return &domain.DashboardSummary{ID: id}, nil
}

func (stubDashboards) DashboardCharts(context.Context, int) ([]domain.Chart, error) {
	return []domain.Chart{}, nil
}

func (stubDashboards) ListCharts(context.Context, string, int, int) ([]domain.Chart, error) {
	return []domain.Chart{}, nil
}

func (stubDashboards) GetChart(_ context.Context, id int) (*domain.Chart, error) {
	return &domain.Chart{ID: id}, nil
}

func (stubDashboards) ChartData(context.Context, int, json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"result":[]}`), nil
}

type stubSQL struct{}

func (stubSQL) GenerateSQL(_ context.Context, req domain.SQLRequest) (*domain.SQLResponse, error) {
	return &domain.SQLResponse{Prompt: req.Prompt, SQL: "SELECT 1"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{MiddlewareTimeout: 5 * time.Second},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Routes(t *testing.T) {
	h := NewRouter(testConfig(), Deps{
		LLMRouter:        llm.NewRouter("gemini"),
		DashboardService: stubDashboards{},
		QueryService:     stubSQL{},
	})

	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/ready",
		"/api/v1/llm-providers",
		"/api/v1/dashboards",
		"/api/v1/dashboards/3",
		"/api/v1/dashboards/3/charts",
		"/api/v1/charts",
		"/api/v1/charts/9",
		"/metrics",
	} {
		assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, path, "").Code, path)
	}

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/v1/charts/9/data", "").Code)

	// cache routes only exist when a cache is configured
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/api/v1/cache/flush", "").Code)
}

func TestRouter_RequestIDInEnvelope(t *testing.T) {
	h := NewRouter(testConfig(), Deps{
		LLMRouter:        llm.NewRouter("gemini"),
		DashboardService: stubDashboards{},
		QueryService:     stubSQL{},
	})

	rec := serve(h, http.MethodGet, "/api/v1/dashboards/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, id, body["request_id"])
}

func TestRouter_Auth(t *testing.T) {
	jwtManager := security.NewJWTManager("secret", "text-to-dashboard", time.Hour)
	h := NewRouter(testConfig(), Deps{
		LLMRouter:        llm.NewRouter("gemini"),
		DashboardService: stubDashboards{},
		QueryService:     stubSQL{},
		Auth:             customMiddleware.NewAuthMiddleware(jwtManager),
	})

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/v1/dashboards", "").Code)

	token, err := jwtManager.GenerateAccessToken("ops", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/v1/dashboards", token).Code)
}
