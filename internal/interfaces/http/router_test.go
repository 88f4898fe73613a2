package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/internal/application/explorer"
	"github.com/ryanyen2/Scholet/internal/domain/binning"
	"github.com/ryanyen2/Scholet/internal/domain/entity"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/prometheus"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/middleware"
	"github.com/ryanyen2/Scholet/internal/testutil"
)

func newTestRouter(t *testing.T, limiter middleware.RateLimiter) (http.Handler, *testutil.MockLogger) {
	t.Helper()
	log := testutil.NewMockLogger()
	engine, err := binning.NewEngine(binning.DefaultLadder(), nil)
	require.NoError(t, err)
	svc := explorer.NewService(engine, explorer.Config{}, log)
	set, stats := entity.NewSet([]entity.Record{{ID: "P1", X: 1, Y: 1, Kind: entity.KindPaper}})
	_, err = svc.LoadDataset(context.Background(), set, stats)
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "scholet_test"}, log)
	require.NoError(t, err)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://ui.test"}
	return NewRouter(RouterConfig{
		Explorer:       handlers.NewExplorerHandler(svc, log, 0),
		Health:         handlers.NewHealthHandler("test"),
		CORS:           &cors,
		RateLimiter:    limiter,
		Logging:        middleware.DefaultLoggingConfig(),
		Logger:         log,
		Metrics:        prometheus.NewAppMetrics(collector),
		MetricsHandler: collector.Handler(),
	}), log
}

func TestRouter_Routes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/levels", http.StatusOK},
		{http.MethodGet, "/api/v1/dataset", http.StatusOK},
		{http.MethodPost, "/api/v1/sessions", http.StatusCreated},
		{http.MethodGet, "/api/v1/sessions/6f1c2b8e-4c1a-4f7e-9a55-1d2a3b4c5d6e", http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/levels", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_MiddlewareChain(t *testing.T) {
	router, log := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/levels", nil)
	req.Header.Set("Origin", "https://ui.test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://ui.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Body.String(), `"request_id"`)
	msg, ok := log.Find("info", "request completed")
	require.True(t, ok)
	route, _ := msg.Field("route")
	assert.Equal(t, "/api/v1/levels", route)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "scholet_test_http_requests_total")
}

func TestRouter_RateLimited(t *testing.T) {
	limiter := middleware.NewTokenBucketLimiter(0.001, 1, 0)
	router, _ := newTestRouter(t, limiter)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/levels", nil))
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
