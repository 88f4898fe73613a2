package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func corsRequest(cfg CORSConfig, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/levels", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	CORS(cfg)(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://scholet.example.org"}

	rec := corsRequest(cfg, http.MethodOptions, "https://scholet.example.org", true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://scholet.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestCORS_SimpleRequestExposesHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://scholet.example.org"}

	rec := corsRequest(cfg, http.MethodGet, "https://Scholet.example.org", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://Scholet.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Location")
}

func TestCORS_DisallowedOriginPassesThroughWithoutHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://scholet.example.org"}

	rec := corsRequest(cfg, http.MethodGet, "https://evil.example.com", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcards(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	rec := corsRequest(cfg, http.MethodGet, "https://anything.test", false)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	cfg.AllowCredentials = true
	rec = corsRequest(cfg, http.MethodGet, "https://anything.test", false)
	assert.Equal(t, "https://anything.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	cfg = DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*.example.org"}
	cfg.AllowWildcard = true
	rec = corsRequest(cfg, http.MethodGet, "https://lab.example.org", false)
	assert.Equal(t, "https://lab.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	rec = corsRequest(cfg, http.MethodGet, "https://example.com", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_OptionsWithoutPreflightReachesHandler(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	rec := corsRequest(cfg, http.MethodOptions, "https://a.test", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
