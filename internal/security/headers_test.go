package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHeadersMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(HeadersMiddleware(HeadersOptions{}))
	router.GET("/v1/reports/generate", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(router, http.MethodGet, "/v1/reports/generate", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, apiCSP, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = serve(router, http.MethodGet, "/health", "")
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestHeadersMiddleware_HSTS(t *testing.T) {
	router := gin.New()
	router.Use(HeadersMiddleware(HeadersOptions{HSTS: true}))
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(router, http.MethodGet, "/health", "")
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		wantOrigin     string
		wantCreds      bool
	}{
		{"allowed origin", []string{"https://app.example.com/"}, "https://app.example.com", "https://app.example.com", true},
		{"wildcard", []string{"*"}, "https://anything.com", "*", false},
		{"disallowed origin", []string{"https://app.example.com"}, "https://evil.com", "", false},
		{"no origin header", []string{"*"}, "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(tc.allowedOrigins))
			router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

			w := serve(router, http.MethodGet, "/test", tc.requestOrigin)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tc.wantCreds, w.Header().Get("Access-Control-Allow-Credentials") == "true")
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"*"}))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(router, http.MethodOptions, "/test", "https://example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}
