package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dfryer1193/imgcrud/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(reg *metrics.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware(reg))
	r.Use(gin.CustomRecovery(HandlePanics()))
	return r
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	r := newTestRouter(nil)
	r.GET("/ping", func(c *gin.Context) {
		assert.NotNil(t, log.Ctx(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddleware_CountsRequests(t *testing.T) {
	reg := metrics.NewRegistry()
	r := newTestRouter(reg)
	r.GET("/images/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("lookup failed"))
		c.Status(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/images/42", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, int64(2), reg.Value("http_requests_total", map[string]string{
		"method": http.MethodGet,
		"route":  "/images/:id",
		"status": "5xx",
	}))
	assert.Equal(t, int64(1), reg.Value("http_requests_total", map[string]string{
		"method": http.MethodGet,
		"route":  "unmatched",
		"status": "4xx",
	}))
}

func TestHandlePanics(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "error value", value: errors.New("boom")},
		{name: "string value", value: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(nil)
			r.GET("/panic", func(c *gin.Context) {
				panic(tt.value)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
			require.Equal(t, http.StatusInternalServerError, w.Code)
			assert.JSONEq(t, `{"error":"Server error"}`, w.Body.String())
		})
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{code: 101, want: "1xx"},
		{code: 201, want: "2xx"},
		{code: 304, want: "3xx"},
		{code: 404, want: "4xx"},
		{code: 503, want: "5xx"},
		{code: 0, want: "0"},
	}

	for _, tt := range tests {
		if got := statusClass(tt.code); got != tt.want {
			t.Errorf("statusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
