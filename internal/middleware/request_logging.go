package middleware

import (
	"time"

	"github.com/dfryer1193/imgcrud/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware attaches a request-scoped zerolog logger to the request
// context, logs every request and counts it in reg. reg may be nil.
func LoggingMiddleware(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		rid := req.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(RequestIDHeader, rid)

		logger := log.With().
			Str("request_id", rid).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Request = req.WithContext(logger.WithContext(req.Context()))

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if reg != nil {
			reg.Inc(c.Request.Context(), "http_requests_total", map[string]string{
				"method": req.Method,
				"route":  route,
				"status": statusClass(status),
			}, 1)
		}

		if status >= 500 || len(c.Errors) > 0 {
			event := logger.Error()
			if last := c.Errors.Last(); last != nil {
				event = event.Err(last.Err)
			}
			event.Int("status", status).
				Dur("duration", duration).
				Msg("http request failed")
			return
		}

		logger.Info().
			Int("status", status).
			Dur("duration", duration).
			Msg("http request served")
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "0"
	}
}
