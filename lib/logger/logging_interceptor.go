package logger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type RequestLogger struct {
	logger *slog.Logger
}

func NewRequestLogger(service string, logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = New(service)
	}
	return &RequestLogger{logger: logger}
}

// Middleware logs one line per request once the handler has returned.
func (l *RequestLogger) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{
				slog.String("request_id", requestID),
				slog.String("method", req.Method),
				slog.String("path", c.Path()),
				slog.String("uri", req.RequestURI),
				slog.String("client_ip", getClientIP(c)),
				slog.String("user_agent", getUserAgent(req)),
				slog.Time("start_time", start),
				slog.Duration("duration", time.Since(start)),
				slog.Int("status_code", status),
			}
			if status >= http.StatusInternalServerError {
				l.logger.Error("HTTP Call", attrs...)
			} else {
				l.logger.Info("HTTP Call", attrs...)
			}

			return nil
		}
	}
}

func getClientIP(c echo.Context) string {
	req := c.Request()
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func getUserAgent(req *http.Request) string {
	if ua := req.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
