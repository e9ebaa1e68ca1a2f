package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/pkg/models"
)

const (
	serviceName    = "narrative-timeline"
	ServiceVersion = "1.0.0"
)

// HandleHealth reports service health including store connectivity.
// (GET /health)
func (s *Server) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   serviceName,
		Version:   ServiceVersion,
		Checks:    map[string]string{"store": "ok"},
	}
	code := http.StatusOK
	if err := s.svc.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Checks["store"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// problemErrorHandler renders every error as an RFC 7807 Problem Details body.
func problemErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(code)
			}
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		}

		problem := models.ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(code),
			Status:   code,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, problem)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
