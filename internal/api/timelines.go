// Package api contains the HTTP handlers for the timeline service
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/repository"
	"narrative-timeline/backend/internal/services"
	"narrative-timeline/backend/pkg/models"
)

// TimelineService is the subset of the service layer the handlers use.
type TimelineService interface {
	CreateTimeline(ctx context.Context, query string) (*models.TimelineStatus, error)
	GetTimeline(ctx context.Context, id string) (*models.Timeline, error)
	GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error)
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the API server.
type Server struct {
	svc    TimelineService
	logger *logging.Logger
}

// NewServer creates a new Server.
func NewServer(svc TimelineService, logger *logging.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// CreateTimeline accepts a query and starts generation in the background
// (POST /api/timelines/create)
func (s *Server) CreateTimeline(c echo.Context) error {
	var req models.TimelineCreate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	st, err := s.svc.CreateTimeline(c.Request().Context(), req.Query)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// GetTimeline returns the timeline with all events, sources and branches
// (GET /api/timelines/:id)
func (s *Server) GetTimeline(c echo.Context) error {
	t, err := s.svc.GetTimeline(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// GetTimelineStatus returns status and progress for polling
// (GET /api/timelines/:id/status)
func (s *Server) GetTimelineStatus(c echo.Context) error {
	st, err := s.svc.GetTimelineStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Timeline not found")
	case errors.Is(err, services.ErrInvalidQuery):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Timeline generation is at capacity, try again later").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
}
