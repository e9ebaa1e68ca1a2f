package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/metrics"
	"narrative-timeline/backend/internal/repository"
	"narrative-timeline/backend/internal/worker"
	"narrative-timeline/backend/pkg/models"
)

var (
	// ErrInvalidQuery is returned for an empty or blank query.
	ErrInvalidQuery = errors.New("query must not be empty")
	// ErrUnavailable is returned when no worker can accept the run.
	ErrUnavailable = errors.New("timeline generation is unavailable")
)

// JobQueue accepts background runs.
type JobQueue interface {
	Submit(name string, job worker.Job) error
}

// Runner executes one timeline generation run.
type Runner interface {
	Run(ctx context.Context, timelineID string) error
}

// TimelineService is a service for creating and reading timelines.
type TimelineService struct {
	store   repository.TimelineStore
	runner  Runner
	queue   JobQueue
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// NewTimelineService creates a new TimelineService.
func NewTimelineService(store repository.TimelineStore, runner Runner, queue JobQueue, logger *logging.Logger, rec *metrics.Recorder) *TimelineService {
	return &TimelineService{
		store:   store,
		runner:  runner,
		queue:   queue,
		logger:  logger,
		metrics: rec,
	}
}

// CreateTimeline persists a new timeline and schedules its generation. It
// returns as soon as the timeline row is committed.
func (s *TimelineService) CreateTimeline(ctx context.Context, query string) (*models.TimelineStatus, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}

	t := models.NewTimeline(query)
	if err := s.store.CreateTimeline(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.TimelineCreated(ctx)

	id := t.ID
	err := s.queue.Submit("timeline:"+id, func(ctx context.Context) error {
		return s.runner.Run(ctx, id)
	})
	if err != nil {
		s.logger.Error("failed to schedule timeline", "timeline_id", id, "error", err)
		s.abandon(context.WithoutCancel(ctx), id)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s.logger.Info("timeline created", "timeline_id", id)
	return t.StatusView(), nil
}

// GetTimeline returns the timeline with all children.
func (s *TimelineService) GetTimeline(ctx context.Context, id string) (*models.Timeline, error) {
	return s.store.GetTimeline(ctx, id)
}

// GetTimelineStatus returns the polling projection.
func (s *TimelineService) GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error) {
	return s.store.GetTimelineStatus(ctx, id)
}

// Ping reports store connectivity.
func (s *TimelineService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// abandon marks a timeline that could not be scheduled as failed.
func (s *TimelineService) abandon(ctx context.Context, id string) {
	err := s.store.InTx(ctx, func(tx repository.TimelineTx) error {
		t, err := tx.LoadTimeline(ctx, id)
		if err != nil {
			return err
		}
		if err := t.Transition(models.StatusFailed); err != nil {
			return err
		}
		return tx.UpdateTimeline(ctx, t)
	})
	if err != nil {
		s.logger.Error("failed to mark unscheduled timeline failed", "timeline_id", id, "error", err)
	}
}
