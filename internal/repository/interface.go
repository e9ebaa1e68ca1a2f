package repository

import (
	"context"
	"errors"

	"narrative-timeline/backend/pkg/models"
)

// ErrNotFound is returned for an unknown timeline id.
var ErrNotFound = errors.New("timeline not found")

// TimelineStore persists timelines and their children.
type TimelineStore interface {
	// CreateTimeline inserts a new timeline, assigning its ID when empty.
	CreateTimeline(ctx context.Context, t *models.Timeline) error
	// GetTimeline loads a timeline with its events, each event's sources and
	// branches, and each branch's attributed sources.
	GetTimeline(ctx context.Context, id string) (*models.Timeline, error)
	// GetTimelineStatus loads only the id, status and progress.
	GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error)
	// InTx runs fn inside one transaction, committing when it returns nil.
	InTx(ctx context.Context, fn func(tx TimelineTx) error) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Migrate creates the schema when missing.
	Migrate(ctx context.Context) error
	// Close releases the underlying connections.
	Close()
}

// TimelineTx is the set of writes available inside InTx.
type TimelineTx interface {
	// LoadTimeline loads and locks the timeline row, without children.
	LoadTimeline(ctx context.Context, id string) (*models.Timeline, error)
	// UpdateTimeline writes topic, status, progress and date range.
	UpdateTimeline(ctx context.Context, t *models.Timeline) error
	CreateEvent(ctx context.Context, e *models.Event) error
	CreateSource(ctx context.Context, s *models.Source) error
	CreateBranch(ctx context.Context, b *models.Branch) error
}
