// Package models defines the domain models for the timeline service
package models

import (
	"time"
)

// Timeline is the generated artifact for one query: a topic, a date range
// and the ordered events discovered for it.
type Timeline struct {
	ID             string     `json:"id"`
	Topic          string     `json:"topic"`
	Query          string     `json:"query"`
	Status         Status     `json:"status"`
	Progress       Progress   `json:"progress"`
	DateRangeStart *time.Time `json:"date_range_start"`
	DateRangeEnd   *time.Time `json:"date_range_end"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"-"`

	Events []*Event `json:"events"`
}

// Event is a single anchor event of a timeline.
type Event struct {
	ID          string    `json:"id"`
	TimelineID  string    `json:"-"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	EventDate   time.Time `json:"event_date"`
	Priority    Priority  `json:"priority"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"-"`

	Branches []*Branch `json:"branches"`
	Sources  []*Source `json:"sources"`
}

// Branch is one narrative interpretation of an event.
type Branch struct {
	ID               string    `json:"id"`
	EventID          string    `json:"-"`
	Narrative        string    `json:"narrative"`
	CredibilityScore float64   `json:"credibility_score"`
	Evidence         *string   `json:"evidence"`
	SourceCount      int       `json:"source_count"`
	Position         int       `json:"-"`
	CreatedAt        time.Time `json:"-"`

	Sources []*Source `json:"sources,omitempty"`
}

// Source is a cited outlet contributing claims to an event.
type Source struct {
	ID               string     `json:"id"`
	EventID          string     `json:"-"`
	BranchID         *string    `json:"branch_id,omitempty"`
	URL              string     `json:"url"`
	Outlet           string     `json:"outlet"`
	CredibilityScore float64    `json:"credibility_score"`
	PublishDate      *time.Time `json:"publish_date"`
	Claims           []string   `json:"claims"`
	Position         int        `json:"-"`
	CreatedAt        time.Time  `json:"-"`
}

// Default values applied when the oracle omits a field.
const (
	DefaultCredibility = 0.5
	DefaultEventTitle  = "Untitled Event"
	DefaultOutlet      = "Unknown"
)

// NewTimeline returns a timeline in its initial state for the given query.
func NewTimeline(query string) *Timeline {
	now := time.Now().UTC()
	return &Timeline{
		Topic:     query,
		Query:     query,
		Status:    StatusProcessing,
		Progress:  Progress{},
		CreatedAt: now,
		UpdatedAt: now,
		Events:    []*Event{},
	}
}

// StatusView returns the lightweight polling projection of the timeline.
func (t *Timeline) StatusView() *TimelineStatus {
	return &TimelineStatus{
		ID:       t.ID,
		Status:   t.Status,
		Progress: t.Progress,
	}
}

// TimelineCreate is the request body accepted by the create endpoint.
type TimelineCreate struct {
	Query string `json:"query"`
}

// TimelineStatus is returned by create and status endpoints.
type TimelineStatus struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Progress Progress `json:"progress"`
}

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
