package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state of a timeline generation run.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned when a status change leaves a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// from -> allowed tos
var validTransitions = map[Status][]Status{
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition reports whether a timeline may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transition moves the timeline to next or returns ErrInvalidTransition.
func (t *Timeline) Transition(next Status) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

// Priority ranks an anchor event.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ParsePriority maps free text onto the enum, falling back to medium.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// Progress counts processed anchor events out of the total discovered.
// It is rendered and stored as "<completed>/<total>".
type Progress struct {
	Completed int
	Total     int
}

// String renders the progress counter.
func (p Progress) String() string {
	return strconv.Itoa(p.Completed) + "/" + strconv.Itoa(p.Total)
}

// ParseProgress parses the "<completed>/<total>" form.
func ParseProgress(s string) (Progress, error) {
	left, right, ok := strings.Cut(s, "/")
	if !ok {
		return Progress{}, fmt.Errorf("progress %q: missing separator", s)
	}
	completed, err := strconv.Atoi(left)
	if err != nil {
		return Progress{}, fmt.Errorf("progress %q: %w", s, err)
	}
	total, err := strconv.Atoi(right)
	if err != nil {
		return Progress{}, fmt.Errorf("progress %q: %w", s, err)
	}
	if completed < 0 || total < 0 || completed > total {
		return Progress{}, fmt.Errorf("progress %q: out of range", s)
	}
	return Progress{Completed: completed, Total: total}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Progress) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Progress) UnmarshalText(b []byte) error {
	parsed, err := ParseProgress(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
