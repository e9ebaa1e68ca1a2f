package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/metrics"
	"narrative-timeline/backend/internal/repository"
	"narrative-timeline/backend/pkg/models"
)

// Orchestrator drives one generation run from query to a completed or
// failed timeline, committing progress after each anchor event.
type Orchestrator struct {
	store    repository.TimelineStore
	research *Researcher
	logger   *logging.Logger
	metrics  *metrics.Recorder
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(store repository.TimelineStore, research *Researcher, logger *logging.Logger, rec *metrics.Recorder) *Orchestrator {
	return &Orchestrator{
		store:    store,
		research: research,
		logger:   logger,
		metrics:  rec,
	}
}

// Run generates the timeline with the given id. Any error, including a
// recovered panic, marks the timeline failed before being returned. A run
// refused because the timeline is unknown or already terminal changes
// nothing and is not counted as a finished run.
func (o *Orchestrator) Run(ctx context.Context, timelineID string) (err error) {
	start := time.Now()
	log := o.logger.With("timeline_id", timelineID)
	refused := false

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("timeline run panicked: %v", r)
		}
		if refused {
			return
		}
		status := models.StatusCompleted
		if err != nil {
			status = models.StatusFailed
			o.markFailed(context.WithoutCancel(ctx), log, timelineID, err)
		}
		o.metrics.RunFinished(ctx, string(status), time.Since(start))
	}()

	var query string
	err = o.store.InTx(ctx, func(tx repository.TimelineTx) error {
		t, err := tx.LoadTimeline(ctx, timelineID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusProcessing {
			return fmt.Errorf("%w: timeline is already %s", models.ErrInvalidTransition, t.Status)
		}
		query = t.Query
		return nil
	})
	if err != nil {
		refused = errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, repository.ErrNotFound)
		return err
	}

	skeleton := o.research.DiscoverSkeleton(ctx, query)
	total := len(skeleton.AnchorEvents)
	log.Info("skeleton discovered", "topic", skeleton.Topic, "anchor_events", total)

	err = o.update(ctx, timelineID, func(t *models.Timeline) {
		t.Topic = skeleton.Topic
		// the range is shown as a pair, so a half-readable one is dropped
		rangeStart, errStart := ParseNaiveTime(skeleton.DateRange.Start)
		rangeEnd, errEnd := ParseNaiveTime(skeleton.DateRange.End)
		if errStart == nil && errEnd == nil {
			t.DateRangeStart, t.DateRangeEnd = &rangeStart, &rangeEnd
		}
		t.Progress = models.Progress{Completed: 0, Total: total}
	}, nil)
	if err != nil {
		return err
	}

	for idx, anchor := range skeleton.AnchorEvents {
		if err := o.processAnchor(ctx, log, timelineID, skeleton.Topic, idx, total, anchor); err != nil {
			return err
		}
	}

	err = o.update(ctx, timelineID, nil, func(t *models.Timeline) error {
		return t.Transition(models.StatusCompleted)
	})
	if err != nil {
		return err
	}
	log.Info("timeline completed", "events", total, "elapsed", time.Since(start).String())
	return nil
}

func (o *Orchestrator) processAnchor(ctx context.Context, log *logging.Logger, timelineID, topic string, idx, total int, anchor AnchorEvent) error {
	if anchor.DateErr != nil {
		return &StructuralFieldError{Field: "date", Index: idx, Value: anchor.Date, Err: anchor.DateErr}
	}
	if anchor.Date == "" {
		return &StructuralFieldError{Field: "date", Index: idx}
	}
	eventDate, err := ParseNaiveTime(anchor.Date)
	if err != nil {
		return &StructuralFieldError{Field: "date", Index: idx, Value: anchor.Date, Err: err}
	}

	inv := o.research.InvestigateEvent(ctx, anchor.Title, anchor.Date, topic)
	branches := o.research.SynthesizeBranches(ctx, anchor.Title, inv.Sources)
	if len(inv.Conflicts) > 0 {
		log.Debug("conflicting accounts reported", "event", anchor.Title, "conflicts", len(inv.Conflicts))
	}

	err = o.store.InTx(ctx, func(tx repository.TimelineTx) error {
		t, err := tx.LoadTimeline(ctx, timelineID)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return fmt.Errorf("%w: timeline is already %s", models.ErrInvalidTransition, t.Status)
		}

		event := &models.Event{
			TimelineID: timelineID,
			Title:      anchor.Title,
			EventDate:  eventDate,
			Priority:   anchor.Priority,
			Order:      idx,
		}
		if err := tx.CreateEvent(ctx, event); err != nil {
			return err
		}

		for pos, rec := range inv.Sources {
			src := &models.Source{
				EventID:          event.ID,
				URL:              rec.URL,
				Outlet:           rec.Outlet,
				CredibilityScore: rec.CredibilityScore,
				Claims:           rec.Claims,
				Position:         pos,
			}
			if ts, err := ParseNaiveTime(rec.PublishDate); err == nil {
				src.PublishDate = &ts
			}
			if err := tx.CreateSource(ctx, src); err != nil {
				return err
			}
		}

		for pos, rec := range branches {
			evidence := rec.Evidence
			br := &models.Branch{
				EventID:          event.ID,
				Narrative:        rec.Narrative,
				CredibilityScore: rec.CredibilityScore,
				Evidence:         &evidence,
				SourceCount:      rec.SourceCount,
				Position:         pos,
			}
			if err := tx.CreateBranch(ctx, br); err != nil {
				return err
			}
		}

		t.Progress = models.Progress{Completed: idx + 1, Total: total}
		return tx.UpdateTimeline(ctx, t)
	})
	if err != nil {
		return fmt.Errorf("failed to persist anchor event %d: %w", idx, err)
	}

	o.metrics.EventProcessed(ctx)
	log.Info("anchor event processed", "order", idx, "progress", models.Progress{Completed: idx + 1, Total: total}.String(),
		"sources", len(inv.Sources), "branches", len(branches))
	return nil
}

// update loads the timeline in a transaction, applies mutate (or the
// fallible transition) and writes it back.
func (o *Orchestrator) update(ctx context.Context, id string, mutate func(*models.Timeline), transition func(*models.Timeline) error) error {
	return o.store.InTx(ctx, func(tx repository.TimelineTx) error {
		t, err := tx.LoadTimeline(ctx, id)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return fmt.Errorf("%w: timeline is already %s", models.ErrInvalidTransition, t.Status)
		}
		if mutate != nil {
			mutate(t)
		}
		if transition != nil {
			if err := transition(t); err != nil {
				return err
			}
		}
		return tx.UpdateTimeline(ctx, t)
	})
}

// markFailed moves the timeline to failed in a fresh transaction. A timeline
// that is already terminal is left untouched.
func (o *Orchestrator) markFailed(ctx context.Context, log *logging.Logger, id string, cause error) {
	log.Error("timeline run failed", "error", cause)
	err := o.store.InTx(ctx, func(tx repository.TimelineTx) error {
		t, err := tx.LoadTimeline(ctx, id)
		if err != nil {
			return err
		}
		if t.Status.IsTerminal() {
			return nil
		}
		if err := t.Transition(models.StatusFailed); err != nil {
			return err
		}
		return tx.UpdateTimeline(ctx, t)
	})
	if err != nil {
		log.Error("failed to mark timeline failed", "error", err)
	}
}
