package repository

import (
	"github.com/google/uuid"

	"narrative-timeline/backend/pkg/models"
)

func newID() string {
	return uuid.New().String()
}

// assemble attaches children to their owners. All slices must come from the
// same read snapshot.
func assemble(t *models.Timeline, events []*models.Event, sources []*models.Source, branches []*models.Branch) {
	t.Events = make([]*models.Event, 0, len(events))
	eventsByID := make(map[string]*models.Event, len(events))
	for _, e := range events {
		e.Sources = []*models.Source{}
		e.Branches = []*models.Branch{}
		eventsByID[e.ID] = e
		t.Events = append(t.Events, e)
	}

	branchesByID := make(map[string]*models.Branch, len(branches))
	for _, b := range branches {
		e, ok := eventsByID[b.EventID]
		if !ok {
			continue
		}
		b.Sources = []*models.Source{}
		branchesByID[b.ID] = b
		e.Branches = append(e.Branches, b)
	}

	for _, s := range sources {
		e, ok := eventsByID[s.EventID]
		if !ok {
			continue
		}
		e.Sources = append(e.Sources, s)
		if s.BranchID == nil {
			continue
		}
		if b, ok := branchesByID[*s.BranchID]; ok {
			b.Sources = append(b.Sources, s)
		}
	}
}
