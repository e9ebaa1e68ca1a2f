package repository

import (
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"narrative-timeline/backend/pkg/models"
)

var (
	timelineColumns = []string{
		"id", "topic", "query", "status", "progress",
		"date_range_start", "date_range_end", "created_at", "updated_at",
	}
	eventColumns = []string{
		"id", "timeline_id", "title", "description", "event_date", "priority", "event_order", "created_at",
	}
	sourceColumns = []string{
		"s.id", "s.event_id", "s.branch_id", "s.url", "s.outlet", "s.credibility_score",
		"s.publish_date", "s.claims", "s.position", "s.created_at",
	}
	branchColumns = []string{
		"b.id", "b.event_id", "b.narrative", "b.credibility_score", "b.evidence",
		"b.source_count", "b.position", "b.created_at",
	}
)

// statements builds the SQL shared by both stores. ts converts a time value
// into the driver's bind representation.
type statements struct {
	sb sq.StatementBuilderType
	ts func(time.Time) any
}

func newStatements(ph sq.PlaceholderFormat, ts func(time.Time) any) statements {
	return statements{sb: sq.StatementBuilder.PlaceholderFormat(ph), ts: ts}
}

func (s statements) optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.ts(*t)
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func claimsJSON(claims []string) (string, error) {
	if claims == nil {
		claims = []string{}
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}
	return string(b), nil
}

func decodeClaims(raw []byte) ([]string, error) {
	claims := []string{}
	if len(raw) == 0 {
		return claims, nil
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	if claims == nil {
		claims = []string{}
	}
	return claims, nil
}

func (s statements) insertTimeline(t *models.Timeline) sq.InsertBuilder {
	return s.sb.Insert("timelines").
		Columns(timelineColumns...).
		Values(t.ID, t.Topic, t.Query, string(t.Status), t.Progress.String(),
			s.optTime(t.DateRangeStart), s.optTime(t.DateRangeEnd), s.ts(t.CreatedAt), s.ts(t.UpdatedAt))
}

func (s statements) updateTimeline(t *models.Timeline) sq.UpdateBuilder {
	return s.sb.Update("timelines").
		Set("topic", t.Topic).
		Set("status", string(t.Status)).
		Set("progress", t.Progress.String()).
		Set("date_range_start", s.optTime(t.DateRangeStart)).
		Set("date_range_end", s.optTime(t.DateRangeEnd)).
		Set("updated_at", s.ts(t.UpdatedAt)).
		Where(sq.Eq{"id": t.ID})
}

func (s statements) insertEvent(e *models.Event) sq.InsertBuilder {
	return s.sb.Insert("events").
		Columns(eventColumns...).
		Values(e.ID, e.TimelineID, e.Title, optString(e.Description), s.ts(e.EventDate),
			string(e.Priority), e.Order, s.ts(e.CreatedAt))
}

func (s statements) insertSource(src *models.Source) (sq.InsertBuilder, error) {
	claims, err := claimsJSON(src.Claims)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	return s.sb.Insert("sources").
		Columns("id", "event_id", "branch_id", "url", "outlet", "credibility_score",
			"publish_date", "claims", "position", "created_at").
		Values(src.ID, src.EventID, optString(src.BranchID), src.URL, src.Outlet, src.CredibilityScore,
			s.optTime(src.PublishDate), claims, src.Position, s.ts(src.CreatedAt)), nil
}

func (s statements) insertBranch(b *models.Branch) sq.InsertBuilder {
	return s.sb.Insert("branches").
		Columns("id", "event_id", "narrative", "credibility_score", "evidence",
			"source_count", "position", "created_at").
		Values(b.ID, b.EventID, b.Narrative, b.CredibilityScore, optString(b.Evidence),
			b.SourceCount, b.Position, s.ts(b.CreatedAt))
}

func (s statements) selectTimeline(id string) sq.SelectBuilder {
	return s.sb.Select(timelineColumns...).From("timelines").Where(sq.Eq{"id": id})
}

func (s statements) selectStatus(id string) sq.SelectBuilder {
	return s.sb.Select("id", "status", "progress").From("timelines").Where(sq.Eq{"id": id})
}

func (s statements) selectEvents(timelineID string) sq.SelectBuilder {
	return s.sb.Select(eventColumns...).
		From("events").
		Where(sq.Eq{"timeline_id": timelineID}).
		OrderBy("event_order")
}

func (s statements) selectSources(timelineID string) sq.SelectBuilder {
	return s.sb.Select(sourceColumns...).
		From("sources s").
		Join("events e ON e.id = s.event_id").
		Where(sq.Eq{"e.timeline_id": timelineID}).
		OrderBy("e.event_order", "s.position")
}

func (s statements) selectBranches(timelineID string) sq.SelectBuilder {
	return s.sb.Select(branchColumns...).
		From("branches b").
		Join("events e ON e.id = b.event_id").
		Where(sq.Eq{"e.timeline_id": timelineID}).
		OrderBy("e.event_order", "b.position")
}

// prepareTimeline fills identity and timestamps the caller left empty.
func prepareTimeline(t *models.Timeline) {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Status == "" {
		t.Status = models.StatusProcessing
	}
}

func prepareEvent(e *models.Event) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Priority == "" {
		e.Priority = models.PriorityMedium
	}
}

func prepareSource(s *models.Source) {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Claims == nil {
		s.Claims = []string{}
	}
}

func prepareBranch(b *models.Branch) {
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
}
