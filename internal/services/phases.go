package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/metrics"
	"narrative-timeline/backend/pkg/models"
)

// Skeleton is the phase 1 result: the outline of a timeline.
type Skeleton struct {
	Topic        string
	DateRange    DateRange
	AnchorEvents []AnchorEvent
}

// DateRange holds the raw ISO-8601 bounds suggested by the oracle.
type DateRange struct {
	Start string
	End   string
}

// AnchorEvent is one event named by the skeleton. Date is the raw oracle
// value; it is parsed by the orchestrator. DateErr is set when the element
// carried no readable date at all, in which case Date holds the raw JSON.
type AnchorEvent struct {
	Title    string
	Date     string
	Priority models.Priority
	DateErr  error
}

// Investigation is the phase 2 result for one anchor event.
type Investigation struct {
	Sources   []SourceRecord
	Conflicts []string
}

// SourceRecord is a source as reported by the oracle.
type SourceRecord struct {
	URL              string   `json:"url"`
	Outlet           string   `json:"outlet"`
	CredibilityScore float64  `json:"credibility_score"`
	PublishDate      string   `json:"publish_date,omitempty"`
	Claims           []string `json:"claims"`
}

// BranchRecord is one narrative branch as reported by the oracle.
type BranchRecord struct {
	Narrative        string
	CredibilityScore float64
	Evidence         string
	SourceCount      int
}

const (
	phaseSkeleton    = "skeleton"
	phaseInvestigate = "investigate"
	phaseSynthesize  = "synthesize"
)

// Researcher runs the three oracle phases. Every phase degrades to its
// default result on oracle or decoding failure and never returns an error.
type Researcher struct {
	oracle  OracleClient
	logger  *logging.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewResearcher creates a new Researcher.
func NewResearcher(oracle OracleClient, logger *logging.Logger, rec *metrics.Recorder) *Researcher {
	return &Researcher{
		oracle:  oracle,
		logger:  logger,
		metrics: rec,
		now:     time.Now,
	}
}

// skeletonWire keeps date_range and each anchor element raw so that one
// badly typed element does not discard the whole skeleton.
type skeletonWire struct {
	Topic        looseString       `json:"topic"`
	DateRange    json.RawMessage   `json:"date_range"`
	AnchorEvents []json.RawMessage `json:"anchor_events"`
}

type dateRangeWire struct {
	Start looseString `json:"start"`
	End   looseString `json:"end"`
}

// DiscoverSkeleton asks the pro model for the topic, date range and anchor events.
func (r *Researcher) DiscoverSkeleton(ctx context.Context, query string) Skeleton {
	now := r.now().UTC().Format(time.RFC3339)
	fallback := Skeleton{
		Topic:        query,
		DateRange:    DateRange{Start: now, End: now},
		AnchorEvents: []AnchorEvent{},
	}

	var wire skeletonWire
	if err := r.ask(ctx, phaseSkeleton, TierPro, buildSkeletonPrompt(query), &wire); err != nil {
		return fallback
	}

	sk := Skeleton{Topic: query, AnchorEvents: []AnchorEvent{}}
	if wire.Topic.Set && strings.TrimSpace(wire.Topic.Value) != "" {
		sk.Topic = wire.Topic.Value
	}
	// a reply without a readable range leaves it unset rather than defaulting to now
	var dr dateRangeWire
	if len(wire.DateRange) > 0 && json.Unmarshal(wire.DateRange, &dr) == nil {
		sk.DateRange = DateRange{Start: dr.Start.Value, End: dr.End.Value}
	}
	for _, raw := range wire.AnchorEvents {
		sk.AnchorEvents = append(sk.AnchorEvents, decodeAnchor(raw))
	}
	return sk
}

// decodeAnchor reads one anchor element field by field. A title or priority
// of the wrong type falls back to its default. A date that is present but not
// a string, or an element that is not an object, sets DateErr.
func decodeAnchor(raw json.RawMessage) AnchorEvent {
	ae := AnchorEvent{Title: models.DefaultEventTitle, Priority: models.PriorityMedium}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		ae.Date = string(raw)
		ae.DateErr = fmt.Errorf("expected anchor event object, got %s", raw)
		return ae
	}

	var title, priority, date looseString
	if v, ok := fields["title"]; ok && json.Unmarshal(v, &title) == nil && strings.TrimSpace(title.Value) != "" {
		ae.Title = title.Value
	}
	if v, ok := fields["priority"]; ok && json.Unmarshal(v, &priority) == nil {
		ae.Priority = models.ParsePriority(priority.Value)
	}
	if v, ok := fields["date"]; ok {
		if err := json.Unmarshal(v, &date); err != nil {
			ae.Date = string(v)
			ae.DateErr = err
		} else {
			ae.Date = date.Value
		}
	}
	return ae
}

type investigationWire struct {
	Sources []struct {
		URL              looseString  `json:"url"`
		Outlet           looseString  `json:"outlet"`
		CredibilityScore looseFloat   `json:"credibility_score"`
		PublishDate      looseString  `json:"publish_date"`
		Claims           looseStrings `json:"claims"`
	} `json:"sources"`
	Conflicts looseStrings `json:"conflicts"`
}

// InvestigateEvent asks the flash model for sources and conflicts about one event.
func (r *Researcher) InvestigateEvent(ctx context.Context, title, date, topic string) Investigation {
	inv := Investigation{Sources: []SourceRecord{}, Conflicts: []string{}}

	var wire investigationWire
	if err := r.ask(ctx, phaseInvestigate, TierFlash, buildInvestigatePrompt(title, date, topic), &wire); err != nil {
		return inv
	}

	for _, s := range wire.Sources {
		src := SourceRecord{
			URL:              s.URL.Value,
			Outlet:           models.DefaultOutlet,
			CredibilityScore: models.DefaultCredibility,
			PublishDate:      s.PublishDate.Value,
			Claims:           []string(s.Claims),
		}
		if s.Outlet.Set {
			src.Outlet = s.Outlet.Value
		}
		if s.CredibilityScore.Set {
			src.CredibilityScore = s.CredibilityScore.Value
		}
		if src.Claims == nil {
			src.Claims = []string{}
		}
		inv.Sources = append(inv.Sources, src)
	}
	if wire.Conflicts != nil {
		inv.Conflicts = wire.Conflicts
	}
	return inv
}

type branchWire struct {
	Narrative        looseString `json:"narrative"`
	CredibilityScore looseFloat  `json:"credibility_score"`
	Evidence         joinedText  `json:"evidence"`
	SourceCount      looseCount  `json:"source_count"`
}

// SynthesizeBranches asks the flash model for competing narratives over the sources.
func (r *Researcher) SynthesizeBranches(ctx context.Context, title string, sources []SourceRecord) []BranchRecord {
	branches := []BranchRecord{}

	if sources == nil {
		sources = []SourceRecord{}
	}
	sourcesJSON, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		r.degraded(ctx, phaseSynthesize, err)
		return branches
	}

	var wire []branchWire
	if err := r.ask(ctx, phaseSynthesize, TierFlash, buildSynthesizePrompt(title, string(sourcesJSON)), &wire); err != nil {
		return branches
	}

	for _, b := range wire {
		br := BranchRecord{
			Narrative:        b.Narrative.Value,
			CredibilityScore: models.DefaultCredibility,
			Evidence:         b.Evidence.Value,
		}
		if b.CredibilityScore.Set {
			br.CredibilityScore = b.CredibilityScore.Value
		}
		if b.SourceCount.Set {
			br.SourceCount = b.SourceCount.Value
		}
		branches = append(branches, br)
	}
	return branches
}

// ask runs one oracle exchange and decodes the reply into v, recording
// any failure as a degradation of phase.
func (r *Researcher) ask(ctx context.Context, phase string, tier Tier, prompt string, v any) error {
	raw, err := r.oracle.Complete(ctx, tier, prompt)
	if err != nil {
		r.degraded(ctx, phase, err)
		return err
	}
	if err := ExtractInto(raw, v); err != nil {
		r.degraded(ctx, phase, err)
		return err
	}
	return nil
}

func (r *Researcher) degraded(ctx context.Context, phase string, err error) {
	r.logger.Warn("phase degraded to default", "phase", phase, "error", err)
	r.metrics.PhaseDegraded(ctx, phase)
}
