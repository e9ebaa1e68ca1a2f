// Package metrics holds the OpenTelemetry instruments for timeline runs.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every instrument below.
const MeterName = "narrative-timeline/backend"

// Recorder records pipeline and oracle events. A nil *Recorder is a no-op.
type Recorder struct {
	timelinesCreated metric.Int64Counter
	runsFinished     metric.Int64Counter
	oracleCalls      metric.Int64Counter
	degradations     metric.Int64Counter
	eventsProcessed  metric.Int64Counter
	runDuration      metric.Float64Histogram
}

// New builds a Recorder from the given meter.
func New(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)
	if r.timelinesCreated, err = meter.Int64Counter("timelines_created_total",
		metric.WithDescription("Timelines accepted for generation")); err != nil {
		return nil, fmt.Errorf("timelines_created_total: %w", err)
	}
	if r.runsFinished, err = meter.Int64Counter("timeline_runs_finished_total",
		metric.WithDescription("Generation runs that reached a terminal status")); err != nil {
		return nil, fmt.Errorf("timeline_runs_finished_total: %w", err)
	}
	if r.oracleCalls, err = meter.Int64Counter("oracle_calls_total",
		metric.WithDescription("Oracle completion calls by tier and outcome")); err != nil {
		return nil, fmt.Errorf("oracle_calls_total: %w", err)
	}
	if r.degradations, err = meter.Int64Counter("phase_degradations_total",
		metric.WithDescription("Phase calls that fell back to their default result")); err != nil {
		return nil, fmt.Errorf("phase_degradations_total: %w", err)
	}
	if r.eventsProcessed, err = meter.Int64Counter("anchor_events_processed_total",
		metric.WithDescription("Anchor events persisted with their sources and branches")); err != nil {
		return nil, fmt.Errorf("anchor_events_processed_total: %w", err)
	}
	if r.runDuration, err = meter.Float64Histogram("timeline_run_duration_seconds",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of a generation run")); err != nil {
		return nil, fmt.Errorf("timeline_run_duration_seconds: %w", err)
	}
	return &r, nil
}

// NewGlobal builds a Recorder on the global meter provider.
func NewGlobal() (*Recorder, error) {
	return New(otel.Meter(MeterName))
}

// TimelineCreated counts an accepted create request.
func (r *Recorder) TimelineCreated(ctx context.Context) {
	if r == nil {
		return
	}
	r.timelinesCreated.Add(ctx, 1)
}

// RunFinished counts a run ending with status and records its duration.
func (r *Recorder) RunFinished(ctx context.Context, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	r.runsFinished.Add(ctx, 1, attrs)
	r.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// OracleCall counts one completion call.
func (r *Recorder) OracleCall(ctx context.Context, tier string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.oracleCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	))
}

// PhaseDegraded counts a phase that returned its default.
func (r *Recorder) PhaseDegraded(ctx context.Context, phase string) {
	if r == nil {
		return
	}
	r.degradations.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

// EventProcessed counts one committed anchor event.
func (r *Recorder) EventProcessed(ctx context.Context) {
	if r == nil {
		return
	}
	r.eventsProcessed.Add(ctx, 1)
}
