// Package pipeline wires ingestion, turn merging, role mapping, cleanup and
// narrative rendering into one pass over an engine result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/centomomd/voxnorm/internal/cleanup"
	"github.com/centomomd/voxnorm/internal/ingest"
	"github.com/centomomd/voxnorm/internal/narrative"
	"github.com/centomomd/voxnorm/internal/observe"
	"github.com/centomomd/voxnorm/internal/rolemap"
	"github.com/centomomd/voxnorm/pkg/dialog"
)

// Stage names used in timings and metrics.
const (
	StageIngest    = "ingest"
	StageMerge     = "merge"
	StageRoleMap   = "rolemap"
	StageCleanup   = "cleanup"
	StageNarrative = "narrative"
)

// Artifacts bundles everything a pipeline run produces.
type Artifacts struct {
	// Dialog is the merged dialog after ingestion.
	Dialog *dialog.Dialog `json:"dialog"`

	// RoleMap assigns a clinical role to every speaker label in Dialog.
	RoleMap dialog.RoleMap `json:"roleMap"`

	// Cleaned is the dialog after profile-governed cleanup, with roles
	// attached per turn.
	Cleaned *cleanup.Dialog `json:"cleaned"`

	// Narrative is the rendered narrative of Cleaned.
	Narrative *narrative.Output `json:"narrative"`

	// Timings records per-stage wall time.
	Timings map[string]time.Duration `json:"timings"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithIngestor replaces the default ingestor.
func WithIngestor(ing *ingest.Ingestor) Option {
	return func(p *Pipeline) { p.ingestor = ing }
}

// WithMapper replaces the default role mapper.
func WithMapper(m *rolemap.Mapper) Option {
	return func(p *Pipeline) { p.mapper = m }
}

// WithCleanupProfile sets the cleanup profile. Defaults to
// [cleanup.DefaultProfile].
func WithCleanupProfile(profile cleanup.Profile) Option {
	return func(p *Pipeline) { p.profile = profile }
}

// WithNarrativeOptions sets narrative rendering options.
func WithNarrativeOptions(opts narrative.Options) Option {
	return func(p *Pipeline) { p.narrative = opts }
}

// Pipeline runs the full normalization pass.
type Pipeline struct {
	log       *slog.Logger
	metrics   *observe.Metrics
	ingestor  *ingest.Ingestor
	mapper    *rolemap.Mapper
	profile   cleanup.Profile
	narrative narrative.Options
}

// New creates a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		log:      slog.Default(),
		ingestor: ingest.New(),
		mapper:   rolemap.New(),
		profile:  cleanup.DefaultProfile(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Process runs every stage over res and returns the collected artifacts.
// The context is checked between stages so a cancelled run stops early.
func (p *Pipeline) Process(ctx context.Context, res *dialog.EngineResult) (*Artifacts, error) {
	timings := make(map[string]time.Duration, 5)
	art := &Artifacts{Timings: timings}

	d, err := timed(ctx, timings, p.metrics, StageIngest, func() (*dialog.Dialog, error) {
		return p.ingestor.Execute(res)
	})
	if err != nil {
		p.metrics.RecordRun(ctx, "error")
		return nil, fmt.Errorf("ingest: %w", err)
	}
	p.metrics.AddTurns(ctx, len(d.Turns))
	p.log.Debug("ingested engine result",
		"turns", len(d.Turns),
		"speakers", d.Metadata.SpeakerCount,
		"duration", d.Metadata.TotalDuration)

	merged, err := timed(ctx, timings, p.metrics, StageMerge, func() (*dialog.Dialog, error) {
		return mergeTurns(d), nil
	})
	if err != nil {
		p.metrics.RecordRun(ctx, "error")
		return nil, err
	}
	art.Dialog = merged

	roles, err := timed(ctx, timings, p.metrics, StageRoleMap, func() (dialog.RoleMap, error) {
		return p.mapper.Execute(merged)
	})
	if err != nil {
		p.metrics.RecordRun(ctx, "error")
		return nil, fmt.Errorf("rolemap: %w", err)
	}
	art.RoleMap = roles

	cleaned, err := timed(ctx, timings, p.metrics, StageCleanup, func() (*cleanup.Dialog, error) {
		return cleanup.Apply(merged, roles, p.profile), nil
	})
	if err != nil {
		p.metrics.RecordRun(ctx, "error")
		return nil, err
	}
	art.Cleaned = cleaned

	out, err := timed(ctx, timings, p.metrics, StageNarrative, func() (*narrative.Output, error) {
		return narrative.Render(cleaned, p.narrative)
	})
	if err != nil {
		p.metrics.RecordRun(ctx, "error")
		return nil, fmt.Errorf("narrative: %w", err)
	}
	art.Narrative = out

	p.metrics.RecordRun(ctx, "ok")
	p.log.Info("pipeline complete",
		"turns", len(merged.Turns),
		"cleanedTurns", len(cleaned.Turns),
		"format", out.Format)
	return art, nil
}

// timed runs fn, records its wall time under stage, and bails out first if
// the context is already done.
func timed[T any](ctx context.Context, timings map[string]time.Duration, m *observe.Metrics, stage string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	start := time.Now()
	v, err := fn()
	elapsed := time.Since(start)
	timings[stage] = elapsed
	m.RecordStage(ctx, stage, elapsed.Seconds())
	return v, err
}
