// Package podcast orchestrates the full episode generation pipeline:
// facts, narrative, quality gate, synthesis and post-processing.
package podcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wanderpod/pkg/config"
	"wanderpod/pkg/facts"
	"wanderpod/pkg/model"
	"wanderpod/pkg/narrative"
	"wanderpod/pkg/progress"
	"wanderpod/pkg/store"
	"wanderpod/pkg/synth"
	"wanderpod/pkg/tracker"
)

// ErrScriptRejected indicates the quality gate rejected the script
// after exhausting the retry budget.
var ErrScriptRejected = errors.New("script rejected by quality gate")

// Request describes one episode generation job.
type Request struct {
	Location        string                 `json:"location"`
	Template        model.TemplateName     `json:"template,omitempty"`
	Personalization *model.Personalization `json:"personalization,omitempty"`
	Entitlement     model.Tier             `json:"entitlement,omitempty"`
	BudgetUSD       float64                `json:"budget_usd,omitempty"`
	Features        []model.Capability     `json:"features,omitempty"`
}

// scriptBuilder is what the service needs from the narrative layer.
type scriptBuilder interface {
	Build(ctx context.Context, bag *model.FactBag, name model.TemplateName, pers *model.Personalization) ([]model.Beat, error)
	GenerateTitle(ctx context.Context, location, scriptText string) (title, description string, err error)
}

// gate is what the service needs from the quality layer.
type gate interface {
	Evaluate(script *model.Script, bag *model.FactBag, tmpl config.TemplateConfig, attempt int) *model.QualityReport
}

// postProcessor is what the service needs from the audio layer.
type postProcessor interface {
	Process(data []byte, format string) (*model.AudioArtifact, error)
}

// Service runs the episode pipeline end to end.
type Service struct {
	cfg          *config.Config
	source       facts.Source
	builder      scriptBuilder
	gate         gate
	selector     *synth.Selector
	synthesizers map[string]synth.Synthesizer
	processor    postProcessor
	store        store.Store
	tracker      *tracker.Tracker
	reporter     progress.Reporter
}

// NewService wires the pipeline. The synthesizers map is keyed by
// provider profile ID.
func NewService(
	cfg *config.Config,
	source facts.Source,
	builder scriptBuilder,
	g gate,
	selector *synth.Selector,
	synthesizers map[string]synth.Synthesizer,
	processor postProcessor,
	st store.Store,
	trk *tracker.Tracker,
	reporter progress.Reporter,
) *Service {
	return &Service{
		cfg:          cfg,
		source:       source,
		builder:      builder,
		gate:         g,
		selector:     selector,
		synthesizers: synthesizers,
		processor:    processor,
		store:        st,
		tracker:      trk,
		reporter:     reporter,
	}
}

// Generate produces one episode for the request. Failed beats are
// handled by the quality gate (retry then reject); failed synthesis
// providers trigger re-selection among the remaining eligible ones.
func (s *Service) Generate(ctx context.Context, req Request) (*model.Episode, error) {
	if req.Location == "" {
		return nil, fmt.Errorf("location is required")
	}
	template := req.Template
	if template == "" {
		template = model.TemplateBase
	}
	entitlement := req.Entitlement
	if entitlement == "" {
		entitlement = model.TierFree
	}

	tmplCfg, _, err := narrative.ResolveTemplate(s.cfg.Narrative, template)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	started := time.Now()
	slog.Info("Episode generation started", "id", id, "location", req.Location, "template", template)

	bag, err := s.source.Facts(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	if bag.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", facts.ErrContentUnavailable, req.Location)
	}
	s.reporter.Report(id, req.Location, model.StageContentGathered)

	script, report, err := s.buildScript(ctx, id, bag, template, tmplCfg, req.Personalization)
	if err != nil {
		return nil, err
	}

	selection, audioData, format, err := s.synthesize(ctx, script, synth.Requirements{
		Entitlement: entitlement,
		BudgetUSD:   req.BudgetUSD,
		TextLen:     len(script.Text),
		Features:    req.Features,
	})
	if err != nil {
		return nil, err
	}
	s.tracker.TrackSynthesis(selection.Provider.ID, len(script.Text), selection.Provider.CostPerChar)
	s.reporter.Report(id, req.Location, model.StageAudioSynthesized)

	artifact, err := s.processor.Process(audioData, format)
	if err != nil {
		return nil, fmt.Errorf("post-processing failed: %w", err)
	}
	s.reporter.Report(id, req.Location, model.StagePostProcessed)

	episode := &model.Episode{
		ID:        id,
		Location:  req.Location,
		Script:    *script,
		Report:    *report,
		Selection: *selection,
		Audio:     *artifact,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveEpisode(ctx, episode); err != nil {
		return nil, fmt.Errorf("failed to persist episode: %w", err)
	}

	slog.Info("Episode generation finished",
		"id", id,
		"location", req.Location,
		"provider", selection.Provider.ID,
		"score", report.OverallScore,
		"duration", time.Since(started))
	return episode, nil
}

// buildScript runs the generate-evaluate loop. Each retry regenerates
// the whole script; reports are immutable per attempt.
func (s *Service) buildScript(ctx context.Context, id string, bag *model.FactBag, template model.TemplateName, tmplCfg config.TemplateConfig, pers *model.Personalization) (*model.Script, *model.QualityReport, error) {
	for attempt := 0; ; attempt++ {
		beats, err := s.builder.Build(ctx, bag, template, pers)
		if err != nil {
			return nil, nil, err
		}

		script := narrative.Assemble(bag.LocationName, template, beats)
		if s.cfg.Narrative.EnrichTitles {
			s.enrichTitle(ctx, bag.LocationName, script)
		}
		s.reporter.Report(id, bag.LocationName, model.StageScriptGenerated)

		report := s.gate.Evaluate(script, bag, tmplCfg, attempt)
		s.reporter.Report(id, bag.LocationName, model.StageQualityEvaluated)

		switch report.Verdict {
		case model.VerdictAccept:
			return script, report, nil
		case model.VerdictRetry:
			slog.Info("Regenerating script after quality retry", "id", id, "attempt", attempt, "score", report.OverallScore)
			continue
		default:
			return nil, nil, fmt.Errorf("%w (score %.2f after %d attempts)", ErrScriptRejected, report.OverallScore, attempt+1)
		}
	}
}

// enrichTitle upgrades the assembler's deterministic title with a
// model-written one when available. Off by default so the derived
// "Discover {location}" title stays canonical.
func (s *Service) enrichTitle(ctx context.Context, location string, script *model.Script) {
	title, description, err := s.builder.GenerateTitle(ctx, location, script.Text)
	if err != nil {
		slog.Warn("Title generation failed, keeping deterministic title", "location", location, "error", err)
		return
	}
	script.Title = title
	if description != "" {
		script.Description = description
	}
}

// synthesize selects a provider and synthesizes the script, falling
// back to the next eligible provider when one fails with a synthesis
// error.
func (s *Service) synthesize(ctx context.Context, script *model.Script, req synth.Requirements) (*model.SynthesisSelection, []byte, string, error) {
	exclude := make(map[string]bool)
	var lastErr error

	for {
		selection, err := s.selector.Select(req, exclude)
		if err != nil {
			if lastErr != nil {
				return nil, nil, "", fmt.Errorf("all eligible providers failed: %w", lastErr)
			}
			return nil, nil, "", err
		}

		engine, ok := s.synthesizers[selection.Provider.ID]
		if !ok {
			slog.Error("No engine registered for provider", "provider", selection.Provider.ID)
			exclude[selection.Provider.ID] = true
			continue
		}

		data, format, err := engine.Synthesize(ctx, script.Text, selection.Provider.Voice)
		if err == nil {
			return selection, data, format, nil
		}

		if !synth.IsSynthesisError(err) {
			return nil, nil, "", err
		}
		slog.Warn("Synthesis failed, trying next provider", "provider", selection.Provider.ID, "error", err)
		exclude[selection.Provider.ID] = true
		lastErr = err
	}
}
