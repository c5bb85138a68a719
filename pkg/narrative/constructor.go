package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"wanderpod/pkg/config"
	"wanderpod/pkg/llm"
	"wanderpod/pkg/model"
	"wanderpod/pkg/prompt"
)

// Constructor turns a fact bag into narrated beats using the LLM.
type Constructor struct {
	llm     llm.Provider
	prompts *prompt.Manager
	cfg     config.NarrativeConfig
	pool    *ants.Pool
}

// NewConstructor creates a constructor with a worker pool for
// concurrent beat generation.
func NewConstructor(l llm.Provider, pm *prompt.Manager, cfg config.NarrativeConfig) (*Constructor, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 4
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create beat pool: %w", err)
	}
	if cfg.BeatAttempts <= 0 {
		cfg.BeatAttempts = 2
	}
	return &Constructor{llm: l, prompts: pm, cfg: cfg, pool: pool}, nil
}

// Close releases the worker pool.
func (c *Constructor) Close() {
	c.pool.Release()
}

// Build generates all beats for the template. Beats whose generation
// fails after all attempts carry the failure marker; the quality gate
// rejects such scripts, so Build itself never fails on model errors.
func (c *Constructor) Build(ctx context.Context, bag *model.FactBag, name model.TemplateName, pers *model.Personalization) ([]model.Beat, error) {
	_, beats, err := ResolveTemplate(c.cfg, name)
	if err != nil {
		return nil, err
	}

	// Fact selection is sequential so beats don't reuse each other's facts.
	used := make(map[string]bool)
	beatFacts := make([][]string, len(beats))
	for i, b := range beats {
		beatFacts[i] = selectFacts(bag, b.Kind, pers, used)
	}

	var wg sync.WaitGroup
	for i := range beats {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			beats[i].Text = c.generateBeat(ctx, bag.LocationName, &beats[i], beatFacts[i], pers)
		}
		if err := c.pool.Submit(task); err != nil {
			// Pool rejected the task (released or overloaded); run inline.
			task()
		}
	}
	wg.Wait()

	return beats, nil
}

// generateBeat attempts beat generation up to the configured number of
// times, returning the failure marker when all attempts fail.
func (c *Constructor) generateBeat(ctx context.Context, location string, beat *model.Beat, facts []string, pers *model.Personalization) string {
	if len(facts) == 0 {
		slog.Warn("No facts available for beat", "location", location, "beat", beat.Kind)
		return model.GenerationFailureMarker
	}

	depth := ""
	if pers != nil {
		depth = pers.Depth
	}

	// Instructions are rebuilt per attempt; the template's maybe/pick
	// functions re-roll, so a retry never replays the exact prompt that
	// just failed.
	for attempt := 1; attempt <= c.cfg.BeatAttempts; attempt++ {
		promptText, err := c.prompts.Render("beat.tmpl", map[string]any{
			"Location":    location,
			"Kind":        string(beat.Kind),
			"Tone":        beat.Tone,
			"TargetWords": beat.TargetWords,
			"Facts":       facts,
			"Depth":       depth,
		})
		if err != nil {
			slog.Error("Beat prompt render failed", "beat", beat.Kind, "error", err)
			return model.GenerationFailureMarker
		}

		text, err := c.llm.GenerateText(ctx, "beat", promptText)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		slog.Warn("Beat generation attempt failed", "location", location, "beat", beat.Kind, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return model.GenerationFailureMarker
}

// titleResponse is the JSON shape requested by title.tmpl.
type titleResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GenerateTitle asks the LLM for a title and description. Callers fall
// back to the assembler's deterministic title when this fails.
func (c *Constructor) GenerateTitle(ctx context.Context, location, scriptText string) (title, description string, err error) {
	promptText, err := c.prompts.Render("title.tmpl", map[string]any{
		"Location": location,
		"Script":   scriptText,
	})
	if err != nil {
		return "", "", err
	}

	var resp titleResponse
	if err := c.llm.GenerateJSON(ctx, "title", promptText, &resp); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(resp.Title) == "" {
		return "", "", llm.ErrGenerationEmpty
	}
	return resp.Title, resp.Description, nil
}
