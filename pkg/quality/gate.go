package quality

import (
	"log/slog"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// Gate evaluates assembled scripts against the configured checks and
// decides whether to accept, retry or reject.
type Gate struct {
	cfg config.QualityConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg config.QualityConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate runs all checks and produces an immutable report for this
// attempt. Attempt counts from 0; attempts beyond the retry budget can
// only be accepted or rejected.
//
// The placeholder check is a hard gate: a script that fails it is
// rejected outright, regardless of the weighted score or remaining
// retries. Conversely, a final-attempt script that passes the
// placeholder check is accepted even below the score threshold, since
// a below-par episode beats no episode at all.
func (g *Gate) Evaluate(script *model.Script, bag *model.FactBag, tmpl config.TemplateConfig, attempt int) *model.QualityReport {
	checks := []model.CheckResult{
		checkPlaceholder(script),
		checkSourceMention(script, bag.LocationName),
		checkLength(script, tmpl),
		checkCoherence(script),
		checkGrounding(script, bag),
	}

	var score, weightSum float64
	for _, c := range checks {
		w := g.cfg.Weights[c.ID]
		score += w * c.Score
		weightSum += w
	}
	if weightSum > 0 {
		score /= weightSum
	}

	report := &model.QualityReport{
		OverallScore: score,
		Checks:       checks,
		Attempt:      attempt,
	}

	placeholderOK := report.Check(CheckPlaceholder).Pass
	lastAttempt := attempt >= g.cfg.MaxRetries

	switch {
	case !placeholderOK:
		report.Verdict = model.VerdictReject
	case score >= g.cfg.AcceptScore:
		report.Verdict = model.VerdictAccept
	case !lastAttempt:
		report.Verdict = model.VerdictRetry
	default:
		report.Verdict = model.VerdictAccept
	}

	slog.Info("Quality evaluation",
		"score", score,
		"verdict", report.Verdict,
		"attempt", attempt,
		"placeholder_ok", placeholderOK)

	return report
}
