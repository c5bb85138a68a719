package synth

import (
	"errors"
	"log/slog"
	"sort"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// ErrNoEligibleProvider is returned when tier and budget constraints
// rule out every configured provider.
var ErrNoEligibleProvider = errors.New("no synthesis provider satisfies the request constraints")

// Requirements captures the per-request constraints for provider
// selection. Features are preferences, not filters: a provider missing
// them only loses score.
type Requirements struct {
	Entitlement model.Tier
	BudgetUSD   float64 // 0 means use the configured default
	TextLen     int
	Features    []model.Capability
}

// Selector picks a synthesis provider by weighted score over quality,
// cost and feature match.
type Selector struct {
	cfg      config.SelectorConfig
	profiles []model.ProviderProfile
}

// NewSelector creates a selector over the given provider table.
func NewSelector(cfg config.SelectorConfig, profiles []model.ProviderProfile) *Selector {
	return &Selector{cfg: cfg, profiles: profiles}
}

// Select scores every eligible provider and returns the best one.
// Eligibility: the provider's tier must be within the entitlement, and
// its estimated cost for the text must fit the budget. Excluded IDs
// (providers that already failed this request) are skipped.
//
// Score = qw*quality + cw*(1 - cost/maxCost) + fw*featureMatch, with
// costs normalized over the eligible set. Ties break on lower cost,
// then lexicographic provider id, so selection is deterministic.
func (s *Selector) Select(req Requirements, exclude map[string]bool) (*model.SynthesisSelection, error) {
	budget := req.BudgetUSD
	if budget <= 0 {
		budget = s.cfg.DefaultBudget
	}

	type candidate struct {
		profile model.ProviderProfile
		cost    float64
	}

	var eligible []candidate
	maxCost := 0.0
	for _, p := range s.profiles {
		if exclude[p.ID] {
			continue
		}
		if p.Tier.Rank() > req.Entitlement.Rank() {
			continue
		}
		cost := p.CostPerChar * float64(req.TextLen)
		if cost > budget {
			continue
		}
		eligible = append(eligible, candidate{profile: p, cost: cost})
		if cost > maxCost {
			maxCost = cost
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleProvider
	}

	type scored struct {
		candidate
		score float64
	}
	results := make([]scored, 0, len(eligible))
	for _, c := range eligible {
		costScore := 1.0
		if maxCost > 0 {
			costScore = 1 - c.cost/maxCost
		}
		score := s.cfg.QualityWeight*c.profile.Quality +
			s.cfg.CostWeight*costScore +
			s.cfg.FeatureWeight*featureMatch(&c.profile, req.Features)
		results = append(results, scored{candidate: c, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].cost != results[j].cost {
			return results[i].cost < results[j].cost
		}
		return results[i].profile.ID < results[j].profile.ID
	})

	best := results[0]
	slog.Info("Synthesis provider selected",
		"provider", best.profile.ID,
		"tier", best.profile.Tier,
		"score", best.score,
		"estimated_cost", best.cost,
		"eligible", len(results))

	return &model.SynthesisSelection{
		Provider:      best.profile,
		WeightedScore: best.score,
		EstimatedCost: best.cost,
	}, nil
}

// featureMatch returns the fraction of requested capabilities the
// profile supports. No requested features means a perfect match.
func featureMatch(p *model.ProviderProfile, features []model.Capability) float64 {
	if len(features) == 0 {
		return 1.0
	}
	matched := 0
	for _, f := range features {
		if p.Supports(f) {
			matched++
		}
	}
	return float64(matched) / float64(len(features))
}
