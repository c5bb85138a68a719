package narrative

import (
	"sort"

	"wanderpod/pkg/model"
)

// categoryAffinity maps beat kinds to the categories that naturally
// feed them. Unlisted categories get a low baseline so thin bags can
// still fill every beat.
var categoryAffinity = map[model.BeatKind]map[model.FactCategory]float64{
	model.BeatHook: {
		model.CategoryAnecdotes: 3.0,
		model.CategorySummary:   2.0,
		model.CategoryCulture:   1.5,
	},
	model.BeatContext: {
		model.CategorySummary:   3.0,
		model.CategoryGeography: 2.5,
		model.CategoryHistory:   2.0,
	},
	model.BeatDiscovery: {
		model.CategoryAnecdotes: 3.0,
		model.CategoryHistory:   2.0,
		model.CategoryCulture:   2.0,
	},
	model.BeatReflection: {
		model.CategoryCulture: 3.0,
		model.CategoryHistory: 2.5,
	},
	model.BeatConclusion: {
		model.CategorySummary: 3.0,
		model.CategoryCulture: 1.5,
	},
}

const factsPerBeat = 5

type scoredFact struct {
	fact  model.Fact
	score float64
}

// selectFacts picks the most relevant facts for a beat, honoring
// personalization weights and avoiding facts already used by earlier
// beats. Selected facts are recorded in used.
//
// For the discovery beat, surprise tolerance caps how obscure a fact
// may be. When every candidate exceeds the tolerance the most relevant
// one is taken anyway; a beat is never left without facts while the
// bag has any.
func selectFacts(bag *model.FactBag, kind model.BeatKind, pers *model.Personalization, used map[string]bool) []string {
	affinity := categoryAffinity[kind]

	var scored []scoredFact
	for _, cat := range model.Categories {
		base, ok := affinity[cat]
		if !ok {
			base = 0.5
		}
		if pers != nil {
			if w, ok := pers.TopicWeights[cat]; ok {
				base *= 1 + w
			}
		}
		for _, f := range bag.Facts[cat] {
			if used[f.Text] {
				continue
			}
			scored = append(scored, scoredFact{
				fact:  f,
				score: base + f.Novelty*0.5,
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if kind == model.BeatDiscovery {
		scored = gateNovelty(scored, pers)
	}

	n := factsPerBeat
	if len(scored) < n {
		n = len(scored)
	}
	out := make([]string, 0, n)
	for _, s := range scored[:n] {
		out = append(out, s.fact.Text)
		used[s.fact.Text] = true
	}
	return out
}

// gateNovelty filters candidates to those within the surprise
// tolerance, falling back to the single highest-relevance candidate
// when none qualify. Input must be sorted by score descending.
func gateNovelty(scored []scoredFact, pers *model.Personalization) []scoredFact {
	tolerance := 5.0
	if pers != nil {
		tolerance = pers.SurpriseTolerance
	}

	var eligible []scoredFact
	for _, s := range scored {
		if s.fact.Novelty <= tolerance {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 && len(scored) > 0 {
		return scored[:1]
	}
	return eligible
}
