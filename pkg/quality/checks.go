package quality

import (
	"fmt"
	"strings"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// Check IDs. The placeholder check is the only hard gate: a script
// failing it can never be accepted.
const (
	CheckPlaceholder   = "placeholder"
	CheckSourceMention = "source_mention"
	CheckLength        = "length"
	CheckCoherence     = "coherence"
	CheckGrounding     = "grounding"
)

// Filler the text generator falls back to when it stalls. A single
// occurrence can be legitimate narration; repetition never is.
var fillerPhrases = []string{
	"let's continue",
	"moving on to the next",
	"as mentioned before",
}

// checkPlaceholder fails when any beat carries the generation failure
// marker, the marker leaked into the script text, or a known filler
// phrase repeats.
func checkPlaceholder(script *model.Script) model.CheckResult {
	res := model.CheckResult{ID: CheckPlaceholder, Pass: true, Score: 1}
	for _, b := range script.Beats {
		if b.IsPlaceholder() {
			res.Pass = false
			res.Score = 0
			res.Message = fmt.Sprintf("beat %q failed generation", b.Kind)
			return res
		}
	}
	if strings.Contains(script.Text, model.GenerationFailureMarker) {
		res.Pass = false
		res.Score = 0
		res.Message = "failure marker present in script text"
		return res
	}
	lower := strings.ToLower(script.Text)
	for _, p := range fillerPhrases {
		if strings.Count(lower, p) >= 2 {
			res.Pass = false
			res.Score = 0
			res.Message = fmt.Sprintf("filler phrase %q repeated", p)
			return res
		}
	}
	return res
}

// checkSourceMention verifies the narration actually names the place
// it is about. Case-insensitive; the location may arrive as a full
// "City, Country" string.
func checkSourceMention(script *model.Script, locationName string) model.CheckResult {
	res := model.CheckResult{ID: CheckSourceMention}
	if locationName == "" {
		res.Message = "no location name to check"
		return res
	}

	lower := strings.ToLower(script.Text)
	if strings.Contains(lower, strings.ToLower(locationName)) {
		res.Pass = true
		res.Score = 1
		return res
	}
	// "Lisbon, Portugal" still counts if the script says just "Lisbon"
	if city, _, ok := strings.Cut(locationName, ","); ok {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(city))) {
			res.Pass = true
			res.Score = 1
			return res
		}
	}
	res.Message = fmt.Sprintf("script never mentions %q", locationName)
	return res
}

// checkLength verifies the script stays within the template's word
// bounds, with a proportional falloff outside them.
func checkLength(script *model.Script, tmpl config.TemplateConfig) model.CheckResult {
	words := script.WordCount()
	res := model.CheckResult{ID: CheckLength}

	if words >= tmpl.MinWords && words <= tmpl.MaxWords {
		res.Pass = true
		res.Score = 1
		return res
	}

	var ratio float64
	if words < tmpl.MinWords {
		ratio = float64(words) / float64(tmpl.MinWords)
		res.Message = fmt.Sprintf("script too short: %d words, minimum %d", words, tmpl.MinWords)
	} else {
		ratio = float64(tmpl.MaxWords) / float64(words)
		res.Message = fmt.Sprintf("script too long: %d words, maximum %d", words, tmpl.MaxWords)
	}
	if ratio < 0 {
		ratio = 0
	}
	res.Score = ratio
	// Mild overruns still pass
	res.Pass = ratio >= 0.9
	return res
}

// checkCoherence applies cheap structural heuristics: every configured
// beat produced prose, and sentences are neither fragments nor walls.
func checkCoherence(script *model.Script) model.CheckResult {
	res := model.CheckResult{ID: CheckCoherence}

	if len(script.Beats) == 0 {
		res.Message = "no beats"
		return res
	}

	filled := 0
	for _, b := range script.Beats {
		if !b.IsPlaceholder() && strings.TrimSpace(b.Text) != "" {
			filled++
		}
	}
	beatScore := float64(filled) / float64(len(script.Beats))

	sentences := model.Sentences(script.Text)
	sentenceScore := 1.0
	if len(sentences) > 0 {
		odd := 0
		for _, s := range sentences {
			n := len(strings.Fields(s))
			if n < 3 || n > 60 {
				odd++
			}
		}
		sentenceScore = 1 - float64(odd)/float64(len(sentences))
	}

	res.Score = 0.7*beatScore + 0.3*sentenceScore
	res.Pass = res.Score >= 0.7
	if !res.Pass {
		res.Message = fmt.Sprintf("structural issues: %d/%d beats filled", filled, len(script.Beats))
	}
	return res
}

// checkGrounding measures how much of the script traces back to the
// fact bag by content-word overlap per sentence.
func checkGrounding(script *model.Script, bag *model.FactBag) model.CheckResult {
	res := model.CheckResult{ID: CheckGrounding}

	factWords := make(map[string]bool)
	for _, f := range bag.All() {
		for _, w := range contentWords(f.Text) {
			factWords[w] = true
		}
	}
	factWords[strings.ToLower(bag.LocationName)] = true

	sentences := model.Sentences(script.Text)
	if len(sentences) == 0 || len(factWords) == 0 {
		res.Message = "nothing to ground"
		return res
	}

	grounded := 0
	for _, s := range sentences {
		for _, w := range contentWords(s) {
			if factWords[w] {
				grounded++
				break
			}
		}
	}

	res.Score = float64(grounded) / float64(len(sentences))
	res.Pass = res.Score >= 0.5
	if !res.Pass {
		res.Message = fmt.Sprintf("only %d of %d sentences trace back to facts", grounded, len(sentences))
	}
	return res
}

// contentWords returns lowercase words of 5+ letters, which are the
// ones likely to carry factual content.
func contentWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) >= 5 {
			out = append(out, w)
		}
	}
	return out
}
