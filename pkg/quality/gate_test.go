package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

func testTemplate() config.TemplateConfig {
	return config.TemplateConfig{MinWords: 20, MaxWords: 200}
}

func testBag() *model.FactBag {
	return &model.FactBag{
		LocationName: "Lisbon",
		Facts: map[model.FactCategory][]model.Fact{
			model.CategorySummary: {
				{Text: "Lisbon is the capital of Portugal and sits on the Tagus river."},
			},
			model.CategoryHistory: {
				{Text: "The great earthquake of 1755 destroyed much of central Lisbon."},
			},
		},
	}
}

func goodScript() *model.Script {
	text := "Lisbon greets you from seven hills above the Tagus river. " +
		"The capital of Portugal carries its history openly. " +
		"The great earthquake of 1755 leveled the center, and the rebuilt streets still follow the recovery plan. " +
		"Walking here means walking through centuries of survival. " +
		"That resilience is what stays with you after the visit ends."
	return &model.Script{
		Title:    "Discover Lisbon",
		Template: model.TemplateBase,
		Beats: []model.Beat{
			{Kind: model.BeatHook, Text: "Lisbon greets you from seven hills above the Tagus river."},
			{Kind: model.BeatContext, Text: "The capital of Portugal carries its history openly."},
			{Kind: model.BeatConclusion, Text: "That resilience is what stays with you after the visit ends."},
		},
		Text: text,
	}
}

func placeholderScript() *model.Script {
	s := goodScript()
	s.Beats[1].Text = model.GenerationFailureMarker
	s.Text = s.Beats[0].Text + "\n\n" + model.GenerationFailureMarker + "\n\n" + s.Beats[2].Text
	return s
}

func newGate() *Gate {
	return NewGate(config.DefaultConfig().Quality)
}

func TestEvaluateAcceptsGoodScript(t *testing.T) {
	report := newGate().Evaluate(goodScript(), testBag(), testTemplate(), 0)

	assert.Equal(t, model.VerdictAccept, report.Verdict)
	assert.GreaterOrEqual(t, report.OverallScore, 0.6)
	assert.True(t, report.Check(CheckPlaceholder).Pass)
	assert.Equal(t, 0, report.Attempt)
}

func TestEvaluateRejectsPlaceholder(t *testing.T) {
	// Placeholder is a hard gate: rejected on any attempt, never retried
	for _, attempt := range []int{0, 1} {
		report := newGate().Evaluate(placeholderScript(), testBag(), testTemplate(), attempt)

		assert.Equal(t, model.VerdictReject, report.Verdict)
		assert.False(t, report.Check(CheckPlaceholder).Pass)
	}
}

func TestEvaluateAcceptsLowScoreFinalAttempt(t *testing.T) {
	s := goodScript()
	// Degrade the score without touching placeholders: replace the text
	// with overlong, ungrounded prose that never names the location, so
	// source_mention, length and grounding all suffer.
	s.Text = strings.Repeat("This rambling sentence says nothing important whatsoever about anywhere at all. ", 40)

	gate := newGate()
	first := gate.Evaluate(s, testBag(), testTemplate(), 0)
	require.Equal(t, model.VerdictRetry, first.Verdict, "low score on first attempt should retry")

	second := gate.Evaluate(s, testBag(), testTemplate(), 1)
	assert.Equal(t, model.VerdictAccept, second.Verdict, "final attempt without placeholders is accepted")
	assert.Less(t, second.OverallScore, 0.6)
}

func TestEvaluateRejectsRepeatedFiller(t *testing.T) {
	s := goodScript()
	s.Text = s.Text + " Let's continue... Let's continue..."

	report := newGate().Evaluate(s, testBag(), testTemplate(), 1)

	assert.Equal(t, model.VerdictReject, report.Verdict)
	assert.Equal(t, 0.0, report.Check(CheckPlaceholder).Score)
}

func TestCheckSourceMention(t *testing.T) {
	tests := []struct {
		name     string
		location string
		text     string
		wantPass bool
	}{
		{"named directly", "Lisbon", "Lisbon rises above the Tagus.", true},
		{"case insensitive", "Lisbon", "Welcome to LISBON, city of light.", true},
		{"city from full name", "Lisbon, Portugal", "Lisbon rises above the Tagus.", true},
		{"never mentioned", "Lisbon", "A plain narration about some city.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checkSourceMention(&model.Script{Text: tt.text}, tt.location)
			assert.Equal(t, tt.wantPass, res.Pass)
		})
	}
}

func TestCheckLength(t *testing.T) {
	tmpl := config.TemplateConfig{MinWords: 10, MaxWords: 20}

	within := &model.Script{Text: strings.Repeat("word ", 15)}
	res := checkLength(within, tmpl)
	assert.True(t, res.Pass)
	assert.Equal(t, 1.0, res.Score)

	short := &model.Script{Text: "too short"}
	res = checkLength(short, tmpl)
	assert.False(t, res.Pass)
	assert.Less(t, res.Score, 1.0)

	long := &model.Script{Text: strings.Repeat("word ", 100)}
	res = checkLength(long, tmpl)
	assert.False(t, res.Pass)
	assert.InDelta(t, 0.2, res.Score, 0.01)
}

func TestCheckGrounding(t *testing.T) {
	bag := testBag()

	grounded := &model.Script{Text: "The earthquake of 1755 changed Lisbon forever. Portugal rebuilt its capital."}
	res := checkGrounding(grounded, bag)
	assert.True(t, res.Pass)

	invented := &model.Script{Text: "Dragons circle the glass towers. Wizards brew storms nightly. Nothing here is real."}
	res = checkGrounding(invented, bag)
	assert.False(t, res.Pass)
}

func TestWeightsAreTunable(t *testing.T) {
	cfg := config.DefaultConfig().Quality
	// Zero out everything except grounding; an ungrounded script now
	// scores near zero overall.
	cfg.Weights = map[string]float64{CheckGrounding: 1.0}
	gate := NewGate(cfg)

	s := goodScript()
	s.Text = "Dragons circle the glass towers nightly here. Wizards brew their storms."
	report := gate.Evaluate(s, testBag(), testTemplate(), 0)
	assert.Less(t, report.OverallScore, 0.3)
}
