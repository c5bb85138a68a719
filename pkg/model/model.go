package model

import (
	"time"
)

// FactCategory groups facts about a location.
type FactCategory string

const (
	CategorySummary   FactCategory = "summary"
	CategoryHistory   FactCategory = "history"
	CategoryCulture   FactCategory = "culture"
	CategoryGeography FactCategory = "geography"
	CategoryAnecdotes FactCategory = "anecdotes"
)

// Categories lists all fact categories in canonical order.
var Categories = []FactCategory{
	CategorySummary,
	CategoryHistory,
	CategoryCulture,
	CategoryGeography,
	CategoryAnecdotes,
}

// Fact is a single short statement about a location.
// Novelty estimates how unusual the fact is (0 = mundane, 5 = obscure).
// Sources that cannot estimate novelty leave it at 0.
type Fact struct {
	Text    string  `json:"text"`
	Novelty float64 `json:"novelty"`
}

// FactBag is the normalized collection of facts for one location.
// It is immutable once fetched; the pipeline only reads from it.
type FactBag struct {
	LocationName string                  `json:"location_name"`
	Facts        map[FactCategory][]Fact `json:"facts"`
}

// All returns every fact in the bag, category order preserved.
func (b *FactBag) All() []Fact {
	var out []Fact
	for _, cat := range Categories {
		out = append(out, b.Facts[cat]...)
	}
	return out
}

// IsEmpty reports whether the bag contains no facts at all.
func (b *FactBag) IsEmpty() bool {
	for _, facts := range b.Facts {
		if len(facts) > 0 {
			return false
		}
	}
	return true
}

// BeatKind identifies one structural unit of a narrated script.
type BeatKind string

const (
	BeatHook       BeatKind = "hook"
	BeatContext    BeatKind = "context"
	BeatDiscovery  BeatKind = "discovery"
	BeatReflection BeatKind = "reflection"
	BeatConclusion BeatKind = "conclusion"
)

// Beat is one narrative unit of a script.
type Beat struct {
	Kind        BeatKind `json:"kind"`
	TargetWords int      `json:"target_words"`
	Tone        string   `json:"tone"`
	Text        string   `json:"text"`
}

// GenerationFailureMarker is inserted as beat text when all generation
// attempts for a beat fail. The quality gate treats it as placeholder
// text, so a script carrying it can never be accepted.
const GenerationFailureMarker = "[[beat generation failed]]"

// IsPlaceholder reports whether the beat carries the failure marker
// instead of generated prose.
func (b *Beat) IsPlaceholder() bool {
	return b.Text == GenerationFailureMarker
}

// TemplateName identifies a narrative template variant.
type TemplateName string

const (
	TemplateBase         TemplateName = "base"
	TemplateStandout     TemplateName = "standout"
	TemplateTopic        TemplateName = "topic"
	TemplatePersonalized TemplateName = "personalized"
)

// Personalization tunes fact selection and tone. It never changes the
// beat sequence dictated by the template.
type Personalization struct {
	TopicWeights      map[FactCategory]float64 `json:"topic_weights,omitempty"`
	Depth             string                   `json:"depth,omitempty"` // "light", "standard", "deep"
	SurpriseTolerance float64                  `json:"surprise_tolerance"`
}

// Script is the assembled narration, ready for quality evaluation.
// Immutable after the gate accepts it.
type Script struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Template    TemplateName `json:"template"`
	Beats       []Beat       `json:"beats"`
	Text        string       `json:"text"`
}

// WordCount returns the number of whitespace-separated words in the
// full script text.
func (s *Script) WordCount() int {
	return countWords(s.Text)
}

// Verdict is the quality gate's terminal decision for one evaluation.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRetry  Verdict = "retry"
	VerdictReject Verdict = "reject"
)

// CheckResult holds the outcome of a single quality check.
type CheckResult struct {
	ID      string  `json:"id"`
	Pass    bool    `json:"pass"`
	Score   float64 `json:"score"` // [0,1]
	Message string  `json:"message,omitempty"`
}

// QualityReport is produced once per script evaluation attempt and
// never mutated afterwards. A retry produces a new script and a new
// report.
type QualityReport struct {
	OverallScore float64       `json:"overall_score"` // [0,1]
	Checks       []CheckResult `json:"checks"`
	Verdict      Verdict       `json:"verdict"`
	Attempt      int           `json:"attempt"` // 0 = first pass, 1 = retry
}

// Check returns the result for the given check id, or nil.
func (r *QualityReport) Check(id string) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}

// Tier classifies a synthesis provider by price/quality bracket.
type Tier string

const (
	TierFree         Tier = "free"
	TierPremium      Tier = "premium"
	TierUltraPremium Tier = "ultra_premium"
)

// Rank orders tiers for entitlement comparison. Unknown tiers rank
// above everything so they are never selected by accident.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 0
	case TierPremium:
		return 1
	case TierUltraPremium:
		return 2
	}
	return 99
}

// Capability names an optional synthesis feature.
type Capability string

const (
	CapSSML        Capability = "ssml"
	CapEmphasis    Capability = "emphasis"
	CapCustomVoice Capability = "custom_voice"
)

// ProviderProfile is static configuration describing one speech
// synthesis provider. Loaded once at process start, read-only after.
type ProviderProfile struct {
	ID           string       `json:"id" yaml:"id"`
	Tier         Tier         `json:"tier" yaml:"tier"`
	Quality      float64      `json:"quality" yaml:"quality"`                 // [0,1]
	CostPerChar  float64      `json:"cost_per_char" yaml:"cost_per_char"`     // USD
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
	Voice        string       `json:"voice" yaml:"voice"`
}

// Supports reports whether the profile advertises the capability.
func (p *ProviderProfile) Supports(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SynthesisSelection records the provider chosen for a request and the
// score that justified the choice.
type SynthesisSelection struct {
	Provider      ProviderProfile `json:"provider"`
	WeightedScore float64         `json:"weighted_score"`
	EstimatedCost float64         `json:"estimated_cost"`
}

// AudioMetrics holds objective quality measurements for a processed
// audio buffer.
type AudioMetrics struct {
	SNRDecibels float64  `json:"snr_db"`
	THD         float64  `json:"thd"`                // [0,1] fraction
	LUFS        float64  `json:"lufs"`               // integrated loudness
	MOSProxy    float64  `json:"mos_proxy"`          // [0,5]
	Degraded    []string `json:"degraded,omitempty"` // stages skipped
}

// AudioArtifact is the finished audio output with its metrics.
// Samples are stereo interleaved pairs, matching the processing chain.
type AudioArtifact struct {
	Samples    [][2]float64  `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
	Metrics    AudioMetrics  `json:"metrics"`
}

// Stage names a completed pipeline step for progress reporting.
type Stage string

const (
	StageContentGathered  Stage = "content-gathered"
	StageScriptGenerated  Stage = "script-generated"
	StageQualityEvaluated Stage = "quality-evaluated"
	StageAudioSynthesized Stage = "audio-synthesized"
	StagePostProcessed    Stage = "post-processed"
)

// Episode is the plain-data record handed to the persistence layer
// after a request completes.
type Episode struct {
	ID        string             `json:"id"`
	Location  string             `json:"location"`
	Script    Script             `json:"script"`
	Report    QualityReport      `json:"report"`
	Selection SynthesisSelection `json:"selection"`
	Audio     AudioArtifact      `json:"audio"`
	CreatedAt time.Time          `json:"created_at"`
}
