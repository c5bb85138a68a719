package podcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderpod/pkg/config"
	"wanderpod/pkg/facts"
	"wanderpod/pkg/model"
	"wanderpod/pkg/narrative"
	"wanderpod/pkg/store"
	"wanderpod/pkg/synth"
	"wanderpod/pkg/tracker"
)

type mockSource struct {
	bag *model.FactBag
	err error
}

func (m *mockSource) Facts(ctx context.Context, location string) (*model.FactBag, error) {
	return m.bag, m.err
}

type mockBuilder struct {
	mu       sync.Mutex
	builds   int
	titleErr error
}

func (m *mockBuilder) Build(ctx context.Context, bag *model.FactBag, name model.TemplateName, pers *model.Personalization) ([]model.Beat, error) {
	m.mu.Lock()
	m.builds++
	m.mu.Unlock()
	return []model.Beat{
		{Kind: model.BeatHook, Text: "Lisbon rises on seven hills."},
		{Kind: model.BeatConclusion, Text: "A city worth the climb."},
	}, nil
}

func (m *mockBuilder) GenerateTitle(ctx context.Context, location, scriptText string) (string, string, error) {
	if m.titleErr != nil {
		return "", "", m.titleErr
	}
	return "Seven Hills", "An episode about Lisbon.", nil
}

type mockGate struct {
	mu       sync.Mutex
	verdicts []model.Verdict
	calls    int
}

func (m *mockGate) Evaluate(script *model.Script, bag *model.FactBag, tmpl config.TemplateConfig, attempt int) *model.QualityReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.verdicts[m.calls]
	m.calls++
	return &model.QualityReport{OverallScore: 0.8, Verdict: v, Attempt: attempt}
}

type mockSynth struct {
	err   error
	calls int
}

func (m *mockSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	m.calls++
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("audio-bytes"), "mp3", nil
}

type mockProcessor struct{}

func (m *mockProcessor) Process(data []byte, format string) (*model.AudioArtifact, error) {
	return &model.AudioArtifact{
		SampleRate: 24000,
		Duration:   3 * time.Second,
		Format:     format,
		Metrics:    model.AudioMetrics{MOSProxy: 4.2},
	}, nil
}

type mockStore struct {
	mu    sync.Mutex
	saved []*model.Episode
}

func (m *mockStore) SaveEpisode(ctx context.Context, ep *model.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, ep)
	return nil
}

func (m *mockStore) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	return nil, nil
}

func (m *mockStore) ListEpisodes(ctx context.Context, location string, limit int) ([]store.EpisodeSummary, error) {
	return nil, nil
}

func (m *mockStore) GetState(ctx context.Context, key string) (string, bool) { return "", false }
func (m *mockStore) SetState(ctx context.Context, key, val string) error     { return nil }
func (m *mockStore) DeleteState(ctx context.Context, key string) error       { return nil }
func (m *mockStore) Close() error                                            { return nil }

type recordingReporter struct {
	mu     sync.Mutex
	stages []model.Stage
}

func (r *recordingReporter) Report(requestID, location string, stage model.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recordingReporter) Close() {}

func testBag() *model.FactBag {
	return &model.FactBag{
		LocationName: "Lisbon",
		Facts: map[model.FactCategory][]model.Fact{
			model.CategorySummary: {{Text: "Lisbon is the capital of Portugal."}},
		},
	}
}

type fixture struct {
	service  *Service
	builder  *mockBuilder
	gate     *mockGate
	store    *mockStore
	reporter *recordingReporter
	synths   map[string]*mockSynth
}

func newFixture(verdicts []model.Verdict, synthErrs map[string]error) *fixture {
	cfg := config.DefaultConfig()
	profiles := []model.ProviderProfile{
		{ID: "edge", Tier: model.TierFree, Quality: 0.55, Voice: "voice-edge"},
		{ID: "fish-audio", Tier: model.TierPremium, Quality: 0.85, CostPerChar: 0.000015, Voice: "voice-fish"},
	}

	builder := &mockBuilder{}
	g := &mockGate{verdicts: verdicts}
	st := &mockStore{}
	rep := &recordingReporter{}

	synths := make(map[string]*mockSynth)
	engines := make(map[string]synth.Synthesizer)
	for _, p := range profiles {
		ms := &mockSynth{err: synthErrs[p.ID]}
		synths[p.ID] = ms
		engines[p.ID] = ms
	}

	svc := NewService(cfg, &mockSource{bag: testBag()}, builder, g,
		synth.NewSelector(cfg.Selector, profiles), engines,
		&mockProcessor{}, st, tracker.New(), rep)

	return &fixture{service: svc, builder: builder, gate: g, store: st, reporter: rep, synths: synths}
}

func TestGenerateHappyPath(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)

	ep, err := f.service.Generate(context.Background(), Request{Location: "Lisbon"})
	require.NoError(t, err)

	assert.NotEmpty(t, ep.ID)
	assert.Equal(t, "Lisbon", ep.Location)
	assert.Equal(t, "Discover Lisbon", ep.Script.Title)
	assert.Equal(t, "edge", ep.Selection.Provider.ID)
	assert.Equal(t, model.VerdictAccept, ep.Report.Verdict)
	require.Len(t, f.store.saved, 1)

	assert.Equal(t, []model.Stage{
		model.StageContentGathered,
		model.StageScriptGenerated,
		model.StageQualityEvaluated,
		model.StageAudioSynthesized,
		model.StagePostProcessed,
	}, f.reporter.stages)
}

func TestGenerateTitleEnrichmentOptIn(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)
	f.service.cfg.Narrative.EnrichTitles = true

	ep, err := f.service.Generate(context.Background(), Request{Location: "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, "Seven Hills", ep.Script.Title)
}

func TestGenerateTitleFallback(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)
	f.service.cfg.Narrative.EnrichTitles = true
	f.builder.titleErr = errors.New("model offline")

	ep, err := f.service.Generate(context.Background(), Request{Location: "Lisbon"})
	require.NoError(t, err)
	// Assembler's deterministic title survives
	assert.Equal(t, "Discover Lisbon", ep.Script.Title)
}

func TestGenerateRetriesOnceThenAccepts(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictRetry, model.VerdictAccept}, nil)

	ep, err := f.service.Generate(context.Background(), Request{Location: "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.builder.builds, "retry must regenerate the script")
	assert.Equal(t, 1, ep.Report.Attempt)
}

func TestGenerateRejectedScript(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictRetry, model.VerdictReject}, nil)

	_, err := f.service.Generate(context.Background(), Request{Location: "Lisbon"})
	assert.ErrorIs(t, err, ErrScriptRejected)
	assert.Empty(t, f.store.saved)
}

func TestGenerateEmptyFactBag(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)
	f.service.source = &mockSource{bag: &model.FactBag{LocationName: "Atlantis"}}

	_, err := f.service.Generate(context.Background(), Request{Location: "Atlantis"})
	assert.ErrorIs(t, err, facts.ErrContentUnavailable)
}

func TestGenerateFallsBackOnSynthesisError(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, map[string]error{
		"edge": synth.NewSynthesisError("edge", 500, "boom"),
	})

	ep, err := f.service.Generate(context.Background(), Request{
		Location:    "Lisbon",
		Entitlement: model.TierPremium,
	})
	require.NoError(t, err)
	assert.Equal(t, "fish-audio", ep.Selection.Provider.ID)
	assert.Equal(t, 1, f.synths["edge"].calls)
	assert.Equal(t, 1, f.synths["fish-audio"].calls)
}

func TestGenerateAbortsOnNonSynthesisError(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, map[string]error{
		"edge": errors.New("disk full"),
	})

	_, err := f.service.Generate(context.Background(), Request{
		Location:    "Lisbon",
		Entitlement: model.TierPremium,
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.synths["fish-audio"].calls, "only synthesis errors trigger fallback")
	assert.Empty(t, f.store.saved)
}

func TestGenerateAllProvidersFail(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, map[string]error{
		"edge":       synth.NewSynthesisError("edge", 500, "boom"),
		"fish-audio": synth.NewSynthesisError("fish-audio", 500, "boom"),
	})

	_, err := f.service.Generate(context.Background(), Request{
		Location:    "Lisbon",
		Entitlement: model.TierPremium,
	})
	require.Error(t, err)
	assert.Empty(t, f.store.saved)
}

func TestGenerateRequiresLocation(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)

	_, err := f.service.Generate(context.Background(), Request{})
	assert.Error(t, err)
}

func TestGenerateUnknownTemplate(t *testing.T) {
	f := newFixture([]model.Verdict{model.VerdictAccept}, nil)

	_, err := f.service.Generate(context.Background(), Request{Location: "Lisbon", Template: "opera"})
	require.Error(t, err)

	var unknownErr *narrative.ErrUnknownTemplate
	assert.ErrorAs(t, err, &unknownErr)
	assert.Empty(t, f.store.saved)
	assert.Empty(t, f.reporter.stages, "template resolution happens before any pipeline work")
}
