package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"wanderpod/pkg/model"
)

// Config holds the application configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Log       LogConfig       `yaml:"log"`
	History   HistoryConfig   `yaml:"history"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Quality   QualityConfig   `yaml:"quality"`
	Selector  SelectorConfig  `yaml:"selector"`
	Audio     AudioConfig     `yaml:"audio"`
	Progress  ProgressConfig  `yaml:"progress"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// HistorySettings holds settings for an exchange history log.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HistoryConfig controls append-only logs of external exchanges.
type HistoryConfig struct {
	LLM HistorySettings `yaml:"llm"`
	TTS HistorySettings `yaml:"tts"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ProviderConfig holds settings for one LLM provider in the failover chain.
type ProviderConfig struct {
	Type     string            `yaml:"type"` // "gemini"
	Key      string            `yaml:"key"`
	Model    string            `yaml:"model"`
	Profiles map[string]string `yaml:"profiles"` // intent -> model override
}

// LLMConfig holds settings for the text-generation providers.
type LLMConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
	Timeout   Duration         `yaml:"timeout"` // per generation call
}

// TTSProviderConfig pairs a selection profile with engine credentials.
type TTSProviderConfig struct {
	model.ProviderProfile `yaml:",inline"`
	Engine                string `yaml:"engine"` // "edge", "fish-audio", "azure-speech"
	Key                   string `yaml:"key"`
	Region                string `yaml:"region,omitempty"`
	Model                 string `yaml:"model,omitempty"`
}

// TTSConfig holds the speech synthesis provider table.
type TTSConfig struct {
	Providers []TTSProviderConfig `yaml:"providers"`
}

// BeatConfig holds per-beat generation constraints.
type BeatConfig struct {
	TargetWords int    `yaml:"target_words"`
	Tone        string `yaml:"tone"`
}

// TemplateConfig holds length bounds and per-beat constraints for one
// narrative template.
type TemplateConfig struct {
	MinWords int                          `yaml:"min_words"`
	MaxWords int                          `yaml:"max_words"`
	Beats    map[model.BeatKind]BeatConfig `yaml:"beats"`
}

// NarrativeConfig holds settings for the narrative constructor.
type NarrativeConfig struct {
	BeatAttempts int                                   `yaml:"beat_attempts"` // attempts per beat before placeholder
	PoolSize     int                                   `yaml:"pool_size"`     // concurrent beat generations
	EnrichTitles bool                                  `yaml:"enrich_titles"` // replace the derived title with a model-written one
	Templates    map[model.TemplateName]TemplateConfig `yaml:"templates"`
}

// QualityConfig holds quality gate weights and thresholds.
// The weights are design defaults, not physical constants; operators
// may retune them.
type QualityConfig struct {
	Weights        map[string]float64 `yaml:"weights"`
	AcceptScore    float64            `yaml:"accept_score"` // retry below this on first attempt
	MaxRetries     int                `yaml:"max_retries"`
}

// SelectorConfig holds provider selection weights.
type SelectorConfig struct {
	QualityWeight float64 `yaml:"quality_weight"`
	CostWeight    float64 `yaml:"cost_weight"`
	FeatureWeight float64 `yaml:"feature_weight"`
	DefaultBudget float64 `yaml:"default_budget"` // USD ceiling when the request omits one
}

// AudioConfig holds post-processing settings.
type AudioConfig struct {
	TargetLUFS     float64 `yaml:"target_lufs"`
	NoiseWindowMS  int     `yaml:"noise_window_ms"` // minimum analysis window
	SpeechLowHz    float64 `yaml:"speech_low_hz"`
	SpeechHighHz   float64 `yaml:"speech_high_hz"`
	LimiterCeiling float64 `yaml:"limiter_ceiling"`
}

// ProgressConfig holds progress event publishing settings.
type ProgressConfig struct {
	NATSUrl string `yaml:"nats_url"` // empty disables publishing
	Subject string `yaml:"subject"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Log: LogConfig{
			Server:   LogSettings{Path: "./logs/server.log", Level: "INFO"},
			Requests: LogSettings{Path: "./logs/requests.log", Level: "INFO"},
		},
		History: HistoryConfig{
			LLM: HistorySettings{Enabled: true, Path: "./logs/llm.log"},
			TTS: HistorySettings{Enabled: true, Path: "./logs/tts.log"},
		},
		DB: DBConfig{
			Path: "./data/wanderpod.db",
		},
		Server: ServerConfig{
			Address: "localhost:2710",
		},
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{
					Type:  "gemini",
					Model: "gemini-2.5-flash-lite",
					Profiles: map[string]string{
						"beat": "gemini-2.5-flash-lite",
					},
				},
			},
			Timeout: Duration(45 * time.Second),
		},
		TTS: TTSConfig{
			Providers: []TTSProviderConfig{
				{
					ProviderProfile: model.ProviderProfile{
						ID:      "edge",
						Tier:    model.TierFree,
						Quality: 0.55,
						CostPerChar: 0.0,
						Capabilities: []model.Capability{model.CapSSML},
						Voice:   "en-US-AvaMultilingualNeural",
					},
					Engine: "edge",
				},
				{
					ProviderProfile: model.ProviderProfile{
						ID:      "fish-audio",
						Tier:    model.TierPremium,
						Quality: 0.85,
						CostPerChar: 0.000015,
						Capabilities: []model.Capability{model.CapEmphasis, model.CapCustomVoice},
						Voice:   "e58b0d7efca34eb38d5c4985e378abcb",
					},
					Engine: "fish-audio",
					Model:  "s1",
				},
				{
					ProviderProfile: model.ProviderProfile{
						ID:      "azure-speech",
						Tier:    model.TierUltraPremium,
						Quality: 0.95,
						CostPerChar: 0.00003,
						Capabilities: []model.Capability{model.CapSSML, model.CapEmphasis, model.CapCustomVoice},
						Voice:   "en-US-AvaMultilingualNeural",
					},
					Engine: "azure-speech",
					Region: "eastus",
				},
			},
		},
		Narrative: DefaultNarrativeConfig(),
		Quality: QualityConfig{
			Weights: map[string]float64{
				"placeholder":    0.30,
				"source_mention": 0.20,
				"length":         0.15,
				"coherence":      0.15,
				"grounding":      0.20,
			},
			AcceptScore: 0.6,
			MaxRetries:  1,
		},
		Selector: SelectorConfig{
			QualityWeight: 0.6,
			CostWeight:    0.2,
			FeatureWeight: 0.2,
			DefaultBudget: 0.10,
		},
		Audio: AudioConfig{
			TargetLUFS:     -16.0,
			NoiseWindowMS:  100,
			SpeechLowHz:    80,
			SpeechHighHz:   8000,
			LimiterCeiling: 0.95,
		},
		Progress: ProgressConfig{
			NATSUrl: "",
			Subject: "wanderpod.progress",
		},
	}
}

// DefaultNarrativeConfig returns the built-in template table.
func DefaultNarrativeConfig() NarrativeConfig {
	standard := map[model.BeatKind]BeatConfig{
		model.BeatHook:       {TargetWords: 40, Tone: "curious"},
		model.BeatContext:    {TargetWords: 80, Tone: "informative"},
		model.BeatDiscovery:  {TargetWords: 90, Tone: "surprising"},
		model.BeatReflection: {TargetWords: 60, Tone: "thoughtful"},
		model.BeatConclusion: {TargetWords: 40, Tone: "warm"},
	}
	return NarrativeConfig{
		BeatAttempts: 2,
		PoolSize:     4,
		Templates: map[model.TemplateName]TemplateConfig{
			model.TemplateBase: {
				MinWords: 200, MaxWords: 500,
				Beats: standard,
			},
			model.TemplateStandout: {
				MinWords: 220, MaxWords: 550,
				Beats: map[model.BeatKind]BeatConfig{
					model.BeatHook:       {TargetWords: 50, Tone: "dramatic"},
					model.BeatContext:    {TargetWords: 70, Tone: "informative"},
					model.BeatDiscovery:  {TargetWords: 120, Tone: "astonishing"},
					model.BeatReflection: {TargetWords: 60, Tone: "thoughtful"},
					model.BeatConclusion: {TargetWords: 40, Tone: "warm"},
				},
			},
			model.TemplateTopic: {
				MinWords: 150, MaxWords: 400,
				Beats: map[model.BeatKind]BeatConfig{
					model.BeatHook:       {TargetWords: 40, Tone: "curious"},
					model.BeatContext:    {TargetWords: 90, Tone: "focused"},
					model.BeatDiscovery:  {TargetWords: 100, Tone: "surprising"},
					model.BeatConclusion: {TargetWords: 40, Tone: "warm"},
				},
			},
			model.TemplatePersonalized: {
				MinWords: 200, MaxWords: 500,
				Beats: standard,
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// If it exists, file values are merged over defaults; the file is not
// rewritten, preserving user formatting and comments.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		cfg.applyEnvFallbacks()

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	cfg.applyEnvFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvFallbacks fills empty secrets from the environment without
// writing them back to disk.
func (c *Config) applyEnvFallbacks() {
	for i := range c.LLM.Providers {
		if c.LLM.Providers[i].Key == "" && c.LLM.Providers[i].Type == "gemini" {
			c.LLM.Providers[i].Key = os.Getenv("GEMINI_API_KEY")
		}
	}
	for i := range c.TTS.Providers {
		p := &c.TTS.Providers[i]
		if p.Key != "" {
			continue
		}
		switch p.Engine {
		case "fish-audio":
			p.Key = os.Getenv("FISH_AUDIO_API_KEY")
		case "azure-speech":
			p.Key = os.Getenv("AZURE_SPEECH_KEY")
			if p.Region == "" {
				p.Region = os.Getenv("AZURE_SPEECH_REGION")
			}
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.TTS.Providers) == 0 {
		return fmt.Errorf("config: at least one tts provider is required")
	}
	seen := make(map[string]bool)
	for _, p := range c.TTS.Providers {
		if p.ID == "" {
			return fmt.Errorf("config: tts provider with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate tts provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Quality < 0 || p.Quality > 1 {
			return fmt.Errorf("config: provider %q quality %.2f outside [0,1]", p.ID, p.Quality)
		}
		if p.CostPerChar < 0 {
			return fmt.Errorf("config: provider %q has negative cost", p.ID)
		}
	}
	var sum float64
	for _, w := range c.Quality.Weights {
		if w < 0 {
			return fmt.Errorf("config: negative quality weight")
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("config: quality weights sum to zero")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# WanderPod Configuration
# ----------------------
# Duration units: ns, us, ms, s, m, h, d (day), w (week)
# Secrets may be left empty and supplied via environment variables:
#   GEMINI_API_KEY, FISH_AUDIO_API_KEY, AZURE_SPEECH_KEY, AZURE_SPEECH_REGION

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Profiles extracts the selection profiles from the TTS provider table.
func (t *TTSConfig) Profiles() []model.ProviderProfile {
	out := make([]model.ProviderProfile, 0, len(t.Providers))
	for _, p := range t.Providers {
		out = append(out, p.ProviderProfile)
	}
	return out
}
