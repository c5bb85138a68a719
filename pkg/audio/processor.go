package audio

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// Stage names recorded in AudioMetrics.Degraded when a stage is
// skipped.
const (
	StageNormalize      = "normalize"
	StageNoiseReduction = "noise_reduction"
	StageSpeechEQ       = "speech_eq"
	StageLimiter        = "limiter"
)

// maxNormalizeGain caps make-up gain at +24dB so near-silent input
// does not get amplified into pure noise.
const maxNormalizeGain = 15.85

// Processor runs the post-processing chain over synthesized audio.
// Stages that cannot run are skipped and recorded as degraded rather
// than failing the whole episode.
type Processor struct {
	cfg config.AudioConfig
}

// NewProcessor creates a processor with the given settings.
func NewProcessor(cfg config.AudioConfig) *Processor {
	return &Processor{cfg: cfg}
}

// Process decodes the payload and runs loudness normalization, noise
// reduction, speech EQ and peak limiting, in that order. Only a decode
// failure is a hard error.
func (p *Processor) Process(data []byte, format string) (*model.AudioArtifact, error) {
	samples, rate, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("audio decode: %w", err)
	}

	var degraded []string
	run := func(name string, stage func([][2]float64, int) ([][2]float64, error)) {
		out, err := stage(samples, rate)
		if err != nil {
			slog.Warn("Audio stage skipped", "stage", name, "error", err)
			degraded = append(degraded, name)
			return
		}
		samples = out
	}

	run(StageNormalize, p.normalize)
	run(StageNoiseReduction, p.reduceNoise)
	run(StageSpeechEQ, p.speechEQ)
	run(StageLimiter, p.limit)

	window := p.noiseWindow(rate)
	snr := measureSNR(samples, window)
	thd := measureTHD(samples, p.cfg.LimiterCeiling)
	metrics := model.AudioMetrics{
		SNRDecibels: snr,
		THD:         thd,
		LUFS:        measureLUFS(samples),
		MOSProxy:    mosProxy(snr, thd),
		Degraded:    degraded,
	}

	return &model.AudioArtifact{
		Samples:    samples,
		SampleRate: rate,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(rate),
		Format:     format,
		Metrics:    metrics,
	}, nil
}

func (p *Processor) noiseWindow(rate int) int {
	ms := p.cfg.NoiseWindowMS
	if ms <= 0 {
		ms = 100
	}
	return rate * ms / 1000
}

// normalize applies flat gain to bring integrated loudness to the
// configured target.
func (p *Processor) normalize(samples [][2]float64, rate int) ([][2]float64, error) {
	lufs := measureLUFS(samples)
	if math.IsInf(lufs, -1) {
		return nil, fmt.Errorf("input is silent, nothing to normalize")
	}

	gain := math.Pow(10, (p.cfg.TargetLUFS-lufs)/20)
	if gain > maxNormalizeGain {
		gain = maxNormalizeGain
	}

	out := make([][2]float64, len(samples))
	for i, s := range samples {
		out[i] = [2]float64{s[0] * gain, s[1] * gain}
	}
	return out, nil
}

// reduceNoise applies a downward expander: analysis windows whose RMS
// sits near the noise floor are attenuated, which suppresses hiss
// between phrases without touching speech.
func (p *Processor) reduceNoise(samples [][2]float64, rate int) ([][2]float64, error) {
	window := p.noiseWindow(rate)
	if len(samples) < 2*window {
		return nil, fmt.Errorf("audio shorter than analysis window (%d samples)", window)
	}

	floor := noiseFloorRMS(samples, window)
	if floor <= 0 {
		// Digitally clean already
		return samples, nil
	}
	threshold := floor * 2

	out := make([][2]float64, len(samples))
	copy(out, samples)
	for start := 0; start < len(out); start += window {
		end := start + window
		if end > len(out) {
			end = len(out)
		}
		rms := math.Sqrt(meanSquare(out[start:end]))
		if rms >= threshold {
			continue
		}
		for i := start; i < end; i++ {
			out[i][0] *= 0.25
			out[i][1] *= 0.25
		}
	}
	return out, nil
}

// speechEQ band-passes the signal to the configured speech range.
func (p *Processor) speechEQ(samples [][2]float64, rate int) ([][2]float64, error) {
	low, high := p.cfg.SpeechLowHz, p.cfg.SpeechHighHz
	nyquist := float64(rate) / 2
	if low <= 0 || high <= low || high >= nyquist {
		return nil, fmt.Errorf("invalid speech band %.0f-%.0fHz at %dHz sample rate", low, high, rate)
	}

	filter := NewSpeechBandFilter(&bufferStreamer{samples: samples}, float64(rate), low, high)

	out := make([][2]float64, 0, len(samples))
	buf := make([][2]float64, 512)
	for {
		n, ok := filter.Stream(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if !ok {
			break
		}
	}
	return out, nil
}

// limit hard-clamps peaks to the configured ceiling.
func (p *Processor) limit(samples [][2]float64, rate int) ([][2]float64, error) {
	ceiling := p.cfg.LimiterCeiling
	if ceiling <= 0 || ceiling > 1 {
		return nil, fmt.Errorf("limiter ceiling %.2f outside (0,1]", ceiling)
	}

	out := make([][2]float64, len(samples))
	for i, s := range samples {
		out[i] = [2]float64{clamp(s[0], ceiling), clamp(s[1], ceiling)}
	}
	return out, nil
}

func clamp(v, ceiling float64) float64 {
	if v > ceiling {
		return ceiling
	}
	if v < -ceiling {
		return -ceiling
	}
	return v
}
