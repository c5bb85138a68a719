package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wanderpod/pkg/config"
	"wanderpod/pkg/synth"
	"wanderpod/pkg/tracker"
)

const (
	defaultAPIURL = "https://api.fish.audio/v1/tts"
)

// Provider implements synth.Synthesizer for Fish Audio.
type Provider struct {
	apiKey  string
	modelID string // e.g. "s1"
	client  *http.Client
	apiURL  string
	tracker *tracker.Tracker
}

// NewProvider creates a new Fish Audio TTS provider.
func NewProvider(cfg config.TTSProviderConfig, t *tracker.Tracker) *Provider {
	return &Provider{
		apiKey:  cfg.Key,
		modelID: cfg.Model,
		client:  &http.Client{},
		apiURL:  defaultAPIURL,
		tracker: t,
	}
}

// requestBody represents the JSON payload for Fish Audio TTS.
type requestBody struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id"`
	ModelID     string `json:"model,omitempty"`
	Format      string `json:"format"`
	Mp3Bitrate  int    `json:"mp3_bitrate,omitempty"`
	Latency     string `json:"latency,omitempty"`
}

// Synthesize generates speech from text using Fish Audio.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		return nil, "", fmt.Errorf("no voice ID configured for Fish Audio")
	}

	reqData := requestBody{
		Text:        text,
		ReferenceID: voice,
		ModelID:     p.modelID,
		Format:      "mp3",
		Mp3Bitrate:  128,
		Latency:     "normal",
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return p.executeWithRetry(ctx, jsonData, text)
}

func (p *Provider) executeWithRetry(ctx context.Context, jsonData []byte, text string) ([]byte, string, error) {
	maxRetries := 2 // total 3 attempts
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(500 * time.Millisecond):
				synth.Log("FISH", fmt.Sprintf("Retrying request (attempt %d/%d)...", attempt+1, maxRetries+1), 0, lastErr)
			}
		}

		audio, retry, err := p.executeAttempt(ctx, jsonData, text)
		if err == nil {
			if p.tracker != nil {
				p.tracker.TrackAPISuccess("fish-audio")
			}
			return audio, "mp3", nil
		}

		if !retry {
			return nil, "", err
		}

		lastErr = err
	}

	if p.tracker != nil {
		p.tracker.TrackAPIFailure("fish-audio")
	}

	// Wrap so the caller falls back to another provider
	return nil, "", synth.NewSynthesisError("fish-audio", 500,
		fmt.Sprintf("failed after %d attempts: %v", maxRetries+1, lastErr))
}

func (p *Provider) executeAttempt(ctx context.Context, jsonData []byte, text string) (audio []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var headerLog strings.Builder
	for k, v := range req.Header {
		if k == "Authorization" {
			continue
		}
		headerLog.WriteString(fmt.Sprintf("%s: %s\n", k, strings.Join(v, ", ")))
	}
	logContent := fmt.Sprintf("HEADERS:\n%s\nPAYLOAD:\n%s", headerLog.String(), text)

	resp, err := p.client.Do(req)
	if err != nil {
		synth.Log("FISH", logContent, 0, err)
		return nil, true, err // retry on network error
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		synth.Log("FISH", logContent, resp.StatusCode, nil)

		// Fast fail on auth errors
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, false, synth.NewSynthesisError("fish-audio", resp.StatusCode,
				fmt.Sprintf("auth failed: %s", string(body)))
		}

		return nil, true, fmt.Errorf("fish audio api error (status %d): %s", resp.StatusCode, string(body))
	}

	audio, err = io.ReadAll(resp.Body)
	if err != nil {
		synth.Log("FISH", logContent, 200, err)
		return nil, true, fmt.Errorf("failed to read audio: %w", err)
	}

	if len(audio) == 0 {
		synth.Log("FISH", "Received empty audio payload (0 bytes)", 200, nil)
		return nil, true, fmt.Errorf("received empty audio from fish audio")
	}

	synth.Log("FISH", logContent, 200, nil)
	return audio, false, nil
}
