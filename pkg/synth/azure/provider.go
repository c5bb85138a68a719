package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"wanderpod/pkg/config"
	"wanderpod/pkg/synth"
	"wanderpod/pkg/tracker"
)

// maxAttempts bounds same-provider retries. After the last attempt the
// caller re-selects among the remaining providers.
const maxAttempts = 2

// Provider implements synth.Synthesizer for Azure Speech.
type Provider struct {
	key     string
	region  string
	client  *http.Client
	url     string
	tracker *tracker.Tracker
}

// NewProvider creates a new Azure Speech TTS provider.
func NewProvider(cfg config.TTSProviderConfig, t *tracker.Tracker) *Provider {
	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	return &Provider{
		key:     cfg.Key,
		region:  cfg.Region,
		client:  &http.Client{},
		url:     url,
		tracker: t,
	}
}

// Synthesize generates speech from text using Azure Speech. Transient
// failures get one retry against the same endpoint before the error is
// surfaced as grounds for provider fallback.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		return nil, "", fmt.Errorf("no voice ID configured for Azure Speech")
	}

	ssml := buildSSML(voice, text)
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(500 * time.Millisecond):
				synth.Log("AZURE", fmt.Sprintf("Retrying request (attempt %d/%d)...", attempt+1, maxAttempts), 0, lastErr)
			}
		}

		audio, retry, err := p.executeAttempt(ctx, ssml)
		if err == nil {
			if p.tracker != nil {
				p.tracker.TrackAPISuccess("azure-speech")
			}
			return audio, "mp3", nil
		}

		if !retry {
			if p.tracker != nil {
				p.tracker.TrackAPIFailure("azure-speech")
			}
			return nil, "", err
		}

		lastErr = err
	}

	if p.tracker != nil {
		p.tracker.TrackAPIFailure("azure-speech")
	}

	// Wrap so the caller falls back to another provider
	return nil, "", synth.NewSynthesisError("azure-speech", http.StatusInternalServerError,
		fmt.Sprintf("failed after %d attempts: %v", maxAttempts, lastErr))
}

func (p *Provider) executeAttempt(ctx context.Context, ssml string) (audio []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewBufferString(ssml))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-160kbitrate-mono-mp3")
	req.Header.Set("User-Agent", "WanderPod")

	resp, err := p.client.Do(req)
	if err != nil {
		synth.Log("AZURE", ssml, 0, err)
		return nil, true, err // retry on network error
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		synth.Log("AZURE", ssml, resp.StatusCode, nil)
		body, readErr := io.ReadAll(resp.Body)
		bodyStr := string(body)
		if readErr != nil {
			bodyStr = fmt.Sprintf("[failed to read body: %v]", readErr)
		}
		if bodyStr == "" {
			bodyStr = "[empty body]"
		}

		// Fast fail on auth errors; retrying a bad key never helps
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, false, synth.NewSynthesisError("azure-speech", resp.StatusCode,
				fmt.Sprintf("auth failed: %s", bodyStr))
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, true, fmt.Errorf("api error (status %d): %s", resp.StatusCode, bodyStr)
		}

		// Other client errors won't improve on retry either
		return nil, false, synth.NewSynthesisError("azure-speech", resp.StatusCode,
			fmt.Sprintf("api error (status %d): %s", resp.StatusCode, bodyStr))
	}

	audio, err = io.ReadAll(resp.Body)
	if err != nil {
		synth.Log("AZURE", ssml, 200, err)
		return nil, true, fmt.Errorf("failed to read audio: %w", err)
	}

	synth.Log("AZURE", ssml, 200, nil)
	return audio, false, nil
}

// buildSSML wraps escaped narration in the minimal speak/voice
// envelope. The narration pipeline produces plain prose, so the text
// is always escaped rather than trusted as markup.
func buildSSML(voice, text string) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text))
	return fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='https://www.w3.org/2001/mstts' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`,
		voice, escaped.String(),
	)
}
