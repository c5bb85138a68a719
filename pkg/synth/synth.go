package synth

import (
	"context"
	"fmt"
)

const (
	// MinAudioSize is the minimum size of a synthesized audio payload (1KB).
	// Smaller payloads are likely failed synthesis attempts.
	MinAudioSize = 1024
)

// Synthesizer defines the interface for Text-To-Speech engines.
type Synthesizer interface {
	// Synthesize generates audio from text. Returns the raw audio bytes
	// and their format ("mp3", "wav").
	Synthesize(ctx context.Context, text, voice string) ([]byte, string, error)
}

// SynthesisError represents a synthesis failure that should trigger
// fallback to another provider. Examples: rate limits (429), server
// errors (5xx), auth failures (401/403).
type SynthesisError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed (%s): %s", e.Provider, e.Message)
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(provider string, statusCode int, message string) *SynthesisError {
	return &SynthesisError{Provider: provider, StatusCode: statusCode, Message: message}
}

// IsSynthesisError checks if an error should trigger provider fallback.
func IsSynthesisError(err error) bool {
	_, ok := err.(*SynthesisError)
	return ok
}
