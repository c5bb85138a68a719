package llm

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by providers and the narrative layer.
var (
	// ErrGenerationTimeout indicates the model did not answer within the
	// configured deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationEmpty indicates the model answered with no usable text.
	ErrGenerationEmpty = errors.New("generation returned empty output")
)

// Provider defines the interface for interacting with LLM services.
type Provider interface {
	// GenerateText sends a prompt and returns the text response.
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// GenerateJSON sends a prompt and unmarshals the response into the target struct.
	GenerateJSON(ctx context.Context, name, prompt string, target any) error

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// HasProfile checks if the provider has a specific profile configured.
	HasProfile(name string) bool
}
