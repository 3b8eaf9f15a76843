package interfaces

import (
	"context"
)

// CompletionRequest is a single-turn completion call
type CompletionRequest struct {
	// System sets the system prompt, may be empty
	System string

	// Prompt is the user message content
	Prompt string

	// MaxTokens overrides the configured cap when > 0
	MaxTokens int
}

// LLMService defines the interface for language model completions used by
// the fallback extractor and custom-board maintenance checks
type LLMService interface {
	// Complete generates a completion for the request and returns the
	// text content of the response
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteJSON generates a completion and returns the first JSON
	// document found in the response, stripped of surrounding prose or
	// code fences
	CompleteJSON(ctx context.Context, req CompletionRequest) ([]byte, error)

	// ModelName returns the configured model identifier
	ModelName() string

	// HealthCheck verifies the service is configured and reachable
	HealthCheck(ctx context.Context) error
}
