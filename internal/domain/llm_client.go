package domain

import "context"

// GenerationOptions bound a single generation call.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}

// LLMResponse is the model output for one prompt.
type LLMResponse struct {
	Text string
	// Done is false when the model stopped before finishing.
	Done bool
}

// LLMClient defines the capability to send prompts to an LLM and receive
// textual responses.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (*LLMResponse, error)
	// Version identifies the generation model for logging and audits.
	Version() string
}
