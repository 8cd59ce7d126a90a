// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Translation of SDK errors into StatusError
//
// Retries live in Client, not in providers.

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the configured default model.
	Model() string

	// Complete sends one completion request. The LLM may respond with tool
	// calls in LLMResponse.ToolCalls. Implementations must not retry.
	Complete(ctx context.Context, req Request) (LLMResponse, error)
}

// defaults holds a provider's configured request settings. Request fields
// override them per call.
type defaults struct {
	model       string
	maxTokens   uint32
	temperature float32
}

func (d defaults) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return d.model
}

func (d defaults) maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return int(d.maxTokens)
}

func (d defaults) temperatureFor(req Request) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return d.temperature
}
