// Package llm provides LLM provider abstractions.
//
// Providers back the "llm" retrieval mode, where a second model call turns a
// question into search keywords. Each implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a single non-streaming chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)
}
