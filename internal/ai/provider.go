// Package ai defines the generation capability consumed by the answer
// engine, concrete providers for it, and the classified error type shared
// by all external model services (generation and embedding).
package ai

import "context"

// ChatMessage represents a message in a conversation
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// GenerateRequest represents a request to generate a model response
type GenerateRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// GenerateResponse represents a model's response
type GenerateResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage,omitempty"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for generation providers. Implementations
// must return a *CapabilityError for service failures so callers can map
// them to user-visible fallbacks.
type Provider interface {
	Name() string
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
