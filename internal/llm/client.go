// Package llm provides provider-neutral access to the chat models that back
// the content pipeline. OpenAI, Anthropic and Gemini are supported.
package llm

import (
	"context"
	"fmt"
)

// Provider represents an LLM provider
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.5-flash",
}

// CompletionRequest is a single system+user exchange. A non-nil
// Temperature overrides the client setting.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the model's reply.
type Completion struct {
	Text  string
	Usage Usage
}

// Client is an abstraction over LLM providers
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Provider() Provider
	Model() string
	Close() error
}

// Config selects and configures a provider. Temperature is sent as is, zero
// included; nil keeps the provider default.
type Config struct {
	Provider        Provider
	Model           string
	Temperature     *float32
	MaxTokens       int
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// BaseURL overrides the provider endpoint. Used for proxies and tests.
	BaseURL string
}

// ModelName returns the configured model or the provider default.
func (c Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModels[c.Provider]
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		cfg.Provider = ProviderOpenAI
		return NewOpenAIClient(cfg)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
