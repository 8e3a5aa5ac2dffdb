package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxRetries = 3

// AnthropicClient implements Client for the Anthropic Messages API.
type AnthropicClient struct {
	client     anthropic.Client
	config     Config
	httpClient *http.Client
}

// NewAnthropicClient builds a Messages API client. Rate limits and 5xx
// responses are retried by the SDK with exponential backoff.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := strings.TrimSpace(cfg.AnthropicAPIKey)
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	httpClient := &http.Client{}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(anthropicMaxRetries),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	return &AnthropicClient{
		client:     anthropic.NewClient(opts...),
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.ModelName()),
		MaxTokens: int64(pick(pick(req.MaxTokens, c.config.MaxTokens), 4096)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if temp := pickTemperature(req.Temperature, c.config.Temperature); temp != nil {
		params.Temperature = anthropic.Float(float64(*temp))
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("Anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, errors.New("Anthropic response content is empty")
	}

	input, output := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &Completion{
		Text: out,
		Usage: Usage{
			PromptTokens:     input,
			CompletionTokens: output,
			TotalTokens:      input + output,
		},
	}, nil
}

func (c *AnthropicClient) Provider() Provider { return ProviderAnthropic }

func (c *AnthropicClient) Model() string { return c.config.ModelName() }

func (c *AnthropicClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
