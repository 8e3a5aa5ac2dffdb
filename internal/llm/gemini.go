package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config Config
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, errors.New("Gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.GeminiAPIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, config: cfg}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := c.client.GenerativeModel(c.config.ModelName())
	if temp := pickTemperature(req.Temperature, c.config.Temperature); temp != nil {
		model.SetTemperature(*temp)
	}
	model.SetTopP(0.95)
	if maxTokens := pick(req.MaxTokens, c.config.MaxTokens); maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return nil, err
	}

	completion := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		completion.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return completion, nil
}

func (c *GeminiClient) Provider() Provider { return ProviderGemini }

func (c *GeminiClient) Model() string { return c.config.ModelName() }

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in Gemini response (finish reason %s)", candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	out := strings.TrimSpace(strings.Join(parts, ""))
	if out == "" {
		return "", errors.New("no text parts in Gemini response")
	}
	return out, nil
}
