package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"seolab-api/internal/config"
	"seolab-api/internal/crew"
	"seolab-api/internal/llm"
)

// newCrew builds the LLM client and the agent crew that runs on it. The
// caller closes the client.
func newCrew(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*crew.Crew, llm.Client, error) {
	temperature := float32(cfg.LLMTemperature)
	client, err := llm.NewClient(ctx, llm.Config{
		Provider:        llm.Provider(cfg.LLMProvider),
		Model:           cfg.LLMModel,
		Temperature:     &temperature,
		MaxTokens:       cfg.LLMMaxTokens,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	def, err := crew.LoadDefinition()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to load crew definition: %w", err)
	}

	logger.Info("crew ready",
		zap.String("provider", string(client.Provider())),
		zap.String("model", client.Model()),
		zap.Int("tasks", len(def.ActiveTasks(cfg.CrewExtended))),
	)
	return crew.New(def, client, logger, cfg.CrewExtended), client, nil
}
