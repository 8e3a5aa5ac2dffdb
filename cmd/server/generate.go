package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"seolab-api/internal/config"
	"seolab-api/internal/crew"
	"seolab-api/internal/logging"
	"seolab-api/internal/models"
	"seolab-api/internal/services"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the content pipeline once and print the response",
	Long:  "Runs the agent crew for a single request without starting the HTTP server. The GenerateResponse JSON is written to stdout; --out also writes the article HTML to a file.",
	RunE:  runGenerate,
}

var (
	generateReq     models.GenerateRequest
	generateOutFile string
)

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateReq.Brand, "brand", "", "Brand name (required)")
	f.StringVar(&generateReq.Topic, "topic", "", "Article topic (required)")
	f.StringArrayVar(&generateReq.Keywords, "keyword", nil, "Target keyword (repeatable)")
	f.StringArrayVar(&generateReq.Outline, "outline", nil, "Outline heading (repeatable)")
	f.StringVar(&generateReq.Tone, "tone", "", "Tone of voice")
	f.IntVar(&generateReq.WordCount, "word-count", 0, "Target word count")
	f.StringVar(&generateReq.Language, "language", "", "Content language (default pt-BR)")
	f.StringVar(&generateReq.AdditionalContext, "context", "", "Additional context for the writers")
	f.StringVarP(&generateOutFile, "out", "o", "", "Write the article HTML to this file")

	if err := generateCmd.MarkFlagRequired("brand"); err != nil {
		panic(fmt.Sprintf("failed to mark brand flag as required: %v", err))
	}
	if err := generateCmd.MarkFlagRequired("topic"); err != nil {
		panic(fmt.Sprintf("failed to mark topic flag as required: %v", err))
	}

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runner, client, err := newCrew(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	svc := services.NewSEOService(runner, services.SEOConfig{
		Timeout:            cfg.GenerationTimeout,
		ConcurrentRequests: 1,
		Provider:           string(client.Provider()),
		Model:              client.Model(),
	}, services.SEODeps{}, logger)

	result, err := svc.Generate(ctx, generateReq, func(p crew.Progress) {
		logger.Info("step", zap.Int("step", p.Step), zap.Int("total", p.Total), zap.String("task", p.Task))
	})
	if err != nil {
		if verr, ok := err.(*services.ValidationError); ok {
			for field, msg := range verr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
			}
		}
		return err
	}

	if generateOutFile != "" {
		if dir := filepath.Dir(generateOutFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(generateOutFile, []byte(result.Response.HTML), 0o644); err != nil {
			return fmt.Errorf("failed to write HTML: %w", err)
		}
		logger.Info("article written", zap.String("path", generateOutFile))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Response)
}
