package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"seolab-api/internal/config"
	"seolab-api/internal/database"
	"seolab-api/internal/handlers"
	"seolab-api/internal/logging"
	"seolab-api/internal/middleware"
	"seolab-api/internal/repository"
	"seolab-api/internal/router"
	"seolab-api/internal/services"
	"seolab-api/internal/websocket"
	"seolab-api/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if servePort != "" {
		cfg.Port = servePort
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return err
	}
	defer logger.Sync()

	// ──── Step 2: Agent crew ────
	runner, client, err := newCrew(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	deps := services.SEODeps{}

	// ──── Step 3: Redis (queue, cache, progress) ────
	var (
		redisClients *database.RedisClients
		jobStore     *repository.JobStore
	)
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClients.Close()

		jobStore = repository.NewJobStore(redisClients.Queue)
		deps.Checks = append(deps.Checks, services.HealthCheck{Name: "redis", Check: jobStore.Ping})
		if cfg.GenerationCacheTTL > 0 {
			deps.Cache = repository.NewResponseCache(redisClients.Queue, cfg.GenerationCacheTTL)
		}
		logger.Info("redis connected", zap.Duration("cache_ttl", cfg.GenerationCacheTTL))
	} else {
		logger.Info("REDIS_URL not set, async jobs disabled")
	}

	// ──── Step 4: PostgreSQL (generation history) ────
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}

		history := repository.NewGenerationRepo(pool)
		deps.History = history
		deps.Checks = append(deps.Checks, services.HealthCheck{Name: "postgres", Check: history.Ping})
		logger.Info("postgres connected")
	} else {
		logger.Info("DATABASE_URL not set, generation history disabled")
	}

	// ──── Step 5: Shopify ────
	if cfg.ShopifyEnabled() {
		shopify, err := services.NewShopifyClient(services.ShopifyConfig{
			ShopName:    cfg.ShopifyShopName,
			AccessToken: cfg.ShopifyAccessToken,
			BlogID:      cfg.ShopifyBlogID,
			APIVersion:  cfg.ShopifyAPIVersion,
		})
		if err != nil {
			return err
		}
		deps.Publisher = shopify
		logger.Info("shopify publishing enabled", zap.String("shop", cfg.ShopifyShopName))
	}

	seoService := services.NewSEOService(runner, services.SEOConfig{
		Timeout:            cfg.GenerationTimeout,
		ConcurrentRequests: cfg.LLMConcurrentRequests,
		Provider:           string(client.Provider()),
		Model:              client.Model(),
	}, deps, logger)

	// ──── Step 6: Worker pool and websocket hub ────
	tokens := middleware.NewStreamTokens(cfg.EdgeAPIKey)
	var (
		jobQueue   handlers.JobQueue
		workerPool *worker.Pool
		wsHub      *websocket.Hub
	)
	if jobStore != nil {
		jobQueue = jobStore
		progress := services.NewProgressPublisher(redisClients.PubSub, logger)
		workerPool = worker.NewPool(redisClients.Queue, seoService, jobStore, progress, logger, cfg.WorkerCount)
		workerPool.Start()
		wsHub = websocket.NewHub(redisClients.PubSub, tokens, logger)
		logger.Info("worker pool started", zap.Int("workers", cfg.WorkerCount))
	}

	// ──── Step 7: HTTP server ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	handler := router.New(
		handlers.NewSEOHandler(seoService),
		handlers.NewJobHandler(seoService, jobQueue, tokens),
		handlers.NewGenerationHandler(seoService),
		wsHub,
		router.Options{
			APIKey:         cfg.EdgeAPIKey,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Limiter:        limiter,
			Logger:         logger,
		},
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Synchronous generation holds the connection for the whole crew run
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("SEO Lab API ready", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if workerPool != nil {
		if err := workerPool.Stop(shutdownCtx); err != nil {
			logger.Warn("workers still running at shutdown", zap.Error(err))
		}
	}
	if wsHub != nil {
		wsHub.Close()
	}
	return nil
}
