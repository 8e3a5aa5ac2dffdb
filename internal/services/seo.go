package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"seolab-api/internal/content"
	"seolab-api/internal/crew"
	"seolab-api/internal/models"
	"seolab-api/internal/repository"
)

const (
	Version = "1.0.0"

	persistTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// Runner executes the agent pipeline for one request.
type Runner interface {
	Run(ctx context.Context, inputs crew.Inputs, progress crew.ProgressFunc) (*crew.Result, error)
	Steps() int
}

type GenerationStore interface {
	Create(ctx context.Context, g *models.Generation) error
	GetByTraceID(ctx context.Context, traceID string) (*models.Generation, error)
	List(ctx context.Context, brand string, limit, offset int) ([]*models.Generation, int, error)
}

type ResponseCache interface {
	Get(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	Set(ctx context.Context, req models.GenerateRequest, resp *models.GenerateResponse) error
}

type Publisher interface {
	Publish(ctx context.Context, article ShopifyArticle) (*models.ShopifyResult, error)
}

// HealthCheck checks one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type SEOConfig struct {
	Timeout            time.Duration
	ConcurrentRequests int
	Provider           string
	Model              string
}

// SEODeps are the optional collaborators. Nil fields disable the feature.
type SEODeps struct {
	History   GenerationStore
	Cache     ResponseCache
	Publisher Publisher
	Checks    []HealthCheck
}

type GenerateResult struct {
	Response *models.GenerateResponse
	CacheHit bool
}

type HealthReport struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Version      string            `json:"version"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	Dependencies map[string]string `json:"dependencies"`
}

type SEOService struct {
	runner   Runner
	cfg      SEOConfig
	deps     SEODeps
	logger   *zap.Logger
	rateChan chan struct{}
}

func NewSEOService(runner Runner, cfg SEOConfig, deps SEODeps, logger *zap.Logger) *SEOService {
	if cfg.ConcurrentRequests < 1 {
		cfg.ConcurrentRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rateChan := make(chan struct{}, cfg.ConcurrentRequests)
	for i := 0; i < cfg.ConcurrentRequests; i++ {
		rateChan <- struct{}{}
	}

	return &SEOService{
		runner:   runner,
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		rateChan: rateChan,
	}
}

// Steps is the number of progress steps a generation reports.
func (s *SEOService) Steps() int {
	return s.runner.Steps()
}

// PublishEnabled reports whether generated articles can be sent to Shopify.
func (s *SEOService) PublishEnabled() bool {
	return s.deps.Publisher != nil
}

// Prepare normalizes and validates a request.
func (s *SEOService) Prepare(req *models.GenerateRequest) error {
	req.Normalize()
	if fields := req.Validate(); fields != nil {
		return &ValidationError{Message: "Invalid request", Fields: fields}
	}
	if req.Publish && !s.PublishEnabled() {
		return &ValidationError{
			Message: "Invalid request",
			Fields:  map[string]string{"publish": "Shopify is not configured"},
		}
	}
	return nil
}

// Generate runs the full pipeline for req and returns the response envelope.
func (s *SEOService) Generate(ctx context.Context, req models.GenerateRequest, progress crew.ProgressFunc) (*GenerateResult, error) {
	return s.GenerateWithTrace(ctx, req, NewTraceID(), progress)
}

// GenerateWithTrace is Generate with a caller-chosen trace id.
func (s *SEOService) GenerateWithTrace(ctx context.Context, req models.GenerateRequest, traceID string, progress crew.ProgressFunc) (*GenerateResult, error) {
	if err := s.Prepare(&req); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := s.logger.With(zap.String("trace_id", traceID), zap.String("brand", req.Brand))

	if resp := s.cached(ctx, req, logger); resp != nil {
		resp.TraceID = traceID
		resp.Stats = models.Stats{Tokens: 0, DurationMs: time.Since(start).Milliseconds()}
		s.publish(ctx, req, resp, logger)
		logger.Info("generation served from cache")
		return &GenerateResult{Response: resp, CacheHit: true}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.run(runCtx, req, traceID, start, progress)
	if err != nil {
		err = s.classify(ctx, runCtx, err)
		s.record(ctx, failedGeneration(req, traceID, start, err))
		logger.Error("generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, req, resp); err != nil {
			logger.Warn("failed to cache response", zap.Error(err))
		}
	}
	s.record(ctx, succeededGeneration(req, resp))
	s.publish(ctx, req, resp, logger)

	logger.Info("generation completed",
		zap.Int("tokens", resp.Stats.Tokens),
		zap.Int64("duration_ms", resp.Stats.DurationMs),
	)
	return &GenerateResult{Response: resp}, nil
}

func (s *SEOService) run(ctx context.Context, req models.GenerateRequest, traceID string, start time.Time, progress crew.ProgressFunc) (*models.GenerateResponse, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	result, err := s.runner.Run(ctx, crew.BuildInputs(req), progress)
	if err != nil {
		return nil, err
	}

	article, err := content.NormalizeHTML(result.HTML)
	if err != nil {
		return nil, err
	}

	meta, err := content.ParseMeta(result.MetaRaw)
	if err != nil {
		s.logger.Warn("unusable meta output, using fallback", zap.String("trace_id", traceID), zap.Error(err))
	}
	meta = content.Fallback(meta, req)

	return &models.GenerateResponse{
		HTML: article.HTML,
		Meta: meta,
		Stats: models.Stats{
			Tokens:     result.Tokens,
			DurationMs: time.Since(start).Milliseconds(),
		},
		TraceID: traceID,
	}, nil
}

// acquireRate blocks until a generation slot is available.
func (s *SEOService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SEOService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *SEOService) classify(parent, runCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: s.cfg.Timeout}
	}
	return &GenerationError{Err: err}
}

func (s *SEOService) cached(ctx context.Context, req models.GenerateRequest, logger *zap.Logger) *models.GenerateResponse {
	if s.deps.Cache == nil {
		return nil
	}
	resp, err := s.deps.Cache.Get(ctx, req)
	if err != nil {
		logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	return resp
}

// publish pushes the article to Shopify when requested. Failures are
// reported on the response and never fail the generation.
func (s *SEOService) publish(ctx context.Context, req models.GenerateRequest, resp *models.GenerateResponse, logger *zap.Logger) {
	if !req.Publish || s.deps.Publisher == nil {
		return
	}

	result, err := s.deps.Publisher.Publish(ctx, ShopifyArticle{
		Title:          articleTitle(resp.HTML, resp.Meta.Title),
		BodyHTML:       resp.HTML,
		Summary:        resp.Meta.Description,
		Tags:           resp.Meta.Keywords,
		SEOTitle:       resp.Meta.Title,
		SEODescription: resp.Meta.Description,
	})
	if err != nil {
		logger.Warn("shopify publish failed", zap.Error(err))
		resp.Shopify = &models.ShopifyResult{Error: err.Error()}
		return
	}
	logger.Info("published draft article", zap.Int64("article_id", result.ArticleID))
	resp.Shopify = result
}

func (s *SEOService) record(ctx context.Context, g *models.Generation) {
	if s.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.deps.History.Create(ctx, g); err != nil {
		s.logger.Warn("failed to record generation", zap.String("trace_id", g.TraceID), zap.Error(err))
	}
}

func (s *SEOService) GetGeneration(ctx context.Context, traceID string) (*models.Generation, error) {
	if s.deps.History == nil {
		return nil, ErrHistoryUnavailable
	}
	g, err := s.deps.History.GetByTraceID(ctx, traceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "Generation"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load generation: %w", err)
	}
	return g, nil
}

func (s *SEOService) ListGenerations(ctx context.Context, brand string, limit, offset int) ([]*models.Generation, int, error) {
	if s.deps.History == nil {
		return nil, 0, ErrHistoryUnavailable
	}
	items, total, err := s.deps.History.List(ctx, brand, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list generations: %w", err)
	}
	return items, total, nil
}

// Health checks every configured dependency concurrently. A failing
// dependency degrades the report but never fails it.
func (s *SEOService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Version:      Version,
		Provider:     s.cfg.Provider,
		Model:        s.cfg.Model,
		Dependencies: map[string]string{},
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, check := range s.deps.Checks {
		g.Go(func() error {
			status := "ok"
			if err := check.Check(gctx); err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			report.Dependencies[check.Name] = status
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, status := range report.Dependencies {
		if status != "ok" {
			report.Status = "degraded"
		}
	}
	if s.PublishEnabled() {
		report.Dependencies["shopify"] = "configured"
	} else {
		report.Dependencies["shopify"] = "disabled"
	}
	return report
}

// NewTraceID returns an id of the form trace_<unix seconds>_<8 hex chars>.
func NewTraceID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("trace_%d_%s", time.Now().Unix(), suffix)
}

func articleTitle(html, fallback string) string {
	if article, err := content.NormalizeHTML(html); err == nil && article.Title != "" {
		return article.Title
	}
	return fallback
}

func succeededGeneration(req models.GenerateRequest, resp *models.GenerateResponse) *models.Generation {
	meta := resp.Meta
	return &models.Generation{
		TraceID:    resp.TraceID,
		Brand:      req.Brand,
		Topic:      req.Topic,
		Language:   req.Language,
		Request:    req,
		HTML:       resp.HTML,
		Meta:       &meta,
		Tokens:     resp.Stats.Tokens,
		DurationMs: resp.Stats.DurationMs,
		Status:     models.GenerationSucceeded,
	}
}

func failedGeneration(req models.GenerateRequest, traceID string, start time.Time, err error) *models.Generation {
	msg := err.Error()
	return &models.Generation{
		TraceID:    traceID,
		Brand:      req.Brand,
		Topic:      req.Topic,
		Language:   req.Language,
		Request:    req,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     models.GenerationFailed,
		Error:      &msg,
	}
}
