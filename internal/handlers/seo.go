package handlers

import (
	"context"
	"net/http"

	"seolab-api/internal/crew"
	"seolab-api/internal/models"
	"seolab-api/internal/services"
)

type SEOService interface {
	Generate(ctx context.Context, req models.GenerateRequest, progress crew.ProgressFunc) (*services.GenerateResult, error)
	Health(ctx context.Context) services.HealthReport
}

type SEOHandler struct {
	svc SEOService
}

func NewSEOHandler(svc SEOService) *SEOHandler {
	return &SEOHandler{svc: svc}
}

func (h *SEOHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "SEO Lab API is running",
		"status":  "healthy",
	})
}

func (h *SEOHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *SEOHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.Generate(r.Context(), req, nil)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if result.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, result.Response)
}
