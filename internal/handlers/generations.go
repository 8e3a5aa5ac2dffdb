package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"seolab-api/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type GenerationHistory interface {
	GetGeneration(ctx context.Context, traceID string) (*models.Generation, error)
	ListGenerations(ctx context.Context, brand string, limit, offset int) ([]*models.Generation, int, error)
}

type GenerationHandler struct {
	svc GenerationHistory
}

func NewGenerationHandler(svc GenerationHistory) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid pagination",
			map[string]string{"limit": "must be between 1 and 50"}, r))
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid pagination",
			map[string]string{"offset": "must be zero or greater"}, r))
		return
	}

	items, total, err := h.svc.ListGenerations(r.Context(), r.URL.Query().Get("brand"), limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []*models.Generation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *GenerationHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGeneration(r.Context(), chi.URLParam(r, "traceId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
