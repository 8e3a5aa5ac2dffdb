package models

import (
	"strings"
	"time"
)

const DefaultLanguage = "pt-BR"

type GenerateRequest struct {
	Brand             string   `json:"brand" validate:"required,max=200"`
	Topic             string   `json:"topic" validate:"required,max=500"`
	Keywords          []string `json:"keywords,omitempty" validate:"omitempty,max=50,dive,max=100"`
	Outline           []string `json:"outline,omitempty" validate:"omitempty,max=30,dive,max=300"`
	Tone              string   `json:"tone,omitempty" validate:"max=200"`
	WordCount         int      `json:"wordCount,omitempty" validate:"omitempty,min=100,max=10000"`
	Language          string   `json:"language,omitempty" validate:"omitempty,max=20"`
	AdditionalContext string   `json:"additionalContext,omitempty" validate:"max=5000"`
	Publish           bool     `json:"publish,omitempty"`
}

// Normalize trims every string field, drops blank keywords and outline
// entries, and applies the default language.
func (r *GenerateRequest) Normalize() {
	r.Brand = strings.TrimSpace(r.Brand)
	r.Topic = strings.TrimSpace(r.Topic)
	r.Tone = strings.TrimSpace(r.Tone)
	r.Language = strings.TrimSpace(r.Language)
	r.AdditionalContext = strings.TrimSpace(r.AdditionalContext)
	r.Keywords = compact(r.Keywords)
	r.Outline = compact(r.Outline)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
}

func compact(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Meta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

type Stats struct {
	Tokens     int   `json:"tokens"`
	DurationMs int64 `json:"durationMs"`
}

type ShopifyResult struct {
	ArticleID int64  `json:"articleId,omitempty"`
	BlogID    int64  `json:"blogId,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Error     string `json:"error,omitempty"`
}

type GenerateResponse struct {
	HTML    string         `json:"html"`
	Meta    Meta           `json:"meta"`
	Stats   Stats          `json:"stats"`
	TraceID string         `json:"traceId"`
	Shopify *ShopifyResult `json:"shopify,omitempty"`
}

// Generation is one persisted generation attempt.
type Generation struct {
	TraceID    string           `json:"traceId"`
	Brand      string           `json:"brand"`
	Topic      string           `json:"topic"`
	Language   string           `json:"language"`
	Request    GenerateRequest  `json:"request"`
	HTML       string           `json:"html,omitempty"`
	Meta       *Meta            `json:"meta,omitempty"`
	Tokens     int              `json:"tokens"`
	DurationMs int64            `json:"durationMs"`
	Status     GenerationStatus `json:"status"`
	Error      *string          `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)
