package crew

import (
	"fmt"

	"seolab-api/internal/models"
)

const defaultWordCount = 1200

// Inputs is the full generation context shared by every task.
type Inputs map[string]any

func (in Inputs) clone() Inputs {
	out := make(Inputs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// BuildInputs derives the crew context from a normalized request.
func BuildInputs(req models.GenerateRequest) Inputs {
	keywords := make([]Keyword, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		keywords = append(keywords, Keyword{Term: k})
	}
	opportunities := keywords
	if len(opportunities) > maxKeywords {
		opportunities = opportunities[:maxKeywords]
	}

	voice := fmt.Sprintf("Professional voice for %s", req.Brand)
	if req.Tone != "" {
		voice = req.Tone
	}

	products := req.AdditionalContext
	if products == "" {
		products = fmt.Sprintf("Products and services from %s", req.Brand)
	}

	language := req.Language
	if language == "" {
		language = models.DefaultLanguage
	}

	wordCount := req.WordCount
	if wordCount == 0 {
		wordCount = defaultWordCount
	}

	outline := req.Outline
	if outline == nil {
		outline = []string{}
	}

	return Inputs{
		"brand":                  req.Brand,
		"name":                   req.Topic,
		"theme":                  req.Topic,
		"voice":                  voice,
		"products":               products,
		"blog":                   fmt.Sprintf("Blog content for %s focusing on %s", req.Brand, req.Topic),
		"benchmarks":             fmt.Sprintf("Industry benchmarks for %s", req.Topic),
		"format_recommendations": "HTML format with proper SEO structure",
		"semantic_fields":        append([]string{req.Topic}, req.Keywords...),
		"theme_keywords":         keywords,
		"keyword_opportunities":  opportunities,
		"preferred_language":     language,
		"brief_summary":          fmt.Sprintf("Comprehensive guide about %s for %s audience", req.Topic, req.Brand),
		"editorial_guidelines":   fmt.Sprintf("Professional content for %s focusing on %s", req.Brand, req.Topic),
		"outline":                outline,
		"tone":                   req.Tone,
		"word_count":             wordCount,
		"additional_context":     req.AdditionalContext,
	}
}
