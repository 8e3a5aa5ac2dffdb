package crew

import (
	"sort"
	"strings"
	"sync"
)

const (
	maxProductSentences = 3
	maxKeywords         = 5
	maxStrategySummary  = 200
	maxRelatedTerms     = 5
	maxSuggestedTitles  = 3

	defaultChunkLanguage = "pt_BR"
)

// Keyword is a search term with its monthly search volume, when known.
type Keyword struct {
	Term   string `yaml:"term" json:"term"`
	Volume int    `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// SemanticField groups the search data collected for one theme.
type SemanticField struct {
	RelatedGoogle   []string `yaml:"related_google" json:"related_google"`
	SearchIntent    string   `yaml:"search_intent" json:"search_intent"`
	SuggestedTitles []string `yaml:"suggested_titles" json:"suggested_titles"`
}

// ContextSummary describes what a Chunker has produced so far.
type ContextSummary struct {
	TotalContextsGenerated int      `json:"totalContextsGenerated"`
	CacheKeys              []string `json:"cacheKeys"`
	FullContextKeys        []string `json:"fullContextKeys"`
}

// Chunker hands each agent only the part of the generation context its
// current stage needs. Results are cached per agent and stage until the
// full context changes.
type Chunker struct {
	mu    sync.Mutex
	full  Inputs
	cache map[string]Inputs
}

func NewChunker(full Inputs) *Chunker {
	copied := make(Inputs, len(full))
	for k, v := range full {
		copied[k] = v
	}
	return &Chunker{full: copied, cache: make(map[string]Inputs)}
}

// MinimalContext returns the context for agent working at stage.
func (c *Chunker) MinimalContext(agent, stage string) Inputs {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := agent + "_" + stage
	if cached, ok := c.cache[key]; ok {
		return cached.clone()
	}

	ctx := c.baseContext()
	switch stage {
	case "strategy":
		ctx["benchmarks"] = c.str("benchmarks")
		ctx["blog"] = c.str("blog")
		ctx["format_recommendations"] = c.str("format_recommendations")
	case "products":
		ctx["products"] = limitProducts(c.str("products"), maxProductSentences)
		ctx["strategy_summary"] = summarizeStrategy(c.str("strategy_output"))
	case "seo":
		c.addSEO(ctx)
	case "content":
		c.addSEO(ctx)
		ctx["format_recommendations"] = c.str("format_recommendations")
		ctx["blog"] = c.str("blog")
		ctx["brief_summary"] = c.str("brief_summary")
		ctx["outline"] = c.full["outline"]
		ctx["tone"] = c.str("tone")
		ctx["word_count"] = c.full["word_count"]
	case "refinement":
		ctx["voice"] = c.str("voice")
		ctx["benchmarks"] = c.str("benchmarks")
		ctx["format_recommendations"] = c.str("format_recommendations")
	case "review":
		ctx["products"] = limitProducts(c.str("products"), maxProductSentences)
		ctx["voice"] = c.str("voice")
	case "visual":
		ctx["brand"] = c.str("brand")
		ctx["voice"] = c.str("voice")
	}

	switch agent {
	case "brand_strategist":
		ctx["brand_context"] = Inputs{
			"brand":      ctx["brand"],
			"voice":      ctx["voice"],
			"benchmarks": valueOr(ctx, "benchmarks", ""),
		}
	case "seo_specialist":
		ctx["seo_focus"] = Inputs{
			"theme_keywords":        valueOr(ctx, "theme_keywords", []Keyword{}),
			"keyword_opportunities": valueOr(ctx, "keyword_opportunities", []Keyword{}),
		}
	case "seo_copywriter":
		ctx["content_focus"] = Inputs{
			"format_recommendations": valueOr(ctx, "format_recommendations", ""),
			"semantic_fields":        valueOr(ctx, "semantic_fields", map[string]SemanticField{}),
		}
	}

	c.cache[key] = ctx
	return ctx.clone()
}

// Set stores a value in the full context and drops every cached chunk so
// later stages see it.
func (c *Chunker) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full[key] = value
	c.cache = make(map[string]Inputs)
}

func (c *Chunker) Summary() ContextSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := ContextSummary{
		TotalContextsGenerated: len(c.cache),
		CacheKeys:              make([]string, 0, len(c.cache)),
		FullContextKeys:        make([]string, 0, len(c.full)),
	}
	for k := range c.cache {
		summary.CacheKeys = append(summary.CacheKeys, k)
	}
	for k := range c.full {
		summary.FullContextKeys = append(summary.FullContextKeys, k)
	}
	sort.Strings(summary.CacheKeys)
	sort.Strings(summary.FullContextKeys)
	return summary
}

func (c *Chunker) baseContext() Inputs {
	lang := c.str("preferred_language")
	if lang == "" {
		lang = defaultChunkLanguage
	}
	return Inputs{
		"brand":              c.str("brand"),
		"voice":              c.str("voice"),
		"theme":              c.str("theme"),
		"name":               c.str("name"),
		"preferred_language": lang,
	}
}

func (c *Chunker) addSEO(ctx Inputs) {
	ctx["products"] = limitProducts(c.str("products"), maxProductSentences)
	ctx["theme_keywords"] = limitKeywords(asKeywords(c.full["theme_keywords"]), maxKeywords)
	ctx["keyword_opportunities"] = limitKeywords(asKeywords(c.full["keyword_opportunities"]), maxKeywords)
	ctx["semantic_fields"] = summarizeSemanticFields(c.full["semantic_fields"])
}

func (c *Chunker) str(key string) string {
	s, _ := c.full[key].(string)
	return s
}

// stageMapping assigns each agent's tasks to a context stage.
var stageMapping = map[string]map[string]string{
	"brand_strategist": {
		"define_strategy":   "strategy",
		"identify_products": "products",
	},
	"seo_specialist": {
		"map_opportunities":       "seo",
		"generate_seo_metafields": "seo",
	},
	"content_strategist": {"plan_content": "content"},
	"seo_copywriter":     {"write_content": "content"},
	"narrative_editor":   {"refine_narrative": "refinement"},
	"content_reviewer":   {"review_everything": "review"},
	"visual_consultant":  {"suggest_elements": "visual"},
}

// StageFor returns the context stage of task when run by agent, or
// "general" for unmapped pairs.
func StageFor(agent, task string) string {
	if stage, ok := stageMapping[agent][task]; ok {
		return stage
	}
	return "general"
}

func limitProducts(products string, max int) string {
	if products == "" {
		return ""
	}
	var sentences []string
	for _, s := range strings.Split(products, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
		if len(sentences) == max {
			break
		}
	}
	if len(sentences) == 0 {
		return ""
	}
	return strings.Join(sentences, ". ") + "."
}

func limitKeywords(keywords []Keyword, max int) []Keyword {
	sorted := make([]Keyword, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Volume > sorted[j].Volume
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

func summarizeStrategy(output string) string {
	runes := []rune(output)
	if len(runes) <= maxStrategySummary {
		return output
	}
	return string(runes[:maxStrategySummary]) + "..."
}

// summarizeSemanticFields trims per-theme search data. Plain term lists
// carry no per-theme data and pass through unchanged.
func summarizeSemanticFields(v any) any {
	switch fields := v.(type) {
	case map[string]SemanticField:
		out := make(map[string]SemanticField, len(fields))
		for theme, data := range fields {
			out[theme] = SemanticField{
				RelatedGoogle:   head(data.RelatedGoogle, maxRelatedTerms),
				SearchIntent:    data.SearchIntent,
				SuggestedTitles: head(data.SuggestedTitles, maxSuggestedTitles),
			}
		}
		return out
	case []string:
		return fields
	default:
		return map[string]SemanticField{}
	}
}

func asKeywords(v any) []Keyword {
	switch kw := v.(type) {
	case []Keyword:
		return kw
	case []string:
		out := make([]Keyword, 0, len(kw))
		for _, term := range kw {
			out = append(out, Keyword{Term: term})
		}
		return out
	default:
		return []Keyword{}
	}
}

func head(values []string, n int) []string {
	if values == nil {
		return []string{}
	}
	if len(values) > n {
		return values[:n]
	}
	return values
}

func valueOr(ctx Inputs, key string, fallback any) any {
	if v, ok := ctx[key]; ok {
		return v
	}
	return fallback
}
