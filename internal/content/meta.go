package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"seolab-api/internal/llm"
	"seolab-api/internal/models"
)

const metaSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "keywords": {
      "oneOf": [
        {"type": "array", "items": {"type": "string"}},
        {"type": "string"}
      ]
    }
  },
  "anyOf": [
    {"required": ["title"]},
    {"required": ["description"]},
    {"required": ["keywords"]}
  ]
}`

var metaSchemaLoader = gojsonschema.NewStringLoader(metaSchema)

// ParseMeta extracts title, description and keywords from the metadata
// task's output. It accepts "title:" style lines, optionally as markdown
// bullets or bold labels, or a JSON object. Fields that are not found stay
// empty.
func ParseMeta(raw string) (models.Meta, error) {
	cleaned := llm.CleanFence(raw)
	if strings.HasPrefix(cleaned, "{") {
		return parseMetaJSON(cleaned)
	}
	return parseMetaLines(cleaned), nil
}

func parseMetaLines(text string) models.Meta {
	meta := models.Meta{Keywords: []string{}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-* ")
		line = strings.ReplaceAll(line, "**", "")

		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch strings.ToLower(strings.TrimSpace(label)) {
		case "title":
			meta.Title = value
		case "description":
			meta.Description = value
		case "keywords":
			meta.Keywords = splitKeywords(value)
		}
	}
	return meta
}

func parseMetaJSON(text string) (models.Meta, error) {
	result, err := gojsonschema.Validate(metaSchemaLoader, gojsonschema.NewStringLoader(text))
	if err != nil {
		return models.Meta{}, fmt.Errorf("failed to parse meta json: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return models.Meta{}, fmt.Errorf("invalid meta json: %s", strings.Join(msgs, "; "))
	}

	var decoded struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Keywords    json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return models.Meta{}, fmt.Errorf("failed to decode meta json: %w", err)
	}

	meta := models.Meta{
		Title:       strings.TrimSpace(decoded.Title),
		Description: strings.TrimSpace(decoded.Description),
		Keywords:    []string{},
	}
	if len(decoded.Keywords) > 0 {
		var list []string
		if err := json.Unmarshal(decoded.Keywords, &list); err == nil {
			meta.Keywords = compactKeywords(list)
		} else {
			var joined string
			if err := json.Unmarshal(decoded.Keywords, &joined); err == nil {
				meta.Keywords = splitKeywords(joined)
			}
		}
	}
	return meta, nil
}

// Fallback fills every empty field of meta from the request.
func Fallback(meta models.Meta, req models.GenerateRequest) models.Meta {
	if meta.Title == "" {
		meta.Title = fmt.Sprintf("%s - %s", req.Topic, req.Brand)
	}
	if meta.Description == "" {
		meta.Description = fmt.Sprintf("Comprehensive guide about %s for %s", req.Topic, req.Brand)
	}
	if len(meta.Keywords) == 0 {
		meta.Keywords = compactKeywords(req.Keywords)
	}
	return meta
}

func splitKeywords(s string) []string {
	return compactKeywords(strings.Split(s, ","))
}

func compactKeywords(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
