package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seolab-api/internal/llm"
)

var ErrEmptyContent = errors.New("generated content is empty")

// Article is a cleaned HTML fragment ready to return or publish.
type Article struct {
	HTML      string
	Title     string
	WordCount int
}

// NormalizeHTML turns model output into a clean HTML fragment. Full
// documents are reduced to their body, and scripts, styles and iframes are
// removed.
func NormalizeHTML(raw string) (*Article, error) {
	cleaned := llm.CleanFence(raw)
	if cleaned == "" {
		return nil, ErrEmptyContent
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	body := doc.Find("body").First()
	body.Find("script, style, iframe, noscript").Remove()

	words := countWords(body)
	if words == 0 {
		return nil, ErrEmptyContent
	}

	html, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}

	return &Article{
		HTML:      strings.TrimSpace(html),
		Title:     strings.TrimSpace(body.Find("h1").First().Text()),
		WordCount: words,
	}, nil
}

// countWords counts words per text node so adjacent block elements do not
// merge their first and last words.
func countWords(sel *goquery.Selection) int {
	n := 0
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			n += len(strings.Fields(s.Text()))
			return
		}
		n += countWords(s)
	})
	return n
}
