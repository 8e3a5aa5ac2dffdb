package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"

	"seolab-api/internal/models"
)

type ShopifyConfig struct {
	ShopName    string
	AccessToken string
	BlogID      string
	APIVersion  string
	// HTTPClient replaces the default client. Its transport decides where
	// requests actually go.
	HTTPClient *http.Client
}

// ShopifyArticle is a generated post ready to be stored as a blog article.
type ShopifyArticle struct {
	Title          string
	BodyHTML       string
	Summary        string
	Tags           []string
	SEOTitle       string
	SEODescription string
}

// ShopifyClient creates unpublished blog articles through the Admin REST API.
type ShopifyClient struct {
	client *goshopify.Client

	mu     sync.Mutex
	blogID uint64
}

func NewShopifyClient(cfg ShopifyConfig) (*ShopifyClient, error) {
	if cfg.ShopName == "" || cfg.AccessToken == "" {
		return nil, errors.New("Shopify shop name and access token are required")
	}

	version := cfg.APIVersion
	if version == "" {
		version = "2024-07"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	shop := strings.TrimSuffix(cfg.ShopName, ".myshopify.com")
	client, err := goshopify.NewClient(goshopify.App{}, shop, cfg.AccessToken,
		goshopify.WithVersion(version),
		goshopify.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Shopify client: %w", err)
	}

	c := &ShopifyClient{client: client}

	if cfg.BlogID != "" {
		id, err := strconv.ParseUint(cfg.BlogID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SHOPIFY_BLOG_ID %q: %w", cfg.BlogID, err)
		}
		c.blogID = id
	}

	return c, nil
}

// shopifyArticlePayload is posted as is so published=false always reaches
// the API.
type shopifyArticlePayload struct {
	Article struct {
		Title       string             `json:"title"`
		BodyHTML    string             `json:"body_html"`
		SummaryHTML string             `json:"summary_html,omitempty"`
		Tags        string             `json:"tags,omitempty"`
		Published   bool               `json:"published"`
		Metafields  []shopifyMetafield `json:"metafields,omitempty"`
	} `json:"article"`
}

type shopifyMetafield struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
}

type shopifyArticleResource struct {
	Article struct {
		ID     uint64 `json:"id"`
		BlogID uint64 `json:"blog_id"`
		Handle string `json:"handle"`
	} `json:"article"`
}

// Publish stores the article as a draft on the configured blog.
func (c *ShopifyClient) Publish(ctx context.Context, article ShopifyArticle) (*models.ShopifyResult, error) {
	blogID, err := c.resolveBlogID(ctx)
	if err != nil {
		return nil, err
	}

	var payload shopifyArticlePayload
	payload.Article.Title = article.Title
	payload.Article.BodyHTML = article.BodyHTML
	payload.Article.SummaryHTML = article.Summary
	payload.Article.Tags = strings.Join(article.Tags, ", ")
	if article.SEOTitle != "" {
		payload.Article.Metafields = append(payload.Article.Metafields, shopifyMetafield{
			Key: "title_tag", Value: article.SEOTitle, Type: "single_line_text_field", Namespace: "global",
		})
	}
	if article.SEODescription != "" {
		payload.Article.Metafields = append(payload.Article.Metafields, shopifyMetafield{
			Key: "description_tag", Value: article.SEODescription, Type: "multi_line_text_field", Namespace: "global",
		})
	}

	var created shopifyArticleResource
	path := fmt.Sprintf("blogs/%d/articles.json", blogID)
	if err := c.client.Post(ctx, path, payload, &created); err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	result := &models.ShopifyResult{
		ArticleID: int64(created.Article.ID),
		BlogID:    int64(created.Article.BlogID),
		Handle:    created.Article.Handle,
	}
	if result.BlogID == 0 {
		result.BlogID = int64(blogID)
	}
	return result, nil
}

// resolveBlogID returns the configured blog, or the shop's first blog.
func (c *ShopifyClient) resolveBlogID(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blogID != 0 {
		return c.blogID, nil
	}

	blogs, err := c.client.Blog.List(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list blogs: %w", err)
	}
	if len(blogs) == 0 {
		return 0, errors.New("shop has no blogs")
	}

	c.blogID = blogs[0].Id
	return c.blogID, nil
}
