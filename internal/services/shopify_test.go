package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport sends every request to target, keeping path and query.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	req.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func shopifyTestClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &http.Client{Transport: redirectTransport{target: target}}
}

func TestNewShopifyClient(t *testing.T) {
	_, err := NewShopifyClient(ShopifyConfig{ShopName: "acme"})
	assert.Error(t, err)

	_, err = NewShopifyClient(ShopifyConfig{ShopName: "acme", AccessToken: "tok", BlogID: "abc"})
	assert.Error(t, err)

	c, err := NewShopifyClient(ShopifyConfig{ShopName: "acme.myshopify.com", AccessToken: "tok", BlogID: "12"})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), c.blogID)
}

func TestShopifyClient_PublishResolvesFirstBlog(t *testing.T) {
	var blogLookups int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/admin/api/2024-10/blogs.json":
			atomic.AddInt32(&blogLookups, 1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"blogs":[{"id":41},{"id":42}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/admin/api/2024-10/blogs/41/articles.json":
			var payload shopifyArticlePayload
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Trail shoes", payload.Article.Title)
			assert.False(t, payload.Article.Published)
			assert.Equal(t, "trail, shoes", payload.Article.Tags)
			if assert.Len(t, payload.Article.Metafields, 2) {
				assert.Equal(t, "title_tag", payload.Article.Metafields[0].Key)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"article":{"id":900,"blog_id":41,"handle":"trail-shoes"}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewShopifyClient(ShopifyConfig{
		ShopName:    "acme",
		AccessToken: "tok",
		APIVersion:  "2024-10",
		HTTPClient:  shopifyTestClient(t, srv),
	})
	require.NoError(t, err)

	article := ShopifyArticle{
		Title:          "Trail shoes",
		BodyHTML:       "<h1>Trail shoes</h1>",
		Tags:           []string{"trail", "shoes"},
		SEOTitle:       "Trail shoes guide",
		SEODescription: "How to choose",
	}
	for i := 0; i < 2; i++ {
		result, err := c.Publish(context.Background(), article)
		require.NoError(t, err)
		assert.Equal(t, int64(900), result.ArticleID)
		assert.Equal(t, int64(41), result.BlogID)
		assert.Equal(t, "trail-shoes", result.Handle)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&blogLookups))
}

func TestShopifyClient_ConfiguredBlogAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-07/blogs/5/articles.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":"missing write_content scope"}`))
	}))
	defer srv.Close()

	c, err := NewShopifyClient(ShopifyConfig{
		ShopName:    "acme",
		AccessToken: "tok",
		BlogID:      "5",
		HTTPClient:  shopifyTestClient(t, srv),
	})
	require.NoError(t, err)

	_, err = c.Publish(context.Background(), ShopifyArticle{Title: "x", BodyHTML: "<p>x</p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create article")
	assert.Contains(t, err.Error(), "write_content")
}

func TestShopifyClient_NoBlogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"blogs":[]}`))
	}))
	defer srv.Close()

	c, err := NewShopifyClient(ShopifyConfig{ShopName: "acme", AccessToken: "tok", HTTPClient: shopifyTestClient(t, srv)})
	require.NoError(t, err)

	_, err = c.Publish(context.Background(), ShopifyArticle{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no blogs")
}
