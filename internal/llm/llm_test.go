package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "  <h1>Hi</h1>  ", "<h1>Hi</h1>"},
		{"html fence", "```html\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"json fence", "```json\n{\"title\":\"x\"}\n```", `{"title":"x"}`},
		{"bare fence", "```\n<p>body</p>\n```", "<p>body</p>"},
		{"fence without language and inline html", "```<p>a</p>\n<p>b</p>```", "<p>a</p>\n<p>b</p>"},
		{"lead-in sentence", "Here is the article:\n```html\n<h1>Title</h1><p>Body</p>\n```", "<h1>Title</h1><p>Body</p>"},
		{"lead-in and trailing note", "Sure!\n\n```json\n{\"title\":\"T\"}\n```\nLet me know if you need changes.", `{"title":"T"}`},
		{"first of two blocks", "```html\n<p>one</p>\n```\nand\n```html\n<p>two</p>\n```", "<p>one</p>"},
		{"unclosed fence after lead-in", "Draft:\n```html\n<p>body</p>", "<p>body</p>"},
		{"inline backticks are not a fence", "Use ```code``` sparingly", "Use ```code``` sparingly"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanFence(tc.in))
		})
	}
}

func TestNewClient_ProviderSelection(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, Config{OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Provider())
	assert.Equal(t, DefaultModels[ProviderOpenAI], c.Model())

	c, err = NewClient(ctx, Config{Provider: ProviderAnthropic, AnthropicAPIKey: "ak", Model: "claude-custom"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Provider())
	assert.Equal(t, "claude-custom", c.Model())

	_, err = NewClient(ctx, Config{Provider: ProviderAnthropic})
	assert.Error(t, err)

	_, err = NewClient(ctx, Config{Provider: ProviderGemini})
	assert.Error(t, err)

	_, err = NewClient(ctx, Config{Provider: "mistral"})
	assert.Error(t, err)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" <h1>Hello</h1> "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{OpenAIAPIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), CompletionRequest{System: "You are a writer.", Prompt: "Write."})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>", out.Text)
	assert.Equal(t, 42, out.Usage.TotalTokens)
}

// anthropicTestRequest is the subset of the Messages API body the tests check.
type anthropicTestRequest struct {
	MaxTokens int `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Temperature *float64 `json:"temperature"`
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body anthropicTestRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.System, 1) {
			assert.Equal(t, "You are an editor.", body.System[0].Text)
		}
		assert.Equal(t, 4096, body.MaxTokens)
		assert.Nil(t, body.Temperature)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"title: A"},{"type":"text","text":"\ndescription: B"}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(Config{AnthropicAPIKey: "ak-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), CompletionRequest{System: "You are an editor.", Prompt: "Meta please."})
	require.NoError(t, err)
	assert.Equal(t, "title: A\ndescription: B", out.Text)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestAnthropicClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After-Ms", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(Config{AnthropicAPIKey: "ak", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnthropicClient_DoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(Config{AnthropicAPIKey: "ak", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_SendsExplicitZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temp, ok := body["temperature"].(float64)
		if assert.True(t, ok, "temperature must be on the wire") {
			assert.Greater(t, temp, 0.0)
			assert.Less(t, temp, 1e-6)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	zero := float32(0)
	c, err := NewOpenAIClient(Config{OpenAIAPIKey: "sk", Model: "gpt-test", BaseURL: srv.URL, Temperature: &zero})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
}

func TestAnthropicClient_SendsExplicitZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body anthropicTestRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.NotNil(t, body.Temperature) {
			assert.Equal(t, 0.0, *body.Temperature)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	zero := float32(0)
	c, err := NewAnthropicClient(Config{AnthropicAPIKey: "ak", BaseURL: srv.URL, Temperature: &zero})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
}

func TestPickTemperature(t *testing.T) {
	low, high := float32(0), float32(0.9)

	assert.Nil(t, pickTemperature(nil, nil))
	assert.Equal(t, &high, pickTemperature(nil, &high))
	assert.Equal(t, &low, pickTemperature(&low, &high))

	assert.Equal(t, float32(0), openAITemperature(nil))
	assert.Greater(t, openAITemperature(&low), float32(0))
	assert.Equal(t, float32(0.9), openAITemperature(&high))
}
