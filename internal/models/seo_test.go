package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequest_Normalize(t *testing.T) {
	req := GenerateRequest{
		Brand:    "  Nami Works ",
		Topic:    "AI in content\n",
		Keywords: []string{" AI content ", "", "   ", "future tech"},
	}
	req.Normalize()

	assert.Equal(t, "Nami Works", req.Brand)
	assert.Equal(t, "AI in content", req.Topic)
	assert.Equal(t, []string{"AI content", "future tech"}, req.Keywords)
	assert.Nil(t, req.Outline)
	assert.Equal(t, DefaultLanguage, req.Language)
}

func TestGenerateRequest_NormalizeKeepsLanguage(t *testing.T) {
	req := GenerateRequest{Brand: "b", Topic: "t", Language: "en-US"}
	req.Normalize()
	assert.Equal(t, "en-US", req.Language)
}

func TestGenerateRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    GenerateRequest
		fields []string
	}{
		{"valid minimal", GenerateRequest{Brand: "Nami", Topic: "AI"}, nil},
		{"missing topic", GenerateRequest{Brand: "Nami"}, []string{"topic"}},
		{"missing both", GenerateRequest{}, []string{"brand", "topic"}},
		{"whitespace brand", GenerateRequest{Brand: "   ", Topic: "AI"}, []string{"brand"}},
		{"word count too small", GenerateRequest{Brand: "Nami", Topic: "AI", WordCount: 10}, []string{"wordCount"}},
		{"word count too large", GenerateRequest{Brand: "Nami", Topic: "AI", WordCount: 50000}, []string{"wordCount"}},
		{"keyword too long", GenerateRequest{Brand: "Nami", Topic: "AI", Keywords: []string{strings.Repeat("k", 101)}}, []string{"keywords[0]"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Normalize()
			fields := tc.req.Validate()
			if tc.fields == nil {
				assert.Nil(t, fields)
				return
			}
			require.Len(t, fields, len(tc.fields))
			for _, f := range tc.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestGenerateRequest_JSONFieldNames(t *testing.T) {
	body := `{"brand":"Nami Works","topic":"The Future of AI","keywords":["AI content"],"language":"en-US","wordCount":1000,"additionalContext":"Small businesses."}`

	var req GenerateRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, 1000, req.WordCount)
	assert.Equal(t, "Small businesses.", req.AdditionalContext)
}

func TestGenerateResponse_KeywordsNeverNull(t *testing.T) {
	resp := GenerateResponse{HTML: "<p>x</p>", Meta: Meta{Keywords: []string{}}, TraceID: "trace_1"}
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"keywords":[]`)
	assert.Contains(t, string(data), `"durationMs":0`)
	assert.NotContains(t, string(data), "shopify")
}
