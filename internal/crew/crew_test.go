package crew

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seolab-api/internal/llm"
	"seolab-api/internal/models"
)

// scriptedClient answers each prompt from a per-agent script and records calls.
type scriptedClient struct {
	mu      sync.Mutex
	prompts []llm.CompletionRequest
	answer  func(req llm.CompletionRequest) (string, error)
}

func (c *scriptedClient) Complete(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req)
	c.mu.Unlock()

	text, err := c.answer(req)
	if err != nil {
		return nil, err
	}
	return &llm.Completion{Text: text, Usage: llm.Usage{TotalTokens: 10}}, nil
}

func (c *scriptedClient) Provider() llm.Provider { return "fake" }
func (c *scriptedClient) Model() string         { return "fake-model" }
func (c *scriptedClient) Close() error          { return nil }

func defaultAnswer(req llm.CompletionRequest) (string, error) {
	switch {
	case strings.Contains(req.System, "SEO Copywriter"):
		return "<h1>Draft</h1><p>draft body</p>", nil
	case strings.Contains(req.System, "Narrative Editor"):
		return "<h1>Final</h1><p>final body</p>", nil
	case strings.Contains(req.Prompt, "title: <title"):
		return "title: T\ndescription: D\nkeywords: a, b", nil
	default:
		return "notes", nil
	}
}

func testRequest() models.GenerateRequest {
	return models.GenerateRequest{
		Brand:    "Acme",
		Topic:    "Trail running shoes",
		Keywords: []string{"trail shoes", "running"},
		Outline:  []string{"Intro", "Choosing a pair"},
		Language: "en-US",
	}
}

func TestLoadDefinition_Embedded(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	assert.Len(t, def.Agents, 7)
	names := make([]string, 0, len(def.Tasks))
	for _, task := range def.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{
		"define_strategy", "identify_products", "map_opportunities", "plan_content",
		"map_semantic_fields", "write_content", "review_everything", "refine_narrative",
		"suggest_elements", "generate_seo_metafields",
	}, names)

	assert.Len(t, def.ActiveTasks(false), 8)
	assert.Len(t, def.ActiveTasks(true), 10)
}

func TestParseDefinition_Invalid(t *testing.T) {
	agents := []byte("writer:\n  role: Writer\n  goal: Write\n")

	tests := []struct {
		name  string
		tasks string
		want  string
	}{
		{"unknown agent", "- name: a\n  agent: nobody\n  output: html\n", "unknown agent"},
		{"duplicate", "- name: a\n  agent: writer\n  output: html\n- name: a\n  agent: writer\n  output: meta\n", "duplicate"},
		{"forward context", "- name: a\n  agent: writer\n  context: [b]\n  output: html\n- name: b\n  agent: writer\n  output: meta\n", "not an earlier task"},
		{"no meta", "- name: a\n  agent: writer\n  output: html\n", "meta output"},
		{"no html", "- name: a\n  agent: writer\n  output: meta\n", "html output"},
		{"bad kind", "- name: a\n  agent: writer\n  output: pdf\n", "unknown output kind"},
		{"bad template", "- name: a\n  agent: writer\n  output: html\n  description: \"{{.brand\"\n- name: b\n  agent: writer\n  output: meta\n", "invalid description template"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDefinition(agents, []byte(tc.tasks))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCrewRun_Sequential(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	client := &scriptedClient{answer: defaultAnswer}
	var steps []Progress
	result, err := New(def, client, nil, false).Run(context.Background(), BuildInputs(testRequest()), func(p Progress) {
		steps = append(steps, p)
	})
	require.NoError(t, err)

	assert.Equal(t, "<h1>Final</h1><p>final body</p>", result.HTML)
	assert.Equal(t, "title: T\ndescription: D\nkeywords: a, b", result.MetaRaw)
	assert.Equal(t, 80, result.Tokens)
	assert.Len(t, result.Outputs, 8)
	assert.NotContains(t, result.Outputs, "review_everything")

	require.Len(t, steps, 8)
	assert.Equal(t, Progress{Step: 1, Total: 8, Task: "define_strategy", Agent: "brand_strategist"}, steps[0])
	assert.Equal(t, "generate_seo_metafields", steps[7].Task)

	// refine_narrative sees the draft through its explicit context.
	refine := client.prompts[6]
	assert.Contains(t, refine.Prompt, "## write_content\n<h1>Draft</h1>")
	assert.Contains(t, refine.System, "Narrative Editor")

	// map_opportunities has no explicit context and sees the previous output.
	assert.Contains(t, client.prompts[2].Prompt, "## previous task\nnotes")
	assert.Contains(t, client.prompts[0].Prompt, "Acme")
	assert.Contains(t, client.prompts[0].Prompt, "en-US")
}

func TestCrewRun_StrategyReachesLaterStages(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	client := &scriptedClient{answer: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.Prompt, "Define the content strategy") {
			return "Angle: durable shoes for beginners", nil
		}
		return defaultAnswer(req)
	}}

	_, err = New(def, client, nil, false).Run(context.Background(), BuildInputs(testRequest()), nil)
	require.NoError(t, err)

	assert.Regexp(t, `strategy_summary: .?Angle: durable shoes for beginners`, client.prompts[1].Prompt)
	assert.NotContains(t, client.prompts[0].Prompt, "Angle: durable")
}

func TestCrewRun_Extended(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	client := &scriptedClient{answer: defaultAnswer}
	result, err := New(def, client, nil, true).Run(context.Background(), BuildInputs(testRequest()), nil)
	require.NoError(t, err)

	assert.Len(t, result.Outputs, 10)
	assert.Contains(t, result.Outputs, "suggest_elements")
	assert.Equal(t, "<h1>Final</h1><p>final body</p>", result.HTML)
}

func TestCrewRun_StopsOnError(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	client := &scriptedClient{answer: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.System, "Content Strategist") {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}

	_, err = New(def, client, nil, false).Run(context.Background(), BuildInputs(testRequest()), nil)
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "plan_content", taskErr.Task)
	assert.Len(t, client.prompts, 4)
}

func TestCrewRun_Cancelled(t *testing.T) {
	def, err := LoadDefinition()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedClient{answer: func(req llm.CompletionRequest) (string, error) {
		cancel()
		return "ok", nil
	}}

	_, err = New(def, client, nil, false).Run(ctx, BuildInputs(testRequest()), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, client.prompts, 1)
}
