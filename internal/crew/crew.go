package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"seolab-api/internal/llm"
)

// Progress is reported before each task starts.
type Progress struct {
	Step  int
	Total int
	Task  string
	Agent string
}

type ProgressFunc func(Progress)

// Result holds the outputs of a crew run.
type Result struct {
	HTML    string
	MetaRaw string
	Outputs map[string]string
	Tokens  int
	Context ContextSummary
}

// TaskError reports which task failed.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Crew runs the task list sequentially against one model client.
type Crew struct {
	def      *Definition
	client   llm.Client
	logger   *zap.Logger
	extended bool
}

func New(def *Definition, client llm.Client, logger *zap.Logger, extended bool) *Crew {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crew{def: def, client: client, logger: logger, extended: extended}
}

// Steps is the number of tasks a run executes.
func (c *Crew) Steps() int {
	return len(c.def.ActiveTasks(c.extended))
}

func (c *Crew) Run(ctx context.Context, inputs Inputs, progress ProgressFunc) (*Result, error) {
	tasks := c.def.ActiveTasks(c.extended)
	chunker := NewChunker(inputs)
	result := &Result{Outputs: make(map[string]string, len(tasks))}

	var previous string
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		agent := c.def.Agents[task.Agent]
		if progress != nil {
			progress(Progress{Step: i + 1, Total: len(tasks), Task: task.Name, Agent: agent.Name})
		}

		prompt, err := c.buildPrompt(task, chunker, inputs, result.Outputs, previous)
		if err != nil {
			return nil, &TaskError{Task: task.Name, Err: err}
		}

		start := time.Now()
		completion, err := c.client.Complete(ctx, llm.CompletionRequest{
			System: agent.SystemPrompt(),
			Prompt: prompt,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TaskError{Task: task.Name, Err: err}
		}

		output := strings.TrimSpace(completion.Text)
		result.Outputs[task.Name] = output
		result.Tokens += completion.Usage.TotalTokens
		previous = output

		if task.OutputKey != "" {
			chunker.Set(task.OutputKey, output)
		}
		switch task.Output {
		case OutputHTML:
			result.HTML = output
		case OutputMeta:
			result.MetaRaw = output
		}

		c.logger.Info("crew task completed",
			zap.String("task", task.Name),
			zap.String("agent", agent.Name),
			zap.Int("step", i+1),
			zap.Int("tokens", completion.Usage.TotalTokens),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	result.Context = chunker.Summary()
	return result, nil
}

func (c *Crew) buildPrompt(task Task, chunker *Chunker, inputs Inputs, outputs map[string]string, previous string) (string, error) {
	chunk := chunker.MinimalContext(task.Agent, task.StageName())

	data := inputs.clone()
	for k, v := range chunk {
		data[k] = v
	}

	var description strings.Builder
	if err := task.tmpl.Execute(&description, data); err != nil {
		return "", fmt.Errorf("failed to render description: %w", err)
	}

	contextBlock, err := yaml.Marshal(map[string]any(chunk))
	if err != nil {
		return "", fmt.Errorf("failed to render context: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(description.String()))
	b.WriteString("\n\nContext:\n```yaml\n")
	b.Write(contextBlock)
	b.WriteString("```\n")

	prior := priorOutputs(task, outputs, previous)
	if len(prior) > 0 {
		b.WriteString("\nResults of previous tasks:\n")
		for _, p := range prior {
			fmt.Fprintf(&b, "\n## %s\n%s\n", p.name, p.text)
		}
	}

	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output: %s\n", strings.TrimSpace(task.ExpectedOutput))
	}
	return b.String(), nil
}

type priorOutput struct {
	name string
	text string
}

// priorOutputs lists the outputs a task sees. Context entries that were
// skipped in this run are left out. Without explicit context a task sees
// the output of the task before it.
func priorOutputs(task Task, outputs map[string]string, previous string) []priorOutput {
	if len(task.Context) == 0 {
		if previous == "" {
			return nil
		}
		return []priorOutput{{name: "previous task", text: previous}}
	}

	out := make([]priorOutput, 0, len(task.Context))
	for _, name := range task.Context {
		if text, ok := outputs[name]; ok {
			out = append(out, priorOutput{name: name, text: text})
		}
	}
	return out
}
