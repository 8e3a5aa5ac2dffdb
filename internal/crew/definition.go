package crew

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed config/agents.yaml config/tasks.yaml
var configFS embed.FS

// OutputKind marks a task whose output becomes part of the response.
type OutputKind string

const (
	OutputNone OutputKind = ""
	OutputHTML OutputKind = "html"
	OutputMeta OutputKind = "meta"
)

type Agent struct {
	Name      string `yaml:"-"`
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// SystemPrompt frames the agent for the model.
func (a Agent) SystemPrompt() string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s",
		strings.TrimSpace(a.Role), strings.TrimSpace(a.Backstory), strings.TrimSpace(a.Goal))
}

type Task struct {
	Name           string     `yaml:"name"`
	Agent          string     `yaml:"agent"`
	Stage          string     `yaml:"stage"`
	Description    string     `yaml:"description"`
	ExpectedOutput string     `yaml:"expected_output"`
	Context        []string   `yaml:"context"`
	Output         OutputKind `yaml:"output"`
	OutputKey      string     `yaml:"output_key"`
	Optional       bool       `yaml:"optional"`

	tmpl *template.Template
}

// StageName is the explicit stage, or the one mapped for the task's agent.
func (t Task) StageName() string {
	if t.Stage != "" {
		return t.Stage
	}
	return StageFor(t.Agent, t.Name)
}

// Definition is a validated set of agents and the ordered task list.
type Definition struct {
	Agents map[string]Agent
	Tasks  []Task
}

// LoadDefinition parses the embedded agent and task configuration.
func LoadDefinition() (*Definition, error) {
	agents, err := configFS.ReadFile("config/agents.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read agents config: %w", err)
	}
	tasks, err := configFS.ReadFile("config/tasks.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks config: %w", err)
	}
	return ParseDefinition(agents, tasks)
}

func ParseDefinition(agentsYAML, tasksYAML []byte) (*Definition, error) {
	def := &Definition{}
	if err := yaml.Unmarshal(agentsYAML, &def.Agents); err != nil {
		return nil, fmt.Errorf("failed to parse agents: %w", err)
	}
	if err := yaml.Unmarshal(tasksYAML, &def.Tasks); err != nil {
		return nil, fmt.Errorf("failed to parse tasks: %w", err)
	}
	for name, agent := range def.Agents {
		agent.Name = name
		def.Agents[name] = agent
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (d *Definition) validate() error {
	if len(d.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}

	for name, agent := range d.Agents {
		if strings.TrimSpace(agent.Role) == "" || strings.TrimSpace(agent.Goal) == "" {
			return fmt.Errorf("agent %q: role and goal are required", name)
		}
	}

	seen := make(map[string]bool, len(d.Tasks))
	var htmlTasks, metaTasks int
	for i := range d.Tasks {
		task := &d.Tasks[i]
		if task.Name == "" {
			return fmt.Errorf("task %d: name is required", i)
		}
		if seen[task.Name] {
			return fmt.Errorf("task %q: duplicate name", task.Name)
		}
		if _, ok := d.Agents[task.Agent]; !ok {
			return fmt.Errorf("task %q: unknown agent %q", task.Name, task.Agent)
		}
		for _, dep := range task.Context {
			if !seen[dep] {
				return fmt.Errorf("task %q: context %q is not an earlier task", task.Name, dep)
			}
		}

		switch task.Output {
		case OutputNone:
		case OutputHTML:
			htmlTasks++
		case OutputMeta:
			metaTasks++
		default:
			return fmt.Errorf("task %q: unknown output kind %q", task.Name, task.Output)
		}
		if task.Optional && task.Output != OutputNone {
			return fmt.Errorf("task %q: optional tasks cannot produce %s output", task.Name, task.Output)
		}

		tmpl, err := template.New(task.Name).Option("missingkey=error").Parse(task.Description)
		if err != nil {
			return fmt.Errorf("task %q: invalid description template: %w", task.Name, err)
		}
		task.tmpl = tmpl
		seen[task.Name] = true
	}

	if htmlTasks == 0 {
		return fmt.Errorf("no task produces html output")
	}
	if metaTasks != 1 {
		return fmt.Errorf("exactly one task must produce meta output, found %d", metaTasks)
	}
	return nil
}

// ActiveTasks returns the tasks to run, skipping optional ones unless extended.
func (d *Definition) ActiveTasks(extended bool) []Task {
	tasks := make([]Task, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.Optional && !extended {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}
