package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/fsutil"
)

// codeTaskExt is the extension the task-generation skill is instructed to
// write its output under (spec §4.12 step 3).
const codeTaskExt = ".code-task.md"

// CodeTask is one unit of work the task-generation agent decided the
// implementation phase should carry out, as written to a *.code-task.md
// file: a YAML frontmatter block of structured fields followed by a free
// text body the agent may use to elaborate on the description.
type CodeTask struct {
	ID                 string   `yaml:"id"`
	Description        string   `yaml:"description"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
	Dependencies       []string `yaml:"dependencies"`

	// Body holds any prose following the frontmatter block, appended to
	// Description when the task is rendered for a spawned agent.
	Body string `yaml:"-"`
}

// Validate checks the fields a CodeTask needs to become a core.Task.
func (t *CodeTask) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return core.ErrValidation("CODE_TASK_ID_REQUIRED", "code task is missing an id")
	}
	if strings.TrimSpace(t.Description) == "" {
		return core.ErrValidation("CODE_TASK_DESCRIPTION_REQUIRED", fmt.Sprintf("code task %s has no description", t.ID))
	}
	return nil
}

// render combines the structured description, acceptance criteria, and
// free-form body into the text handed to core.Task.WithDescription.
func (t *CodeTask) render() string {
	var b strings.Builder
	b.WriteString(t.Description)
	if len(t.AcceptanceCriteria) > 0 {
		b.WriteString("\n\nAcceptance criteria:\n")
		for _, c := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if strings.TrimSpace(t.Body) != "" {
		b.WriteString("\n")
		b.WriteString(t.Body)
	}
	return b.String()
}

// ParseCodeTaskFile reads and parses a single *.code-task.md file: a
// "---"-delimited YAML frontmatter block followed by an optional body.
func ParseCodeTaskFile(path string) (*CodeTask, error) {
	raw, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading code task %s: %w", path, err)
	}

	front, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing code task %s: %w", path, err)
	}

	var task CodeTask
	if err := yaml.Unmarshal([]byte(front), &task); err != nil {
		return nil, fmt.Errorf("decoding code task %s: %w", path, err)
	}
	task.Body = body

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return &task, nil
}

// splitFrontmatter separates a "---\n<yaml>\n---\n<body>" document into its
// two halves. A document with no frontmatter delimiters is treated as a
// bare YAML document with an empty body, so a hand-written file missing the
// trailing "---" still parses.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	trimmed := strings.TrimPrefix(content, "﻿")
	if !strings.HasPrefix(strings.TrimLeft(trimmed, "\r\n"), "---") {
		return trimmed, "", nil
	}
	trimmed = strings.TrimLeft(trimmed, "\r\n")
	rest := strings.TrimPrefix(trimmed, "---")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("missing closing frontmatter delimiter")
	}
	frontmatter = rest[:idx]
	after := rest[idx+len("\n---"):]
	body = strings.TrimLeft(after, "\r\n")
	return frontmatter, body, nil
}

// DiscoverCodeTasks finds and parses every *.code-task.md file directly
// under dir, sorted by file name for a deterministic load order.
func DiscoverCodeTasks(dir string) ([]*CodeTask, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing code task directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), codeTaskExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	tasks := make([]*CodeTask, 0, len(names))
	for _, name := range names {
		task, err := ParseCodeTaskFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// topologicalCodeTasks orders tasks so every dependency precedes its
// dependent, the order taskgraph.Graph.AddTask requires (an edge's From
// must already be present). Errors on an unknown dependency id or a cycle.
func topologicalCodeTasks(tasks []*CodeTask) ([]*CodeTask, error) {
	byID := make(map[string]*CodeTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, core.ErrStructural(core.CodeTaskNotFound,
					fmt.Sprintf("code task %s depends on unknown task %s", t.ID, dep))
			}
		}
	}

	visited := make(map[string]int, len(tasks)) // 0=unseen 1=visiting 2=done
	ordered := make([]*CodeTask, 0, len(tasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch visited[id] {
		case 2:
			return nil
		case 1:
			return core.ErrStructural(core.CodeDAGCycle, fmt.Sprintf("code task %s is part of a dependency cycle", id))
		}
		visited[id] = 1
		t := byID[id]
		for _, dep := range t.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[id] = 2
		ordered = append(ordered, t)
		return nil
	}

	for _, t := range tasks {
		if err := visit(t.ID); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
