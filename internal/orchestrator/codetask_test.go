package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TheHiddenLayer/zen/internal/core"
)

func writeCodeTask(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestParseCodeTaskFile_FrontmatterAndBody(t *testing.T) {
	dir := t.TempDir()
	path := writeCodeTask(t, dir, "001-add-handler.code-task.md", `---
id: add-handler
description: Add the HTTP handler for /widgets
acceptance_criteria:
  - Returns 200 on a valid request
  - Returns 400 on a malformed body
dependencies:
  - define-schema
---

Use the existing router registration pattern in cmd/server.
`)

	task, err := ParseCodeTaskFile(path)
	if err != nil {
		t.Fatalf("ParseCodeTaskFile: %v", err)
	}
	if task.ID != "add-handler" {
		t.Errorf("ID = %q, want add-handler", task.ID)
	}
	if len(task.AcceptanceCriteria) != 2 {
		t.Errorf("AcceptanceCriteria = %v, want 2 entries", task.AcceptanceCriteria)
	}
	if len(task.Dependencies) != 1 || task.Dependencies[0] != "define-schema" {
		t.Errorf("Dependencies = %v, want [define-schema]", task.Dependencies)
	}
	if task.Body == "" {
		t.Error("Body should not be empty")
	}
}

func TestParseCodeTaskFile_BareYAMLWithoutDelimiters(t *testing.T) {
	dir := t.TempDir()
	path := writeCodeTask(t, dir, "bare.code-task.md", "id: bare-task\ndescription: A task with no frontmatter fence\n")

	task, err := ParseCodeTaskFile(path)
	if err != nil {
		t.Fatalf("ParseCodeTaskFile: %v", err)
	}
	if task.ID != "bare-task" {
		t.Errorf("ID = %q, want bare-task", task.ID)
	}
	if task.Body != "" {
		t.Errorf("Body = %q, want empty", task.Body)
	}
}

func TestParseCodeTaskFile_MissingClosingDelimiter(t *testing.T) {
	dir := t.TempDir()
	path := writeCodeTask(t, dir, "broken.code-task.md", "---\nid: x\ndescription: y\n")

	if _, err := ParseCodeTaskFile(path); err == nil {
		t.Fatal("expected an error for a missing closing frontmatter delimiter")
	}
}

func TestParseCodeTaskFile_RequiresDescription(t *testing.T) {
	dir := t.TempDir()
	path := writeCodeTask(t, dir, "nodesc.code-task.md", "---\nid: x\n---\n")

	if _, err := ParseCodeTaskFile(path); err == nil {
		t.Fatal("expected a validation error for a missing description")
	}
}

func TestDiscoverCodeTasks_SortedByName(t *testing.T) {
	dir := t.TempDir()
	writeCodeTask(t, dir, "002-second.code-task.md", "---\nid: second\ndescription: second task\n---\n")
	writeCodeTask(t, dir, "001-first.code-task.md", "---\nid: first\ndescription: first task\n---\n")
	writeCodeTask(t, dir, "notes.txt", "irrelevant")

	tasks, err := DiscoverCodeTasks(dir)
	if err != nil {
		t.Fatalf("DiscoverCodeTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "first" || tasks[1].ID != "second" {
		t.Errorf("tasks out of order: %s, %s", tasks[0].ID, tasks[1].ID)
	}
}

func codeTask(id, description string, deps ...string) *CodeTask {
	return &CodeTask{ID: id, Description: description, Dependencies: deps}
}

func TestTopologicalCodeTasks_OrdersDependenciesFirst(t *testing.T) {
	tasks := []*CodeTask{
		codeTask("c", "c", "a", "b"),
		codeTask("a", "a"),
		codeTask("b", "b", "a"),
	}

	ordered, err := topologicalCodeTasks(tasks)
	if err != nil {
		t.Fatalf("topologicalCodeTasks: %v", err)
	}

	pos := make(map[string]int, len(ordered))
	for i, t := range ordered {
		pos[t.ID] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("unexpected order: %v", ordered)
	}
}

func TestTopologicalCodeTasks_UnknownDependency(t *testing.T) {
	tasks := []*CodeTask{codeTask("a", "a", "missing")}

	_, err := topologicalCodeTasks(tasks)
	if err == nil {
		t.Fatal("expected an error for an unknown dependency")
	}
	if !core.IsCategory(err, core.ErrCatStructural) {
		t.Errorf("expected a structural error, got %v", err)
	}
}

func TestTopologicalCodeTasks_Cycle(t *testing.T) {
	tasks := []*CodeTask{
		codeTask("a", "a", "b"),
		codeTask("b", "b", "a"),
	}

	_, err := topologicalCodeTasks(tasks)
	if err == nil {
		t.Fatal("expected an error for a dependency cycle")
	}
}

func TestCodeTask_Render_IncludesAcceptanceCriteriaAndBody(t *testing.T) {
	task := &CodeTask{
		ID:                 "x",
		Description:        "Do the thing",
		AcceptanceCriteria: []string{"It works"},
		Body:               "Extra context for the agent.",
	}

	rendered := task.render()
	if rendered == task.Description {
		t.Error("render() should append acceptance criteria and body, not just return the description")
	}
}
