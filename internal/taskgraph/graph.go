package taskgraph

import (
	"fmt"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Graph is a workflow's task set plus the dependency edges between them.
// Not concurrency-safe: callers serialize access the way the scheduler
// already serializes dispatch decisions through a single event loop.
type Graph struct {
	tasks map[core.TaskID]*core.Task
	edges []core.DependencyEdge
	order []core.TaskID // insertion order, for deterministic iteration
}

// New returns an empty task graph.
func New() *Graph {
	return &Graph{tasks: make(map[core.TaskID]*core.Task)}
}

// AddTask inserts task with the given annotated dependency edges. Every
// edge's From must already be in the graph, and no edge may close a cycle;
// on either failure the graph is left exactly as it was before the call.
func (g *Graph) AddTask(task *core.Task, edges []core.DependencyEdge) error {
	if task == nil {
		return core.ErrValidation("TASK_REQUIRED", "task cannot be nil")
	}
	for _, e := range edges {
		if e.To != task.ID {
			return core.ErrValidation("TASK_EDGE_MISMATCH", fmt.Sprintf("edge %s->%s does not target task %s", e.From, e.To, task.ID))
		}
		if _, ok := g.tasks[e.From]; !ok {
			return core.ErrStructural(core.CodeTaskNotFound, fmt.Sprintf("dependency %s not found in graph", e.From))
		}
	}

	deps := make([]core.TaskID, len(edges))
	for i, e := range edges {
		deps[i] = e.From
	}

	_, existed := g.tasks[task.ID]
	prevDeps := task.Dependencies
	task.Dependencies = deps
	g.tasks[task.ID] = task

	for _, dep := range deps {
		would, err := core.WouldCycle(g.tasks, dep, task.ID)
		if err != nil {
			g.rollbackAdd(task, existed, prevDeps)
			return err
		}
		if would {
			g.rollbackAdd(task, existed, prevDeps)
			return core.ErrStructural(core.CodeDAGCycle, fmt.Sprintf("adding dependency %s -> %s would create a cycle", dep, task.ID))
		}
	}

	if !existed {
		g.order = append(g.order, task.ID)
	}
	g.edges = append(g.edges, edges...)
	return nil
}

func (g *Graph) rollbackAdd(task *core.Task, existed bool, prevDeps []core.TaskID) {
	if existed {
		task.Dependencies = prevDeps
		return
	}
	delete(g.tasks, task.ID)
	task.Dependencies = prevDeps
}

// AddSimpleTask is AddTask for the common case of plain data-dependency
// edges, built from bare prerequisite ids.
func (g *Graph) AddSimpleTask(task *core.Task, deps ...core.TaskID) error {
	edges := make([]core.DependencyEdge, len(deps))
	for i, dep := range deps {
		edges[i] = core.DependencyEdge{From: dep, To: task.ID, Type: core.NewDataDependency()}
	}
	return g.AddTask(task, edges)
}

// Task returns the task with id, if present.
func (g *Graph) Task(id core.TaskID) (*core.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// ReadyTasks returns every task whose dependencies are all in completed and
// which is not itself completed or already running, in insertion order.
func (g *Graph) ReadyTasks(completed map[core.TaskID]bool) []*core.Task {
	var ready []*core.Task
	for _, id := range g.order {
		task := g.tasks[id]
		if task.IsReady(completed) {
			ready = append(ready, task)
		}
	}
	return ready
}

// CompleteTask marks the task Completed with commitHash, erroring if id is
// unknown or the task is not Running.
func (g *Graph) CompleteTask(id core.TaskID, commitHash string) error {
	task, ok := g.tasks[id]
	if !ok {
		return core.ErrNotFound("task", string(id))
	}
	return task.MarkCompleted(commitHash)
}

// AllComplete reports whether every task in the graph is present in
// completed.
func (g *Graph) AllComplete(completed map[core.TaskID]bool) bool {
	for _, id := range g.order {
		if !completed[id] {
			return false
		}
	}
	return true
}

// PendingCount returns how many tasks in the graph are not yet in completed.
func (g *Graph) PendingCount(completed map[core.TaskID]bool) int {
	n := 0
	for _, id := range g.order {
		if !completed[id] {
			n++
		}
	}
	return n
}

// TaskCount returns the total number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.order)
}

// Edges returns the graph's dependency edges, for the conflict resolver's
// file-overlap annotations and the workflow FSM's display.
func (g *Graph) Edges() []core.DependencyEdge {
	return append([]core.DependencyEdge{}, g.edges...)
}

// TopologicalOrder returns task ids ordered so every dependency precedes
// its dependents, breaking ties by insertion order. Errors if the graph
// somehow contains a cycle (AddTask's rejection makes this unreachable in
// practice; kept as a defensive check rather than a panic).
func (g *Graph) TopologicalOrder() ([]core.TaskID, error) {
	indegree := make(map[core.TaskID]int, len(g.tasks))
	dependents := make(map[core.TaskID][]core.TaskID, len(g.tasks))
	for _, id := range g.order {
		indegree[id] = len(g.tasks[id].Dependencies)
	}
	for _, id := range g.order {
		for _, dep := range g.tasks[id].Dependencies {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []core.TaskID
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]core.TaskID, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(g.order) {
		return nil, core.ErrStructural(core.CodeDAGCycle, "task graph contains a cycle")
	}
	return result, nil
}

// Decompose replaces a failed task with a chain of replacement subtasks
// (Health Monitor Decompose recovery, spec §4.9): the original task is
// marked Completed as a no-op, each subtask is chained after the previous
// one (the first inheriting the original's dependencies), and every task
// that depended on the original now depends on the last subtask instead.
func (g *Graph) Decompose(originalID core.TaskID, subtasks []*core.Task) error {
	original, ok := g.tasks[originalID]
	if !ok {
		return core.ErrNotFound("task", string(originalID))
	}
	if len(subtasks) == 0 {
		return core.ErrValidation("SUBTASKS_REQUIRED", "decompose requires at least one replacement subtask")
	}

	var outgoing []core.TaskID
	for _, id := range g.order {
		for _, dep := range g.tasks[id].Dependencies {
			if dep == originalID {
				outgoing = append(outgoing, id)
				break
			}
		}
	}

	chainDeps := append([]core.TaskID{}, original.Dependencies...)
	for _, st := range subtasks {
		edges := make([]core.DependencyEdge, len(chainDeps))
		for i, d := range chainDeps {
			edges[i] = core.DependencyEdge{From: d, To: st.ID, Type: core.NewDataDependency()}
		}
		if err := g.AddTask(st, edges); err != nil {
			return err
		}
		chainDeps = []core.TaskID{st.ID}
	}
	last := subtasks[len(subtasks)-1]

	for _, id := range outgoing {
		t := g.tasks[id]
		newDeps := make([]core.TaskID, 0, len(t.Dependencies))
		for _, d := range t.Dependencies {
			if d == originalID {
				newDeps = append(newDeps, last.ID)
			} else {
				newDeps = append(newDeps, d)
			}
		}
		t.Dependencies = newDeps
		for i := range g.edges {
			if g.edges[i].To == id && g.edges[i].From == originalID {
				g.edges[i].From = last.ID
			}
		}
	}

	return original.MarkCompleted("")
}
