package taskgraph_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/taskgraph"
	"github.com/TheHiddenLayer/zen/internal/testutil"
)

func newTask(name string) *core.Task {
	return core.NewTask(core.NewTaskID(), core.NewWorkflowID(), name)
}

func TestGraph_AddTask_RejectsUnknownDependency(t *testing.T) {
	g := taskgraph.New()
	task := newTask("child")
	err := g.AddSimpleTask(task, core.TaskID("missing"))
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatStructural), "expected structural-category error")
}

func TestGraph_AddTask_RejectsCycle(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	testutil.AssertNoError(t, g.AddSimpleTask(a))

	b := newTask("b")
	testutil.AssertNoError(t, g.AddSimpleTask(b, a.ID))

	// Re-adding a with a dependency on b would close a cycle: a -> b -> a.
	err := g.AddSimpleTask(a, b.ID)
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatStructural), "expected structural-category error")

	// The graph must be left untouched: a's dependencies are unchanged.
	got, ok := g.Task(a.ID)
	testutil.AssertTrue(t, ok, "expected a to still be present")
	testutil.AssertLen(t, got.Dependencies, 0)
}

func TestGraph_AddTask_SelfDependencyRejected(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	err := g.AddSimpleTask(a, a.ID)
	testutil.AssertError(t, err)
}

func TestGraph_ReadyTasks_OnlyUnblockedTasks(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	b := newTask("b")
	c := newTask("c")
	testutil.AssertNoError(t, g.AddSimpleTask(a))
	testutil.AssertNoError(t, g.AddSimpleTask(b, a.ID))
	testutil.AssertNoError(t, g.AddSimpleTask(c, a.ID, b.ID))

	ready := g.ReadyTasks(map[core.TaskID]bool{})
	testutil.AssertLen(t, ready, 1)
	testutil.AssertEqual(t, ready[0].ID, a.ID)

	ready = g.ReadyTasks(map[core.TaskID]bool{a.ID: true})
	testutil.AssertLen(t, ready, 1)
	testutil.AssertEqual(t, ready[0].ID, b.ID)

	ready = g.ReadyTasks(map[core.TaskID]bool{a.ID: true, b.ID: true})
	testutil.AssertLen(t, ready, 1)
	testutil.AssertEqual(t, ready[0].ID, c.ID)
}

func TestGraph_CompleteTask_UnknownID(t *testing.T) {
	g := taskgraph.New()
	err := g.CompleteTask(core.TaskID("nope"), "abc123")
	testutil.AssertError(t, err)
}

func TestGraph_CompleteTask_RequiresRunning(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	testutil.AssertNoError(t, g.AddSimpleTask(a))

	// a is still Pending, never dispatched, so completion must fail.
	err := g.CompleteTask(a.ID, "abc123")
	testutil.AssertError(t, err)

	testutil.AssertNoError(t, a.MarkRunning(core.NewAgentID(), "/tmp/w", "zen/a"))
	testutil.AssertNoError(t, g.CompleteTask(a.ID, "abc123"))
	testutil.AssertEqual(t, a.Status, core.TaskStatusCompleted)
}

func TestGraph_AllComplete_And_PendingCount(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	b := newTask("b")
	testutil.AssertNoError(t, g.AddSimpleTask(a))
	testutil.AssertNoError(t, g.AddSimpleTask(b, a.ID))

	testutil.AssertEqual(t, g.TaskCount(), 2)
	testutil.AssertEqual(t, g.PendingCount(map[core.TaskID]bool{}), 2)
	testutil.AssertFalse(t, g.AllComplete(map[core.TaskID]bool{}), "expected not all complete")

	completed := map[core.TaskID]bool{a.ID: true, b.ID: true}
	testutil.AssertEqual(t, g.PendingCount(completed), 0)
	testutil.AssertTrue(t, g.AllComplete(completed), "expected all complete")
}

func TestGraph_TopologicalOrder_RespectsDependencies(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	b := newTask("b")
	c := newTask("c")
	testutil.AssertNoError(t, g.AddSimpleTask(a))
	testutil.AssertNoError(t, g.AddSimpleTask(b, a.ID))
	testutil.AssertNoError(t, g.AddSimpleTask(c, b.ID))

	order, err := g.TopologicalOrder()
	testutil.AssertNoError(t, err)
	testutil.AssertLen(t, order, 3)

	pos := map[core.TaskID]int{}
	for i, id := range order {
		pos[id] = i
	}
	testutil.AssertTrue(t, pos[a.ID] < pos[b.ID], "expected a before b")
	testutil.AssertTrue(t, pos[b.ID] < pos[c.ID], "expected b before c")
}

func TestGraph_Decompose_ChainsSubtasksAndRedirectsDependents(t *testing.T) {
	g := taskgraph.New()
	a := newTask("a")
	testutil.AssertNoError(t, g.AddSimpleTask(a))
	testutil.AssertNoError(t, a.MarkRunning(core.NewAgentID(), "/tmp/a", "branch-a"))
	b := newTask("b")
	testutil.AssertNoError(t, g.AddSimpleTask(b, a.ID))

	sub1 := newTask("a.1")
	sub2 := newTask("a.2")
	testutil.AssertNoError(t, g.Decompose(a.ID, []*core.Task{sub1, sub2}))

	testutil.AssertEqual(t, a.Status, core.TaskStatusCompleted)

	gotSub1, ok := g.Task(sub1.ID)
	testutil.AssertTrue(t, ok, "expected sub1 in the graph")
	testutil.AssertLen(t, gotSub1.Dependencies, 0)

	gotSub2, ok := g.Task(sub2.ID)
	testutil.AssertTrue(t, ok, "expected sub2 in the graph")
	testutil.AssertEqual(t, gotSub2.Dependencies[0], sub1.ID)

	gotB, ok := g.Task(b.ID)
	testutil.AssertTrue(t, ok, "expected b in the graph")
	testutil.AssertEqual(t, gotB.Dependencies[0], sub2.ID)

	for _, e := range g.Edges() {
		if e.To == b.ID {
			testutil.AssertEqual(t, e.From, sub2.ID)
		}
	}
}

func TestGraph_Decompose_RejectsUnknownTask(t *testing.T) {
	g := taskgraph.New()
	err := g.Decompose(core.TaskID("missing"), []*core.Task{newTask("x")})
	testutil.AssertError(t, err)
}

// TestGraph_ReadyTasks_NeverReturnsTaskWithIncompleteDependency is a
// property test over random chain-shaped graphs: whatever subset of tasks
// is marked completed, ReadyTasks must never surface a task with an
// unsatisfied dependency.
func TestGraph_ReadyTasks_NeverReturnsTaskWithIncompleteDependency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("ready tasks always have every dependency completed", prop.ForAll(
		func(n int, completeMask uint32) bool {
			g := taskgraph.New()
			tasks := make([]*core.Task, n)
			for i := 0; i < n; i++ {
				task := newTask("t")
				var deps []core.TaskID
				if i > 0 {
					deps = append(deps, tasks[i-1].ID)
				}
				if err := g.AddSimpleTask(task, deps...); err != nil {
					return false
				}
				tasks[i] = task
			}

			completed := map[core.TaskID]bool{}
			for i, task := range tasks {
				if completeMask&(1<<uint(i)) != 0 {
					completed[task.ID] = true
				}
			}

			for _, task := range g.ReadyTasks(completed) {
				for _, dep := range task.Dependencies {
					if !completed[dep] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 16),
		gen.UInt32Range(0, 1<<16),
	))

	properties.TestingRun(t)
}
