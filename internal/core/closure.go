package core

import "fmt"

// DependencyClosure walks backward from seeds over each task's Dependencies
// and returns the set of seeds plus every transitive prerequisite. Used by
// the cycle check (an edge would close a cycle iff its target is already in
// the closure of its source) and by recovery's Decompose action, which must
// fold a task's entire prerequisite set into its replacement subtasks.
func DependencyClosure(tasks map[TaskID]*Task, seeds []TaskID) (map[TaskID]bool, error) {
	closure := make(map[TaskID]bool, len(tasks))
	stack := append([]TaskID{}, seeds...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if closure[id] {
			continue
		}
		closure[id] = true

		task := tasks[id]
		if task == nil {
			return nil, ErrStructural(CodeTaskNotFound, fmt.Sprintf("task referenced in closure not found: %s", id))
		}
		for _, dep := range task.Dependencies {
			if !closure[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return closure, nil
}

// DescendantClosure walks forward from seeds over edges and returns every
// task transitively depending on a seed. Used by the Abort recovery action
// to propagate Blocked to all descendants of an aborted task.
func DescendantClosure(edges []DependencyEdge, seeds []TaskID) map[TaskID]bool {
	forward := make(map[TaskID][]TaskID, len(edges))
	for _, e := range edges {
		forward[e.From] = append(forward[e.From], e.To)
	}

	closure := make(map[TaskID]bool, len(seeds))
	stack := append([]TaskID{}, seeds...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if closure[id] {
			continue
		}
		closure[id] = true
		stack = append(stack, forward[id]...)
	}
	// Seeds themselves are not "descendants" of themselves for propagation
	// purposes; callers that want strict descendants should delete seeds.
	return closure
}

// WouldCycle reports whether adding an edge from→to (to depends on from)
// would create a cycle: true iff from already depends, transitively, on to.
func WouldCycle(tasks map[TaskID]*Task, from, to TaskID) (bool, error) {
	if from == to {
		return true, nil
	}
	closure, err := DependencyClosure(tasks, []TaskID{from})
	if err != nil {
		return false, err
	}
	return closure[to], nil
}
