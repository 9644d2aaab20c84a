// Package taskgraph implements the Task Graph (spec §4.7): the DAG of a
// workflow's tasks and their dependency edges. It rejects additions that
// would create a cycle, computes the ready set as dependencies complete,
// and exposes a deterministic topological order for display and for the
// scheduler's dispatch-order tie-breaking.
package taskgraph
