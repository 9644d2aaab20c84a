// Package orchestrator drives one workflow from a natural-language prompt to
// a merged staging branch: it is the single place every other component
// (vcsstore, agentpool, taskgraph, scheduler, healthmonitor, conflictresolver,
// workflowfsm) is wired together behind one Execute call.
//
// The eight phases follow the same shape the teacher's RunnerBuilder/Runner
// pair uses for its own Analyze/Plan/Execute sequence, generalized from
// three phases to six plus the accept/reject tail: one fixed-skill agent
// for Planning, TaskGeneration, and (optionally) Documentation, handing off
// to the DAG Scheduler for Implementation and the Conflict Resolver for
// Merging.
package orchestrator
