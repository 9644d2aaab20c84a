// Package workflowfsm drives one workflow's phase/status transitions.
//
// core.Workflow already enforces the fixed phase order and records history;
// Machine adds the piece a bare domain type has no business owning — turning
// each validated transition into a PhaseChanged (or WorkflowCompleted /
// WorkflowFailed) event on the workflow's publisher, the way the skill
// interaction loop and the scheduler already do for their own state changes.
package workflowfsm
