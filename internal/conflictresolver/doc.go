// Package conflictresolver implements the Conflict Resolver (C10, spec
// §4.10): it merges each completed task's branch into a workflow's staging
// branch in dispatch-completion order, driving a dedicated resolver agent
// through the Skill Interaction Loop whenever git's own three-way merge
// leaves conflict markers, and verifying the resolution before committing.
// A three-consecutive-merge-failure circuit breaker (spec §7) aborts the
// remainder of the merging phase without attempting further merges.
package conflictresolver
