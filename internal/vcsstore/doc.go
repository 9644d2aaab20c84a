// Package vcsstore is the VCS state store: the durable record of every
// workflow, task, and agent handle, written as git notes attached to the
// commit each record describes rather than to a side file that can drift
// from the history it annotates.
//
// Each record type owns a notes namespace (zen/workflows, zen/tasks,
// zen/agents) and a parallel family of named refs (refs/zen/workflows/<id>,
// ...) that point at the commit carrying the current note, so a read never
// has to walk notes history. A sqlite read-index mirrors the ref/note state
// for list/query access; it is a cache, never the source of truth, and
// Reconcile rebuilds it from the notes whenever the two diverge.
package vcsstore
