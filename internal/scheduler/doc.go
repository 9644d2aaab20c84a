// Package scheduler implements the DAG Scheduler (spec §4.8): the single
// cooperative driver loop that dispatches ready tasks up to the pool's
// capacity and max-parallel limit, awaits completions on a shared channel,
// and routes failures to the Health Monitor's recovery policy, until the
// task graph is fully complete or a fatal error occurs.
package scheduler
