// Package healthmonitor implements the Health Monitor (spec §4.9): a
// periodic sweep over every pool-managed agent that flags stalls and
// session loss, and the recovery policy — Restart/Reassign/Decompose/
// Escalate/Abort — that turns a failed or stuck task into a concrete
// mutation of the task graph and agent pool. It satisfies the scheduler's
// RecoveryHandler port directly.
package healthmonitor
