package core

// RecoveryActionKind enumerates the Health Monitor's possible responses to
// a failed task (spec §4.9).
type RecoveryActionKind string

const (
	RecoveryRestart   RecoveryActionKind = "restart"
	RecoveryReassign  RecoveryActionKind = "reassign"
	RecoveryDecompose RecoveryActionKind = "decompose"
	RecoveryEscalate  RecoveryActionKind = "escalate"
	RecoveryAbort     RecoveryActionKind = "abort"
)

// RecoveryAction is the Health Monitor's verdict for a failed or stuck task,
// consumed by the scheduler's execute_recovery step. Only the field(s)
// relevant to Kind are populated.
type RecoveryAction struct {
	Kind RecoveryActionKind

	// ReassignTo names the replacement agent for RecoveryReassign.
	ReassignTo AgentID

	// Subtasks holds the replacement work for RecoveryDecompose; the
	// original task is marked Completed as a no-op and these are inserted
	// with the original task's outgoing edges redirected to the last one.
	Subtasks []*Task

	// Message holds the operator-facing reason for RecoveryEscalate.
	Message string
}
