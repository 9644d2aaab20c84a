package core

import "time"

// AgentStatus is the lifecycle state of a pool-managed agent handle.
type AgentStatus string

const (
	AgentStatusIdle       AgentStatus = "idle"
	AgentStatusRunning    AgentStatus = "running"
	AgentStatusStuck      AgentStatus = "stuck"
	AgentStatusFailed     AgentStatus = "failed"
	AgentStatusTerminated AgentStatus = "terminated"
)

// Agent is the pool's view of one live external-assistant process: the
// multiplexer session driving it, the worktree it operates in, and the
// bookkeeping the Health Monitor reads to detect stalls. Lifetime is bounded
// by a single task (or, for single-agent phases, a single skill invocation).
type Agent struct {
	ID          AgentID
	Status      AgentStatus
	TaskID      TaskID // set when Status == Running
	SessionName string
	WorktreePath string
	StartedAt   time.Time
	LastActivity time.Time

	// StuckSince/StuckReason are populated when Status == Stuck.
	StuckSince  time.Time
	StuckReason string

	// FailedError is populated when Status == Failed.
	FailedError string
}

// NewAgent creates a fresh Idle agent bound to a session and worktree.
func NewAgent(id AgentID, sessionName, worktreePath string) *Agent {
	now := time.Now()
	return &Agent{
		ID:           id,
		Status:       AgentStatusIdle,
		SessionName:  sessionName,
		WorktreePath: worktreePath,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Touch updates LastActivity to now. Safe to call racily from the
// interaction loop; only ever read, never compared-and-swapped, by the
// Health Monitor.
func (a *Agent) Touch() {
	a.LastActivity = time.Now()
}

// MarkRunning associates the agent with a task.
func (a *Agent) MarkRunning(taskID TaskID) {
	a.Status = AgentStatusRunning
	a.TaskID = taskID
	a.Touch()
}

// MarkStuck records a stall detected by the Health Monitor.
func (a *Agent) MarkStuck(reason string) {
	a.Status = AgentStatusStuck
	a.StuckReason = reason
	a.StuckSince = time.Now()
}

// MarkFailed records a terminal failure.
func (a *Agent) MarkFailed(errMsg string) {
	a.Status = AgentStatusFailed
	a.FailedError = errMsg
}

// MarkTerminated records that the pool has torn down this agent's session.
func (a *Agent) MarkTerminated() {
	a.Status = AgentStatusTerminated
}

// IsTerminal reports whether the agent has reached a state the pool no
// longer routes input/output through.
func (a *Agent) IsTerminal() bool {
	return a.Status == AgentStatusFailed || a.Status == AgentStatusTerminated
}

// IdleDuration returns how long the agent has gone without observed
// activity, as of now.
func (a *Agent) IdleDuration() time.Duration {
	return time.Since(a.LastActivity)
}
