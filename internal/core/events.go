package core

import "time"

// AgentEventType is the lifecycle event emitted by a pool-managed agent
// handle (see internal/agentpool).
type AgentEventType string

const (
	AgentEventStarted       AgentEventType = "started"
	AgentEventCompleted     AgentEventType = "completed"
	AgentEventFailed        AgentEventType = "failed"
	AgentEventStuckDetected AgentEventType = "stuck_detected"
	AgentEventTerminated    AgentEventType = "terminated"
)

// AgentEvent is emitted onto the pool's outbound event channel. Emission is
// best-effort: per spec §4.5, a full channel drops the oldest event rather
// than blocking the pool.
type AgentEvent struct {
	Type      AgentEventType
	AgentID   AgentID
	TaskID    TaskID
	Timestamp time.Time

	ExitCode int    // AgentEventCompleted
	Error    string // AgentEventFailed
	Duration time.Duration // AgentEventStuckDetected
}

// NewAgentEvent creates an agent event stamped with the current time.
func NewAgentEvent(t AgentEventType, agentID AgentID) AgentEvent {
	return AgentEvent{Type: t, AgentID: agentID, Timestamp: time.Now()}
}

// EventType is the kind of workflow-level event published to observers
// (the event stream described in spec §6).
type EventType string

const (
	EventPhaseChanged       EventType = "phase_changed"
	EventTaskStarted        EventType = "task_started"
	EventTaskCompleted      EventType = "task_completed"
	EventTaskFailed         EventType = "task_failed"
	EventTaskProgress       EventType = "task_progress"
	EventMergeSuccess       EventType = "merge_success"
	EventConflictDetected   EventType = "conflict_detected"
	EventAgentStuck         EventType = "agent_stuck"
	EventAgentFailed        EventType = "agent_failed"
	EventRecoveryTriggered  EventType = "recovery_triggered"
	EventEscalationRequested EventType = "escalation_requested"
	EventAllTasksComplete   EventType = "all_tasks_complete"
	EventWorkflowCompleted  EventType = "workflow_completed"
	EventWorkflowFailed     EventType = "workflow_failed"
)

// Event is one entry in a workflow's ordered event stream. Each carries a
// monotonically increasing sequence number (assigned by the publisher) and
// a wall-clock timestamp; fields irrelevant to Type are left zero.
type Event struct {
	Seq        uint64
	Type       EventType
	Timestamp  time.Time
	WorkflowID WorkflowID

	// Phase transition fields.
	FromPhase Phase
	ToPhase   Phase
	Elapsed   time.Duration

	// Task fields.
	TaskID     TaskID
	AgentID    AgentID
	CommitHash string
	Error      string

	// TaskProgress fields.
	Completed  int
	Total      int
	Percentage float64

	// Merge/conflict fields.
	ConflictFiles []ConflictFile

	// AgentStuck fields.
	StuckDuration time.Duration
	StuckPattern  string

	// Recovery/escalation fields.
	RecoveryAction string
	Question       string
	Message        string
}

// Publisher assigns sequence numbers and timestamps to events and fans them
// out to subscribers. Implementations must be safe for concurrent Publish
// calls; the core never blocks on a slow subscriber. cmd/zen's watch
// subcommand does not subscribe to this stream directly — it polls
// vcsstore instead — but any in-process Publisher (logging, metrics) wires
// in here.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(e Event) { f(e) }
