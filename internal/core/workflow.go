package core

import "time"

// WorkflowStatus represents the current state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	// WorkflowStatusAccepted and WorkflowStatusRejected are terminal
	// statuses set by the CLI's review/accept/reject actions after a
	// workflow reaches PhaseComplete. Neither alters CurrentPhase.
	WorkflowStatusAccepted WorkflowStatus = "accepted"
	WorkflowStatusRejected WorkflowStatus = "rejected"
)

// Config holds the per-workflow knobs the Orchestrator and Scheduler read.
type Config struct {
	UpdateDocs          bool   `json:"update_docs"`
	MaxParallelAgents   int    `json:"max_parallel_agents"`
	StagingBranchPrefix string `json:"staging_branch_prefix"`
}

// DefaultConfig returns the workflow configuration used when the CLI shell
// supplies none.
func DefaultConfig() Config {
	return Config{
		UpdateDocs:          true,
		MaxParallelAgents:   4,
		StagingBranchPrefix: "zen/staging/",
	}
}

// Validate checks the config's own invariants (independent of any workflow).
func (c Config) Validate() error {
	if c.MaxParallelAgents < 1 {
		return ErrValidation(CodeInvalidConfig, "max_parallel_agents must be >= 1")
	}
	if c.StagingBranchPrefix == "" {
		return ErrValidation(CodeInvalidConfig, "staging_branch_prefix cannot be empty")
	}
	return nil
}

// Workflow is one orchestration run: a single natural-language prompt being
// turned into merged source changes.
type Workflow struct {
	ID     WorkflowID
	Name   string
	Prompt string
	Phase  Phase
	Status WorkflowStatus

	Created   time.Time
	StartedAt *time.Time

	CompletedAt *time.Time

	Config Config

	TaskIDs        []TaskID
	DAGEdges       []DependencyEdge
	StagingBranch  string

	// PhaseHistory records every (phase, timestamp) transition, oldest first.
	PhaseHistory []PhaseTransition

	// Error preserves the originating phase and message when Status == Failed.
	Error string
}

// PhaseTransition is one recorded entry in a workflow's phase history.
type PhaseTransition struct {
	Phase     Phase
	Timestamp time.Time
}

// NewWorkflow creates a new Pending workflow at PhasePlanning.
func NewWorkflow(id WorkflowID, name, prompt string, cfg Config) *Workflow {
	return &Workflow{
		ID:      id,
		Name:    name,
		Prompt:  prompt,
		Phase:   PhasePlanning,
		Status:  WorkflowStatusPending,
		Created: time.Now(),
		Config:  cfg,
		PhaseHistory: []PhaseTransition{
			{Phase: PhasePlanning, Timestamp: time.Now()},
		},
	}
}

// AddTaskID registers a task id in TaskIDs, preserving insertion order.
// Satisfies invariant 1: every TaskId referenced by an edge or an agent must
// appear in exactly one Workflow.TaskIDs.
func (w *Workflow) AddTaskID(id TaskID) error {
	for _, existing := range w.TaskIDs {
		if existing == id {
			return ErrStructural(CodeTaskNotFound, "task id already registered: "+string(id))
		}
	}
	w.TaskIDs = append(w.TaskIDs, id)
	return nil
}

// Start transitions the workflow to Running.
func (w *Workflow) Start() error {
	if w.Status != WorkflowStatusPending && w.Status != WorkflowStatusPaused {
		return ErrState(CodeInvalidState, "cannot start workflow in "+string(w.Status)+" state")
	}
	w.Status = WorkflowStatusRunning
	if w.StartedAt == nil {
		now := time.Now()
		w.StartedAt = &now
	}
	return nil
}

// Pause transitions the workflow to Paused.
func (w *Workflow) Pause() error {
	if w.Status != WorkflowStatusRunning {
		return ErrState(CodeInvalidState, "cannot pause workflow in "+string(w.Status)+" state")
	}
	w.Status = WorkflowStatusPaused
	return nil
}

// Resume transitions the workflow back to Running.
func (w *Workflow) Resume() error {
	if w.Status != WorkflowStatusPaused {
		return ErrState(CodeInvalidState, "cannot resume workflow in "+string(w.Status)+" state")
	}
	w.Status = WorkflowStatusRunning
	return nil
}

// Complete transitions the workflow to Completed at PhaseComplete.
func (w *Workflow) Complete() error {
	if w.Status != WorkflowStatusRunning {
		return ErrState(CodeInvalidState, "cannot complete workflow in "+string(w.Status)+" state")
	}
	w.Status = WorkflowStatusCompleted
	now := time.Now()
	w.CompletedAt = &now
	return nil
}

// Fail transitions the workflow to Failed, preserving the phase at which the
// failure occurred (CurrentPhase is left untouched).
func (w *Workflow) Fail(err error) error {
	w.Status = WorkflowStatusFailed
	if err != nil {
		w.Error = err.Error()
	}
	now := time.Now()
	w.CompletedAt = &now
	return nil
}

// Accept sets the terminal review status to Accepted. Valid only once the
// workflow has reached PhaseComplete.
func (w *Workflow) Accept() error {
	if w.Phase != PhaseComplete || w.Status != WorkflowStatusCompleted {
		return ErrState(CodeInvalidState, "workflow must be complete before it can be accepted")
	}
	w.Status = WorkflowStatusAccepted
	return nil
}

// Reject sets the terminal review status to Rejected. Valid only once the
// workflow has reached PhaseComplete.
func (w *Workflow) Reject() error {
	if w.Phase != PhaseComplete || w.Status != WorkflowStatusCompleted {
		return ErrState(CodeInvalidState, "workflow must be complete before it can be rejected")
	}
	w.Status = WorkflowStatusRejected
	return nil
}

// Duration returns the workflow's execution duration.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if w.CompletedAt != nil {
		end = *w.CompletedAt
	}
	return end.Sub(*w.StartedAt)
}

// IsTerminal reports whether the workflow is in a state the orchestrator no
// longer advances.
func (w *Workflow) IsTerminal() bool {
	switch w.Status {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusAccepted, WorkflowStatusRejected:
		return true
	default:
		return false
	}
}

// AdvancePhase moves to the next phase per the fixed partial order and
// records the transition in PhaseHistory. Documentation is skipped (Merging
// advances directly to Complete) when Config.UpdateDocs is false. Re-entering
// an already-visited phase is rejected: replay is disallowed.
func (w *Workflow) AdvancePhase() error {
	next := NextPhase(w.Phase)
	if w.Phase == PhaseMerging && CanSkipDocumentation(w.Config.UpdateDocs) {
		next = PhaseComplete
	}
	if next == "" {
		return ErrStructural(CodeInvalidTransition, "already at final phase: "+string(w.Phase))
	}
	for _, entry := range w.PhaseHistory {
		if entry.Phase == next {
			return ErrStructural(CodeInvalidTransition, "phase replay disallowed: "+string(next))
		}
	}
	w.Phase = next
	w.PhaseHistory = append(w.PhaseHistory, PhaseTransition{Phase: next, Timestamp: time.Now()})
	return nil
}

// Validate checks workflow invariants.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return ErrValidation("WORKFLOW_ID_REQUIRED", "workflow ID cannot be empty")
	}
	if w.Prompt == "" {
		return ErrValidation(CodeEmptyPrompt, "workflow prompt cannot be empty")
	}
	if len(w.Prompt) > MaxPromptLength {
		return ErrValidation(CodePromptTooLong, "workflow prompt exceeds maximum length")
	}
	if err := w.Config.Validate(); err != nil {
		return err
	}
	return nil
}
