package core

import (
	"fmt"
	"time"
)

// TaskID uniquely identifies a task within a workflow.
type TaskID string

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusReady     TaskStatus = "ready"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusBlocked   TaskStatus = "blocked"
)

// Task is a single unit of implementation work, generated from the
// task-generation skill's output and dispatched by the scheduler once its
// dependencies are satisfied.
type Task struct {
	ID          TaskID
	WorkflowID  WorkflowID
	Name        string
	Description string
	Status      TaskStatus

	// Execution context, populated once the scheduler dispatches the task.
	WorktreePath string
	BranchName   string
	AgentID      AgentID

	Created     time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	CommitHash string
	ExitCode   *int
	Retries    uint
	MaxRetries uint

	// Token/cost accounting reported by the agent driver after each skill
	// invocation. Logging and progress reporting only — never read by the
	// scheduler or any dispatch decision.
	TokensIn  int
	TokensOut int
	CostUSD   float64

	// Error holds the failure message when Status is Failed.
	Error string
	// BlockedReason holds the escalation message when Status is Blocked.
	BlockedReason string

	Dependencies []TaskID
}

// NewTask creates a new pending task.
func NewTask(id TaskID, workflowID WorkflowID, name string) *Task {
	return &Task{
		ID:         id,
		WorkflowID: workflowID,
		Name:       name,
		Status:     TaskStatusPending,
		Created:    time.Now(),
		MaxRetries: 3,
	}
}

// WithDescription sets the task description.
func (t *Task) WithDescription(desc string) *Task {
	t.Description = desc
	return t
}

// WithDependencies sets the task's prerequisite task ids.
func (t *Task) WithDependencies(deps ...TaskID) *Task {
	t.Dependencies = deps
	return t
}

// WithMaxRetries sets the maximum retry count.
func (t *Task) WithMaxRetries(maxRetries uint) *Task {
	t.MaxRetries = maxRetries
	return t
}

// IsReady reports whether every dependency of t is in completed and t itself
// has not already been completed.
func (t *Task) IsReady(completed map[TaskID]bool) bool {
	if t.Status == TaskStatusCompleted || completed[t.ID] {
		return false
	}
	if t.Status != TaskStatusPending && t.Status != TaskStatusReady {
		return false
	}
	for _, dep := range t.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// MarkRunning transitions the task to Running and records the dispatching
// agent and worktree.
func (t *Task) MarkRunning(agentID AgentID, worktreePath, branchName string) error {
	if t.Status != TaskStatusPending && t.Status != TaskStatusReady {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot start task in %s state", t.Status))
	}
	t.Status = TaskStatusRunning
	t.AgentID = agentID
	t.WorktreePath = worktreePath
	t.BranchName = branchName
	now := time.Now()
	t.StartedAt = &now
	return nil
}

// MarkCompleted transitions the task to Completed with the resulting commit.
func (t *Task) MarkCompleted(commitHash string) error {
	if t.Status != TaskStatusRunning {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot complete task in %s state", t.Status))
	}
	t.Status = TaskStatusCompleted
	t.CommitHash = commitHash
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkFailed transitions the task to Failed.
func (t *Task) MarkFailed(err error) error {
	if t.Status != TaskStatusRunning {
		return ErrState(CodeInvalidState, fmt.Sprintf("cannot fail task in %s state", t.Status))
	}
	t.Status = TaskStatusFailed
	if err != nil {
		t.Error = err.Error()
	}
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

// MarkBlocked transitions the task to Blocked, used by escalate/abort
// recovery actions. A no-op if the task has already reached a terminal
// state.
func (t *Task) MarkBlocked(reason string) {
	if t.IsTerminal() {
		return
	}
	t.Status = TaskStatusBlocked
	t.BlockedReason = reason
	now := time.Now()
	t.CompletedAt = &now
}

// Requeue resets a failed task to Pending for a restart recovery action,
// incrementing Retries. AgentID and execution context are cleared; the
// scheduler assigns a fresh agent on the next dispatch.
func (t *Task) Requeue() {
	t.Retries++
	t.Status = TaskStatusPending
	t.Error = ""
	t.StartedAt = nil
	t.CompletedAt = nil
	t.AgentID = ""
	t.WorktreePath = ""
	t.BranchName = ""
}

// CanRetry reports whether a restart recovery action may still be applied.
func (t *Task) CanRetry(maxRetries uint) bool {
	return t.Retries < maxRetries
}

// Validate checks task invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return ErrValidation("TASK_ID_REQUIRED", "task ID cannot be empty")
	}
	if t.Name == "" {
		return ErrValidation("TASK_NAME_REQUIRED", "task name cannot be empty")
	}
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return ErrStructural(CodeDAGCycle, fmt.Sprintf("task %s depends on itself", t.ID))
		}
	}
	return nil
}

// Duration returns the task's execution duration so far.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}

// IsTerminal reports whether the task has reached a state the scheduler no
// longer acts on directly (Completed/Failed/Blocked).
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed || t.Status == TaskStatusBlocked
}

// IsSuccess reports whether the task completed successfully.
func (t *Task) IsSuccess() bool {
	return t.Status == TaskStatusCompleted
}
