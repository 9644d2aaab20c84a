package core

import "github.com/google/uuid"

// WorkflowID uniquely identifies a workflow.
type WorkflowID string

// AgentID uniquely identifies a live agent handle within the pool.
type AgentID string

// NewWorkflowID generates a fresh lowercase-hex UUID workflow id.
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.NewString())
}

// NewTaskID generates a fresh lowercase-hex UUID task id.
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// NewAgentID generates a fresh lowercase-hex UUID agent id.
func NewAgentID() AgentID {
	return AgentID(uuid.NewString())
}
