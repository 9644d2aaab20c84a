package orchestrator

import (
	"context"
	"fmt"

	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
)

// taskSkillRunner drives one scheduler-dispatched task through the Skill
// Interaction Loop, the same resolveagent.go shape generalized from the
// resolver's fixed "resolution" prompt to the implementation phase's
// code-assist prompt built from a core.Task's own description.
type taskSkillRunner struct {
	pool      *agentpool.Pool
	qa        skillloop.QuestionAnswerer
	escalator skillloop.Escalator
	publisher core.Publisher
	workflowID core.WorkflowID
	config    MonitorConfig
}

// MonitorConfig bounds a single-agent phase run's polling and patience; an
// alias kept local to orchestrator so callers never need to import
// skillloop directly just to configure a phase.
type MonitorConfig = skillloop.MonitorConfig

// RunTask satisfies scheduler.SkillRunner: it looks up the handle the
// scheduler's own spawn already created (task.AgentID, set by
// task.MarkRunning before dispatch) and drives it to completion.
func (r *taskSkillRunner) RunTask(ctx context.Context, agentID core.AgentID, task *core.Task) (string, error) {
	agent, handle, ok := r.pool.Get(agentID)
	if !ok || handle == nil {
		return "", core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("spawned agent %s for task %s has no handle", agentID, task.ID))
	}

	loop := &skillloop.Loop{
		Handle:     handle,
		QA:         r.qa,
		Escalator:  r.escalator,
		Agent:      agent,
		Publisher:  r.publisher,
		WorkflowID: r.workflowID,
		TaskID:     task.ID,
		AgentID:    agentID,
		Config:     r.config,
	}

	result, err := loop.Run(ctx, buildImplementationPrompt(task))
	task.TokensIn = result.TokensIn
	task.TokensOut = result.TokensOut
	if err != nil {
		return "", fmt.Errorf("implementation agent for task %s: %w", task.ID, err)
	}
	if !result.Success {
		return "", core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("implementation agent for task %s did not report completion", task.ID))
	}

	commit, err := handle.LastCommit(ctx)
	if err != nil {
		return "", fmt.Errorf("reading commit for task %s: %w", task.ID, err)
	}
	if commit == "" {
		return "", core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("implementation agent for task %s produced no commit", task.ID))
	}
	return commit, nil
}

// buildImplementationPrompt renders the initial /code-assist command sent
// to a task's agent, per the fixed invocation form in spec §6.
func buildImplementationPrompt(task *core.Task) string {
	return fmt.Sprintf("/%s\n\ntask_description: %s\nmode: auto\n", core.SkillCodeAssist, task.Description)
}
