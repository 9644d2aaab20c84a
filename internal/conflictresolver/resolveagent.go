package conflictresolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
)

// runResolverAgent spawns a dedicated agent in the staging worktree and
// drives it through the Skill Interaction Loop with a prompt listing every
// conflicting file's ours/theirs/base content (spec §4.10 step 3).
func (r *Resolver) runResolverAgent(ctx context.Context, task *core.Task, conflicts []core.ConflictFile) error {
	sessionName := fmt.Sprintf("%s-%s-%s", r.Config.sessionPrefix(), r.WorkflowID, task.ID)
	agentID, err := r.Pool.SpawnForSkill(ctx, r.Config.skillName(), sessionName, r.StagingWorktreePath)
	if err != nil {
		return fmt.Errorf("spawning resolver agent for task %s: %w", task.ID, err)
	}
	defer func() { _ = r.Pool.Terminate(ctx, agentID) }()

	_, handle, ok := r.Pool.Get(agentID)
	if !ok || handle == nil {
		return core.ErrExecution("RESOLVER_AGENT_MISSING", fmt.Sprintf("spawned resolver agent %s has no handle", agentID))
	}

	loop := &skillloop.Loop{
		Handle:     handle,
		QA:         r.QA,
		Escalator:  r.Escalator,
		Publisher:  r.Publisher,
		WorkflowID: r.WorkflowID,
		TaskID:     task.ID,
		AgentID:    agentID,
		Config:     skillloop.MonitorConfig{PollInterval: r.Config.pollInterval(), Timeout: r.Config.timeout()},
	}

	result, err := loop.Run(ctx, buildResolutionPrompt(task, conflicts))
	if err != nil {
		return fmt.Errorf("resolver agent for task %s: %w", task.ID, err)
	}
	if !result.Success {
		return core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("resolver agent for task %s did not report completion", task.ID))
	}
	return nil
}

const resolutionPromptHeader = "A merge of task %s into the staging branch produced conflicts in %d file(s). " +
	"Resolve each conflict by editing the file to the correct combined result and removing all conflict markers, " +
	"then report completion.\n"

// buildResolutionPrompt renders the initial command sent to the resolver
// agent: one section per conflicting path with its base/ours/theirs content.
func buildResolutionPrompt(task *core.Task, conflicts []core.ConflictFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, resolutionPromptHeader, task.ID, len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(&b, "\n--- %s ---\n", c.Path)
		if c.Base != nil {
			fmt.Fprintf(&b, "base:\n%s\n", *c.Base)
		} else {
			b.WriteString("base: (no common ancestor; both sides added this file)\n")
		}
		fmt.Fprintf(&b, "ours:\n%s\n", c.Ours)
		fmt.Fprintf(&b, "theirs:\n%s\n", c.Theirs)
	}
	return b.String()
}
