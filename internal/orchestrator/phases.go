package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/fsutil"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
)

// planningArtifactDir is where the pdd skill is instructed to write its
// design/plan output, relative to the agent's worktree (spec §6).
const planningArtifactDir = ".sop/planning"

// phaseWorktree provisions a worktree for a single-agent phase that is not
// itself a graph task, using a synthetic task id so the same
// core.WorktreeManager contract every task uses applies here too.
func (o *Orchestrator) phaseWorktree(ctx context.Context, label string) (*core.WorktreeInfo, error) {
	id := core.NewTaskID()
	branch := fmt.Sprintf("zen/%s/%s", label, o.workflow.ID)
	return o.worktrees.Create(ctx, id, branch)
}

// runSingleAgentSkill spawns one agent under skillName, drives it through
// the skill interaction loop with command, and terminates it once the loop
// returns (success or failure alike).
func (o *Orchestrator) runSingleAgentSkill(ctx context.Context, skillName, workDir, command string) (skillloop.Result, error) {
	sessionName := fmt.Sprintf("zen-%s-%s", skillName, o.workflow.ID)
	agentID, err := o.pool.SpawnForSkill(ctx, skillName, sessionName, workDir)
	if err != nil {
		return skillloop.Result{}, fmt.Errorf("spawning %s agent: %w", skillName, err)
	}
	defer func() { _ = o.pool.Terminate(ctx, agentID) }()

	agent, handle, ok := o.pool.Get(agentID)
	if !ok || handle == nil {
		return skillloop.Result{}, core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("spawned %s agent has no handle", skillName))
	}

	loop := &skillloop.Loop{
		Handle:     handle,
		QA:         o.qa,
		Escalator:  o.escalator,
		Agent:      agent,
		Publisher:  o.publisher,
		WorkflowID: o.workflow.ID,
		AgentID:    agentID,
		Config:     o.phaseMonitorConfig(skillName),
	}

	result, err := loop.Run(ctx, command)
	if err != nil {
		return result, fmt.Errorf("%s agent: %w", skillName, err)
	}
	if !result.Success {
		return result, core.ErrExecution(core.CodeAgentFailed, fmt.Sprintf("%s agent did not report completion", skillName))
	}
	return result, nil
}

// runPlanning drives the pdd skill (spec §4.12 step 2) and reads back the
// design/plan artifacts it is instructed to write under .sop/planning/.
func (o *Orchestrator) runPlanning(ctx context.Context, prompt string) (workDir string, planPath string, err error) {
	wt, err := o.phaseWorktree(ctx, "planning")
	if err != nil {
		return "", "", fmt.Errorf("provisioning planning worktree: %w", err)
	}

	command := fmt.Sprintf("/%s\n\nrough_idea: %s\n", core.SkillPDD, prompt)
	if _, err := o.runSingleAgentSkill(ctx, core.SkillPDD, wt.Path, command); err != nil {
		return "", "", err
	}

	planPath = filepath.Join(wt.Path, planningArtifactDir, "plan.md")
	designPath := filepath.Join(wt.Path, planningArtifactDir, "design", "detailed-design.md")

	if _, err := fsutil.ReadFileScoped(planPath); err != nil {
		return "", "", fmt.Errorf("reading plan artifact: %w", err)
	}
	if _, err := fsutil.ReadFileScoped(designPath); err != nil {
		return "", "", fmt.Errorf("reading design artifact: %w", err)
	}

	return wt.Path, planPath, nil
}

// runTaskGeneration drives the code-task-generator skill (spec §4.12 step
// 3) and parses every *.code-task.md file it writes to the worktree root.
func (o *Orchestrator) runTaskGeneration(ctx context.Context, planPath string) ([]*CodeTask, error) {
	wt, err := o.phaseWorktree(ctx, "task-generation")
	if err != nil {
		return nil, fmt.Errorf("provisioning task-generation worktree: %w", err)
	}

	command := fmt.Sprintf("/%s\n\ninput: %s\n", core.SkillCodeTaskGenerator, planPath)
	if _, err := o.runSingleAgentSkill(ctx, core.SkillCodeTaskGenerator, wt.Path, command); err != nil {
		return nil, err
	}

	tasks, err := DiscoverCodeTasks(wt.Path)
	if err != nil {
		return nil, fmt.Errorf("parsing generated code tasks: %w", err)
	}
	return tasks, nil
}

// runDocumentation drives the codebase-summary skill (spec §4.12 step 7)
// against the workflow's staging worktree, committing doc updates directly
// to the staging branch.
func (o *Orchestrator) runDocumentation(ctx context.Context) error {
	command := fmt.Sprintf("/%s\n", core.SkillCodebaseSummary)
	_, err := o.runSingleAgentSkill(ctx, core.SkillCodebaseSummary, o.stagingWorktreePath, command)
	return err
}
