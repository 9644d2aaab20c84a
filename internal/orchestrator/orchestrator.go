package orchestrator

import (
	"context"
	"fmt"

	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/aqa"
	"github.com/TheHiddenLayer/zen/internal/conflictresolver"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/healthmonitor"
	"github.com/TheHiddenLayer/zen/internal/scheduler"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
	"github.com/TheHiddenLayer/zen/internal/taskgraph"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
	"github.com/TheHiddenLayer/zen/internal/vcsstore"
	"github.com/TheHiddenLayer/zen/internal/workflowfsm"
)

// Worktrees is the narrow worktree-provisioning surface the orchestrator,
// the scheduler, and the single-agent phases all share.
// *git.TaskWorktreeManager satisfies it (it is core.WorktreeManager's own
// shape, trimmed to the one method every caller here actually uses).
type Worktrees interface {
	Create(ctx context.Context, taskID core.TaskID, branch string) (*core.WorktreeInfo, error)
}

// GitClientFactory opens a core.GitClient rooted at an arbitrary path. The
// same factory scopes a git client to each newly spawned agent's worktree
// (for agentdriver.WithGitClient) and to the Merging phase's staging
// worktree (for conflictresolver.Resolver), rather than the orchestrator
// sharing one client rooted at the repository it was built against.
type GitClientFactory func(path string) (core.GitClient, error)

// Orchestrator drives one workflow end to end (spec §4.12): it is the only
// component that holds a reference to every other component at once.
type Orchestrator struct {
	store      *vcsstore.Store
	pool       *agentpool.Pool
	worktrees  Worktrees
	gitFactory GitClientFactory

	// qaOverride, when set, is used as every run's QuestionAnswerer
	// verbatim. Left nil, Execute builds a fresh *aqa.AQA per run over
	// answerGen, scoped to that run's own conversation context.
	qaOverride skillloop.QuestionAnswerer
	answerGen  aqa.AnswerGenerator

	// qa is the active QuestionAnswerer for the run currently in progress,
	// resolved once at the top of Execute and read by every phase helper.
	qa        skillloop.QuestionAnswerer
	escalator skillloop.Escalator
	publisher core.Publisher
	metrics   *telemetry.Metrics

	config         Config
	workflowConfig core.Config

	// workflow and stagingWorktreePath are set at the start of Execute and
	// read by the phase helpers in phases.go; an Orchestrator is built once
	// and Execute is not safe to call concurrently on the same instance.
	workflow            *core.Workflow
	machine             *workflowfsm.Machine
	stagingWorktreePath string
}

// Execute turns one natural-language prompt into a merged staging branch,
// following spec §4.12's eight steps. Any fatal error aborts the workflow
// into Failed with the phase it failed in preserved in PhaseHistory.
func (o *Orchestrator) Execute(ctx context.Context, name, prompt string) (*WorkflowResult, error) {
	wf := core.NewWorkflow(core.NewWorkflowID(), name, prompt, o.workflowConfig)
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("validating workflow: %w", err)
	}
	if err := wf.Start(); err != nil {
		return nil, fmt.Errorf("starting workflow: %w", err)
	}
	wf.StagingBranch = o.workflowConfig.StagingBranchPrefix + string(wf.ID)

	o.workflow = wf
	o.machine = workflowfsm.New(wf, o.publisher)

	if o.qaOverride != nil {
		o.qa = o.qaOverride
	} else {
		o.qa = aqa.New(ctx, core.NewConversationContext(prompt), o.answerGen)
	}

	stagingWorktree, err := o.worktrees.Create(ctx, core.NewTaskID(), wf.StagingBranch)
	if err != nil {
		return nil, fmt.Errorf("provisioning staging worktree: %w", err)
	}
	o.stagingWorktreePath = stagingWorktree.Path

	if err := o.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("persisting workflow: %w", err)
	}

	result, err := o.run(ctx)
	if err != nil {
		if failErr := o.machine.Fail(err); failErr != nil {
			return nil, fmt.Errorf("%w (also failed to record failure: %v)", err, failErr)
		}
		_ = o.store.SaveWorkflow(ctx, wf)
		return resultFromWorkflow(wf), err
	}
	return result, nil
}

// run implements steps 2 through 8 once the workflow has been created and
// persisted. A non-nil error here always means the workflow must be failed.
func (o *Orchestrator) run(ctx context.Context) (*WorkflowResult, error) {
	wf := o.workflow

	// Step 2: Planning.
	_, planPath, err := o.runPlanning(ctx, wf.Prompt)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	// Step 3: Task Generation.
	if err := o.machine.TransitionTo(core.PhaseTaskGeneration); err != nil {
		return nil, fmt.Errorf("entering task generation: %w", err)
	}
	codeTasks, err := o.runTaskGeneration(ctx, planPath)
	if err != nil {
		return nil, fmt.Errorf("task generation: %w", err)
	}

	// Step 4: convert CodeTasks into the task graph and persist each task.
	graph, err := o.buildGraph(wf, codeTasks)
	if err != nil {
		return nil, fmt.Errorf("building task graph: %w", err)
	}
	for _, id := range wf.TaskIDs {
		task, _ := graph.Task(id)
		if err := o.store.SaveTask(ctx, task); err != nil {
			return nil, fmt.Errorf("persisting task %s: %w", id, err)
		}
	}
	if err := o.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("persisting workflow task ids: %w", err)
	}

	// Step 5: Implementation.
	if err := o.machine.TransitionTo(core.PhaseImplementation); err != nil {
		return nil, fmt.Errorf("entering implementation: %w", err)
	}
	if err := o.runImplementation(ctx, graph); err != nil {
		return nil, fmt.Errorf("implementation: %w", err)
	}

	// Step 6: Merging.
	if err := o.machine.TransitionTo(core.PhaseMerging); err != nil {
		return nil, fmt.Errorf("entering merging: %w", err)
	}
	if err := o.runMerging(ctx, graph); err != nil {
		return nil, fmt.Errorf("merging: %w", err)
	}

	// Step 7: Documentation, skipped when the workflow disables it.
	if wf.Config.UpdateDocs {
		if err := o.machine.TransitionTo(core.PhaseDocumentation); err != nil {
			return nil, fmt.Errorf("entering documentation: %w", err)
		}
		if err := o.runDocumentation(ctx); err != nil {
			return nil, fmt.Errorf("documentation: %w", err)
		}
	}

	// Step 8: Complete.
	if err := o.machine.TransitionTo(core.PhaseComplete); err != nil {
		return nil, fmt.Errorf("completing workflow: %w", err)
	}
	if err := o.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("persisting completed workflow: %w", err)
	}

	return resultFromWorkflow(wf), nil
}

// buildGraph converts the generated code tasks into core.Tasks and
// core.DependencyEdges (spec §4.12 step 4), inserting them in dependency
// order since taskgraph.Graph.AddTask requires every edge's From to already
// be present.
func (o *Orchestrator) buildGraph(wf *core.Workflow, codeTasks []*CodeTask) (*taskgraph.Graph, error) {
	ordered, err := topologicalCodeTasks(codeTasks)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]core.TaskID, len(ordered))
	for _, ct := range ordered {
		ids[ct.ID] = core.NewTaskID()
	}

	graph := taskgraph.New()
	for _, ct := range ordered {
		taskID := ids[ct.ID]
		task := core.NewTask(taskID, wf.ID, ct.ID).WithDescription(ct.render())

		deps := make([]core.TaskID, 0, len(ct.Dependencies))
		edges := make([]core.DependencyEdge, 0, len(ct.Dependencies))
		for _, dep := range ct.Dependencies {
			depID, ok := ids[dep]
			if !ok {
				return nil, core.ErrStructural(core.CodeTaskNotFound, fmt.Sprintf("code task %s depends on unknown task %s", ct.ID, dep))
			}
			deps = append(deps, depID)
			edges = append(edges, core.DependencyEdge{From: depID, To: taskID, Type: core.NewDataDependency()})
		}
		task.WithDependencies(deps...)

		if err := graph.AddTask(task, edges); err != nil {
			return nil, fmt.Errorf("adding task %s to graph: %w", ct.ID, err)
		}
		if err := wf.AddTaskID(taskID); err != nil {
			return nil, fmt.Errorf("registering task %s on workflow: %w", ct.ID, err)
		}
	}
	wf.DAGEdges = graph.Edges()
	return graph, nil
}

// runImplementation hands the graph to the DAG Scheduler, with the Health
// Monitor running concurrently as its RecoveryHandler and out-of-band
// stall source (spec §4.12 step 5, spec §4.9).
func (o *Orchestrator) runImplementation(ctx context.Context, graph *taskgraph.Graph) error {
	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()

	monitor := healthmonitor.New(monitorCtx, healthmonitor.NewPoolAdapter(o.pool), graph, o.publisher, healthmonitor.Config{
		Interval:               o.config.HealthMonitor.Interval,
		StuckThreshold:         o.config.HealthMonitor.StuckThreshold,
		StuckPatterns:          o.config.HealthMonitor.StuckPatterns,
		DecomposeLineThreshold: o.config.HealthMonitor.DecomposeLineThreshold,
	})

	monitorDone := make(chan error, 1)
	go func() { monitorDone <- monitor.Run(monitorCtx) }()

	runner := &taskSkillRunner{
		pool:       o.pool,
		qa:         o.qa,
		escalator:  o.escalator,
		publisher:  o.publisher,
		workflowID: o.workflow.ID,
		config:     o.phaseMonitorConfig(core.SkillCodeAssist),
	}

	sched := &scheduler.Scheduler{
		Graph:      graph,
		Pool:       o.pool,
		Worktrees:  o.worktrees,
		Runner:     runner,
		Recovery:   monitor,
		Publisher:  o.publisher,
		Metrics:    o.metrics,
		WorkflowID: o.workflow.ID,
		Config: scheduler.Config{
			MaxParallel:   o.workflow.Config.MaxParallelAgents,
			SkillName:     core.SkillCodeAssist,
			SessionPrefix: o.config.Scheduler.SessionPrefix,
		},
		Health: monitor.Health(),
	}

	return sched.Run(ctx)
}

// runMerging resolves the workflow's staging branch against every completed
// task's branch (spec §4.12 step 6).
func (o *Orchestrator) runMerging(ctx context.Context, graph *taskgraph.Graph) error {
	git, err := o.gitFactory(o.stagingWorktreePath)
	if err != nil {
		return fmt.Errorf("opening staging git client: %w", err)
	}

	tasks := make([]*core.Task, 0, len(o.workflow.TaskIDs))
	for _, id := range o.workflow.TaskIDs {
		task, ok := graph.Task(id)
		if !ok {
			continue
		}
		tasks = append(tasks, task)
	}

	baseCommit, err := git.HeadCommit(ctx, o.workflow.StagingBranch)
	if err != nil {
		return fmt.Errorf("reading staging branch head: %w", err)
	}

	resolver := conflictresolver.New(git, conflictresolver.NewPoolAdapter(o.pool), o.qa, o.escalator, o.publisher,
		o.workflow.ID, o.workflow.StagingBranch, o.stagingWorktreePath, conflictresolver.Config{
			PollInterval:         o.config.ConflictResolver.PollInterval,
			Timeout:              o.config.ConflictResolver.Timeout,
			MaxResolutionRetries: o.config.ConflictResolver.MaxResolutionRetries,
		})

	if _, err := resolver.Resolve(ctx, baseCommit, tasks); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := o.store.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("persisting merged task %s: %w", t.ID, err)
		}
	}
	return nil
}
