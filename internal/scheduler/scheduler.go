package scheduler

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
)

var tracer = otel.Tracer("zen/scheduler")

// Graph is the narrow view of the task graph the scheduler drives.
// taskgraph.Graph satisfies it.
type Graph interface {
	Task(id core.TaskID) (*core.Task, bool)
	ReadyTasks(completed map[core.TaskID]bool) []*core.Task
	CompleteTask(id core.TaskID, commitHash string) error
	AllComplete(completed map[core.TaskID]bool) bool
	TaskCount() int
}

// Pool is the narrow view of the agent pool the scheduler drives.
// agentpool.Pool satisfies it.
type Pool interface {
	HasCapacity() bool
	SpawnForTask(ctx context.Context, task *core.Task, skillName, sessionName, workDir string) (core.AgentID, error)
	Terminate(ctx context.Context, id core.AgentID) error
}

// SkillRunner drives one dispatched task's Skill Interaction Loop to
// completion (or failure) and reports the resulting commit hash. Built by
// the orchestrator (C12) from a skillloop.Loop bound to the spawned
// agent's handle.
type SkillRunner interface {
	RunTask(ctx context.Context, agentID core.AgentID, task *core.Task) (commitHash string, err error)
}

// RecoveryHandler consults the Health Monitor for a RecoveryAction and
// applies its pool/graph mutations (spec §4.9's determine_recovery +
// execute_recovery), mutating task in place. Implemented by
// internal/healthmonitor.
type RecoveryHandler interface {
	HandleFailure(ctx context.Context, task *core.Task, agentID core.AgentID, cause error) (core.RecoveryAction, error)
}

// Config bounds the scheduler's dispatch behavior.
type Config struct {
	MaxParallel   int
	SkillName     string // default "code-assist"
	SessionPrefix string // default "zen"
}

func (c Config) skillName() string {
	if c.SkillName == "" {
		return "code-assist"
	}
	return c.SkillName
}

func (c Config) sessionPrefix() string {
	if c.SessionPrefix == "" {
		return "zen"
	}
	return c.SessionPrefix
}

func (c Config) maxParallel() int {
	if c.MaxParallel <= 0 {
		return 1
	}
	return c.MaxParallel
}

// Worktrees provisions a task-scoped worktree before dispatch.
// core.WorktreeManager satisfies it.
type Worktrees interface {
	Create(ctx context.Context, taskID core.TaskID, branch string) (*core.WorktreeInfo, error)
}

// Scheduler is the DAG Scheduler's single cooperative driver.
type Scheduler struct {
	Graph      Graph
	Pool       Pool
	Worktrees  Worktrees
	Runner     SkillRunner
	Recovery   RecoveryHandler
	Publisher  core.Publisher
	Metrics    *telemetry.Metrics
	WorkflowID core.WorkflowID
	Config     Config

	// Health, if set, carries stall/session-loss signals the Health Monitor
	// detected out-of-band from an agent's own completion. Left nil, the
	// run loop simply never selects it.
	Health <-chan HealthSignal
}

type completionMsg struct {
	taskID  core.TaskID
	agentID core.AgentID
	commit  string
	err     error
}

// HealthSignal reports a stall or session loss the Health Monitor detected
// against a task's agent, outside of the agent's own completion (spec
// §4.9). The scheduler treats it exactly like a failed completion message:
// the in-flight slot is freed and the failure is routed through Recovery.
type HealthSignal struct {
	TaskID  core.TaskID
	AgentID core.AgentID
	Reason  string
}

// Run drives every task in Graph to completion, in some valid topological
// order, subject to Pool's capacity and Config.MaxParallel. Returns nil
// once every task is Completed; returns a fatal error on deadlock
// (no ready tasks, none in flight, graph still incomplete) or if ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scheduler.run")
	defer span.End()

	completed := make(map[core.TaskID]bool)
	inFlight := make(map[core.TaskID]core.AgentID)
	results := make(chan completionMsg, s.Config.maxParallel())

	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return err
		}

		s.dispatchReady(ctx, completed, inFlight, results)

		if len(inFlight) == 0 {
			if s.Graph.AllComplete(completed) {
				s.publish(core.Event{Type: core.EventAllTasksComplete, WorkflowID: s.WorkflowID})
				return nil
			}
			err := core.ErrState(core.CodeExecutionStuck, "no ready tasks and no agents in flight but the workflow is not complete")
			span.RecordError(err)
			span.SetStatus(codes.Error, "deadlock")
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-results:
			delete(inFlight, msg.taskID)
			if err := s.handleCompletion(ctx, msg, completed); err != nil {
				span.RecordError(err)
				return err
			}
			s.publishProgress(completed)
		case sig := <-s.Health:
			if _, stillInFlight := inFlight[sig.TaskID]; !stillInFlight {
				continue
			}
			delete(inFlight, sig.TaskID)
			task, ok := s.Graph.Task(sig.TaskID)
			if !ok {
				continue
			}
			s.recordFailure(ctx, task, sig.AgentID, core.ErrExecution(core.CodeExecutionStuck, sig.Reason))
			_ = s.Pool.Terminate(ctx, sig.AgentID)
			s.publishProgress(completed)
		}
	}
}

func (s *Scheduler) dispatchReady(ctx context.Context, completed map[core.TaskID]bool, inFlight map[core.TaskID]core.AgentID, results chan completionMsg) {
	ready := s.Graph.ReadyTasks(completed)
	for i := 0; i < len(ready) && s.Pool.HasCapacity() && len(inFlight) < s.Config.maxParallel(); i++ {
		task := ready[i]

		agentID, workDir, err := s.spawn(ctx, task)
		if err != nil {
			s.recordFailure(ctx, task, "", err)
			continue
		}
		if err := task.MarkRunning(agentID, workDir, task.BranchName); err != nil {
			s.recordFailure(ctx, task, agentID, err)
			continue
		}

		inFlight[task.ID] = agentID
		if s.Metrics != nil {
			s.Metrics.TaskStarted(string(s.WorkflowID))
		}
		s.publish(core.Event{Type: core.EventTaskStarted, WorkflowID: s.WorkflowID, TaskID: task.ID, AgentID: agentID})

		runner, t, agent := s.Runner, task, agentID
		go func() {
			commit, runErr := runner.RunTask(ctx, agent, t)
			results <- completionMsg{taskID: t.ID, agentID: agent, commit: commit, err: runErr}
		}()
	}
}

func (s *Scheduler) spawn(ctx context.Context, task *core.Task) (core.AgentID, string, error) {
	branch := task.BranchName
	if branch == "" {
		branch = fmt.Sprintf("zen/%s", task.ID)
	}
	wt, err := s.Worktrees.Create(ctx, task.ID, branch)
	if err != nil {
		return "", "", err
	}
	sessionName := fmt.Sprintf("%s-%s-%s", s.Config.sessionPrefix(), s.WorkflowID, task.ID)
	agentID, err := s.Pool.SpawnForTask(ctx, task, s.Config.skillName(), sessionName, wt.Path)
	if err != nil {
		return "", "", err
	}
	return agentID, wt.Path, nil
}

func (s *Scheduler) handleCompletion(ctx context.Context, msg completionMsg, completed map[core.TaskID]bool) error {
	task, ok := s.Graph.Task(msg.taskID)
	if !ok {
		return core.ErrNotFound("task", string(msg.taskID))
	}

	if msg.err == nil {
		if err := s.Graph.CompleteTask(msg.taskID, msg.commit); err != nil {
			return err
		}
		completed[msg.taskID] = true
		if s.Metrics != nil {
			s.Metrics.TaskCompleted(string(s.WorkflowID))
		}
		s.publish(core.Event{Type: core.EventTaskCompleted, WorkflowID: s.WorkflowID, TaskID: msg.taskID, AgentID: msg.agentID, CommitHash: msg.commit})
		return s.Pool.Terminate(ctx, msg.agentID)
	}

	s.recordFailure(ctx, task, msg.agentID, msg.err)
	return nil
}

// recordFailure routes a failed dispatch or run through the Health Monitor
// and emits the corresponding events. Errors from the recovery handler
// itself are swallowed into an Escalate-equivalent event rather than
// aborting the whole scheduler run, since a broken advisor must not take
// down dispatch of unrelated tasks.
func (s *Scheduler) recordFailure(ctx context.Context, task *core.Task, agentID core.AgentID, cause error) {
	s.publish(core.Event{Type: core.EventTaskFailed, WorkflowID: s.WorkflowID, TaskID: task.ID, AgentID: agentID, Error: cause.Error()})

	action, err := s.Recovery.HandleFailure(ctx, task, agentID, cause)
	if err != nil {
		task.MarkBlocked(fmt.Sprintf("recovery handler error: %v", err))
		action = core.RecoveryAction{Kind: core.RecoveryEscalate, Message: err.Error()}
	}

	if s.Metrics != nil {
		s.Metrics.TaskFailed(string(s.WorkflowID), string(action.Kind))
	}
	s.publish(core.Event{Type: core.EventRecoveryTriggered, WorkflowID: s.WorkflowID, TaskID: task.ID, AgentID: agentID, RecoveryAction: string(action.Kind)})
}

func (s *Scheduler) publishProgress(completed map[core.TaskID]bool) {
	total := s.Graph.TaskCount()
	done := len(completed)
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	s.publish(core.Event{Type: core.EventTaskProgress, WorkflowID: s.WorkflowID, Completed: done, Total: total, Percentage: pct})
}

func (s *Scheduler) publish(e core.Event) {
	if s.Publisher == nil {
		return
	}
	s.Publisher.Publish(e)
}
