package healthmonitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/scheduler"
)

// healthBuffer bounds the Monitor's outbound health-signal channel. A full
// channel drops the new signal rather than blocking the sweep — the same
// detection fires again on the next tick.
const healthBuffer = 64

// AgentHandle is the slice of agentdriver.Handle's surface the monitor
// needs. Kept narrow (rather than the concrete *agentdriver.Handle type) so
// a fake can stand in for tests without driving a real tmux session.
type AgentHandle interface {
	Alive(ctx context.Context) (bool, error)
	ReadPlain(ctx context.Context) (string, error)
}

// Pool is the subset of agentpool.Pool the monitor sweeps. See
// NewPoolAdapter to satisfy this from a real *agentpool.Pool.
type Pool interface {
	ActiveIDs() []core.AgentID
	Get(id core.AgentID) (*core.Agent, AgentHandle, bool)
	MarkStuck(id core.AgentID, reason string, since time.Duration)
	MarkFailed(id core.AgentID, errMsg string)
}

// Graph is the subset of taskgraph.Graph the recovery ladder mutates.
type Graph interface {
	Task(id core.TaskID) (*core.Task, bool)
	Edges() []core.DependencyEdge
	Decompose(originalID core.TaskID, subtasks []*core.Task) error
}

// Config tunes the sweep interval and stall thresholds (spec §4.9).
type Config struct {
	Interval               time.Duration
	StuckThreshold         time.Duration
	StuckPatterns          []string
	DecomposeLineThreshold int
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return 5 * time.Second
	}
	return c.Interval
}

func (c Config) stuckThreshold() time.Duration {
	if c.StuckThreshold <= 0 {
		return 5 * time.Minute
	}
	return c.StuckThreshold
}

func (c Config) stuckPatterns() []string {
	if len(c.StuckPatterns) == 0 {
		return defaultStuckPatterns
	}
	return c.StuckPatterns
}

func (c Config) decomposeLineThreshold() int {
	if c.DecomposeLineThreshold <= 0 {
		return 30
	}
	return c.DecomposeLineThreshold
}

// Monitor periodically inspects every pool-managed agent for stalls and
// session loss, and serves as the scheduler's RecoveryHandler by turning a
// failure into a concrete Restart/Reassign/Decompose/Escalate/Abort
// mutation of the task graph.
type Monitor struct {
	Pool       Pool
	Graph      Graph
	Publisher  core.Publisher
	Advisor    Advisor
	Escalator  Escalator
	Decomposer func(task *core.Task) []*core.Task
	Config     Config

	policy *policyEngine
	health chan scheduler.HealthSignal
}

// New builds a Monitor. Failure to compile the embedded recovery policy is
// not fatal: the monitor falls back to the literal stuck-pattern list.
func New(ctx context.Context, pool Pool, graph Graph, publisher core.Publisher, cfg Config) *Monitor {
	m := &Monitor{
		Pool:      pool,
		Graph:     graph,
		Publisher: publisher,
		Config:    cfg,
		health:    make(chan scheduler.HealthSignal, healthBuffer),
	}
	if p, err := loadPolicy(ctx); err == nil {
		m.policy = p
	}
	return m
}

// Health returns the channel of stall/session-loss signals for the
// scheduler to select on alongside its own completion channel.
func (m *Monitor) Health() <-chan scheduler.HealthSignal {
	return m.health
}

// Run drives the periodic sweep until ctx is cancelled, mirroring the
// ticker-based zombieDetectorLoop/heartbeatLoop idiom.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Config.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	if m.Pool == nil {
		return
	}
	for _, id := range m.Pool.ActiveIDs() {
		agent, handle, ok := m.Pool.Get(id)
		if !ok || handle == nil || agent.IsTerminal() {
			continue
		}
		m.inspect(ctx, agent, handle)
	}
}

func (m *Monitor) inspect(ctx context.Context, agent *core.Agent, handle AgentHandle) {
	if alive, err := handle.Alive(ctx); err == nil && !alive {
		m.flagFailed(agent, "session no longer exists")
		return
	}

	if idle := agent.IdleDuration(); idle > m.Config.stuckThreshold() {
		m.flagStuck(agent, fmt.Sprintf("no activity for %s", idle))
		return
	}

	text, err := handle.ReadPlain(ctx)
	if err != nil {
		return
	}
	if pattern, found := m.matchStuckPattern(ctx, text); found {
		m.flagStuck(agent, fmt.Sprintf("output matches stuck pattern %q", pattern))
	}
}

func (m *Monitor) matchStuckPattern(ctx context.Context, text string) (string, bool) {
	if m.policy != nil {
		if transient, ok := m.policy.isTransient(ctx, text); ok {
			if transient {
				return "policy", true
			}
			return "", false
		}
	}
	lower := strings.ToLower(text)
	for _, p := range m.Config.stuckPatterns() {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

func (m *Monitor) flagStuck(agent *core.Agent, reason string) {
	m.Pool.MarkStuck(agent.ID, reason, agent.IdleDuration())
	m.publish(core.Event{Type: core.EventAgentStuck, AgentID: agent.ID, TaskID: agent.TaskID, StuckDuration: agent.IdleDuration(), StuckPattern: reason})
	m.signalFailure(agent, reason)
}

func (m *Monitor) flagFailed(agent *core.Agent, reason string) {
	m.Pool.MarkFailed(agent.ID, reason)
	m.publish(core.Event{Type: core.EventAgentFailed, AgentID: agent.ID, TaskID: agent.TaskID, Error: reason})
	m.signalFailure(agent, reason)
}

// signalFailure forwards a detected stall/failure to the scheduler's health
// channel. Agents not currently bound to a task (single-agent phase
// invocations) have nothing for the scheduler to act on.
func (m *Monitor) signalFailure(agent *core.Agent, reason string) {
	if agent.TaskID == "" {
		return
	}
	select {
	case m.health <- scheduler.HealthSignal{TaskID: agent.TaskID, AgentID: agent.ID, Reason: reason}:
	default:
	}
}

// HandleFailure implements scheduler.RecoveryHandler: it decides a recovery
// action for task's failure and applies it to task/Graph/Escalator.
func (m *Monitor) HandleFailure(ctx context.Context, task *core.Task, agentID core.AgentID, cause error) (core.RecoveryAction, error) {
	recent := m.recentOutput(ctx, agentID)
	action := m.determineRecovery(ctx, task, recent, cause)
	if err := m.executeRecovery(ctx, task, agentID, action); err != nil {
		return action, err
	}
	return action, nil
}

func (m *Monitor) recentOutput(ctx context.Context, agentID core.AgentID) string {
	if agentID == "" || m.Pool == nil {
		return ""
	}
	_, handle, ok := m.Pool.Get(agentID)
	if !ok || handle == nil {
		return ""
	}
	text, err := handle.ReadPlain(ctx)
	if err != nil {
		return ""
	}
	return text
}

func (m *Monitor) determineRecovery(ctx context.Context, task *core.Task, recentOutput string, cause error) core.RecoveryAction {
	if m.Advisor != nil {
		if kind, err := m.Advisor.Recommend(ctx, task, recentOutput, cause); err == nil {
			return m.buildAction(task, kind, cause)
		}
	}
	return m.fallback(ctx, task, recentOutput, cause)
}

func (m *Monitor) buildAction(task *core.Task, kind core.RecoveryActionKind, cause error) core.RecoveryAction {
	switch kind {
	case core.RecoveryDecompose:
		if m.Decomposer == nil {
			return core.RecoveryAction{Kind: core.RecoveryEscalate, Message: fmt.Sprintf("task %s needs decomposition but no decomposer is configured", task.ID)}
		}
		return core.RecoveryAction{Kind: core.RecoveryDecompose, Subtasks: m.Decomposer(task)}
	case core.RecoveryEscalate:
		return core.RecoveryAction{Kind: core.RecoveryEscalate, Message: fmt.Sprintf("task %s escalated: %v", task.ID, cause)}
	case core.RecoveryAbort:
		return core.RecoveryAction{Kind: core.RecoveryAbort, Message: cause.Error()}
	default:
		return core.RecoveryAction{Kind: kind}
	}
}

// fallback is the deterministic recovery ladder used when no advisor is
// configured or the advisor's response could not be parsed.
func (m *Monitor) fallback(ctx context.Context, task *core.Task, recentOutput string, cause error) core.RecoveryAction {
	if task.CanRetry(task.MaxRetries) {
		if m.isTransient(ctx, cause, recentOutput) {
			return core.RecoveryAction{Kind: core.RecoveryRestart}
		}
		if m.Decomposer != nil && descriptionLines(task.Description) > m.Config.decomposeLineThreshold() {
			return core.RecoveryAction{Kind: core.RecoveryDecompose, Subtasks: m.Decomposer(task)}
		}
	}
	return core.RecoveryAction{Kind: core.RecoveryEscalate,
		Message: fmt.Sprintf("task %s exhausted recovery options after %d retries: %v", task.ID, task.Retries, cause)}
}

func (m *Monitor) isTransient(ctx context.Context, cause error, recentOutput string) bool {
	if core.IsCategory(cause, core.ErrCatRateLimit) || core.IsCategory(cause, core.ErrCatTimeout) {
		return true
	}
	text := cause.Error() + "\n" + recentOutput
	if m.policy != nil {
		if transient, ok := m.policy.isTransient(ctx, text); ok {
			return transient
		}
	}
	return isTransientLiteral(text, m.Config.stuckPatterns())
}

func descriptionLines(desc string) int {
	if desc == "" {
		return 0
	}
	return len(strings.Split(desc, "\n"))
}

// executeRecovery applies action's mutation to task (and Graph, for
// Decompose/Abort).
func (m *Monitor) executeRecovery(ctx context.Context, task *core.Task, agentID core.AgentID, action core.RecoveryAction) error {
	switch action.Kind {
	case core.RecoveryRestart, core.RecoveryReassign:
		// The pool always spawns a fresh agent on the next dispatch, so
		// Reassign's "different agent" guarantee falls out of Restart's
		// Requeue without any separate agent-selection step.
		task.Requeue()
		return nil

	case core.RecoveryDecompose:
		if len(action.Subtasks) == 0 {
			task.MarkBlocked("decompose requested with no replacement subtasks")
			return nil
		}
		if m.Graph == nil {
			return core.ErrState(core.CodeInvalidState, "decompose recovery requires a graph")
		}
		return m.Graph.Decompose(task.ID, action.Subtasks)

	case core.RecoveryEscalate:
		task.MarkBlocked(action.Message)
		m.publish(core.Event{Type: core.EventEscalationRequested, WorkflowID: task.WorkflowID, TaskID: task.ID, AgentID: agentID, Message: action.Message})
		if m.Escalator != nil {
			_ = m.Escalator.Notify(ctx, task, action.Message)
		}
		return nil

	case core.RecoveryAbort:
		if task.Status == core.TaskStatusRunning {
			_ = task.MarkFailed(fmt.Errorf("%s", action.Message))
		} else {
			task.MarkBlocked(action.Message)
		}
		m.propagateAbort(task.ID)
		return nil

	default:
		return core.ErrValidation("UNKNOWN_RECOVERY_KIND", fmt.Sprintf("unrecognized recovery action kind %q", action.Kind))
	}
}

// propagateAbort marks every transitive dependent of an aborted task
// Blocked, per spec §4.9's abort-cascades-to-descendants rule.
func (m *Monitor) propagateAbort(rootID core.TaskID) {
	if m.Graph == nil {
		return
	}
	closure := core.DescendantClosure(m.Graph.Edges(), []core.TaskID{rootID})
	delete(closure, rootID)
	for id := range closure {
		t, ok := m.Graph.Task(id)
		if !ok || t.IsTerminal() {
			continue
		}
		t.MarkBlocked(fmt.Sprintf("ancestor task %s was aborted", rootID))
	}
}

func (m *Monitor) publish(e core.Event) {
	if m.Publisher == nil {
		return
	}
	m.Publisher.Publish(e)
}
