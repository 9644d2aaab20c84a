package agentpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/TheHiddenLayer/zen/internal/agentdriver"
	"github.com/TheHiddenLayer/zen/internal/core"
)

// eventBuffer bounds the outbound AgentEvent channel. A full channel drops
// the oldest event rather than blocking the pool (spec §4.5), the same
// ring-buffer discipline teacher `events.EventBus.deliverWithRingBuffer`
// applies to its own subscriber channels.
const eventBuffer = 256

// defaultSpawnRate bounds how often the pool will start a fresh session for
// the same skill/agent name back to back, so a misbehaving caller retrying
// in a tight loop cannot hammer the underlying CLI.
const defaultSpawnRate = rate.Limit(2) // 2/s, burst 2

// StartFunc starts a driven agent rooted at workDir under sessionName and
// returns its handle. Supplied by the caller so the pool stays decoupled
// from how a worktree or start command is produced (C2/C7 concerns).
type StartFunc func(ctx context.Context, sessionName, workDir string) (*agentdriver.Handle, error)

type entry struct {
	agent  *core.Agent
	handle *agentdriver.Handle
}

// Pool holds active AgentHandles under a bounded concurrency limit and fans
// out lifecycle events on a best-effort channel (spec §4.5).
type Pool struct {
	mu     sync.Mutex
	agents map[core.AgentID]*entry

	sem           *semaphore.Weighted
	maxConcurrent int

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	events chan core.AgentEvent
	start  StartFunc
}

// New builds a pool with the given concurrency limit. start is invoked once
// per spawn, after capacity and spawn-rate checks pass.
func New(maxConcurrent int, start StartFunc) *Pool {
	return &Pool{
		agents:        make(map[core.AgentID]*entry),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: maxConcurrent,
		limiters:      make(map[string]*rate.Limiter),
		events:        make(chan core.AgentEvent, eventBuffer),
		start:         start,
	}
}

// Events returns the pool's outbound event channel.
func (p *Pool) Events() <-chan core.AgentEvent {
	return p.events
}

// MaxConcurrent returns the pool's configured concurrency limit.
func (p *Pool) MaxConcurrent() int {
	return p.maxConcurrent
}

// ActiveCount returns the number of agents currently held by the pool.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.agents)
}

// HasCapacity reports whether a spawn would currently succeed.
func (p *Pool) HasCapacity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.agents) < p.maxConcurrent
}

// SpawnForTask creates a fresh agent bound to task, gated by both the
// pool's concurrency limit and a per-skill spawn-rate limiter.
func (p *Pool) SpawnForTask(ctx context.Context, task *core.Task, skillName, sessionName, workDir string) (core.AgentID, error) {
	return p.spawn(ctx, skillName, sessionName, workDir, task.ID)
}

// SpawnForSkill creates a fresh agent not associated with any task, used by
// single-agent phase runners (spec §4.5).
func (p *Pool) SpawnForSkill(ctx context.Context, skillName, sessionName, workDir string) (core.AgentID, error) {
	return p.spawn(ctx, skillName, sessionName, workDir, "")
}

func (p *Pool) spawn(ctx context.Context, skillName, sessionName, workDir string, taskID core.TaskID) (core.AgentID, error) {
	if !p.sem.TryAcquire(1) {
		return "", core.ErrState(core.CodeCapacityExceeded,
			fmt.Sprintf("agent pool at capacity (%d/%d active)", p.ActiveCount(), p.maxConcurrent))
	}

	if err := p.limiterFor(skillName).Wait(ctx); err != nil {
		p.sem.Release(1)
		return "", core.ErrRateLimit(fmt.Sprintf("spawn rate limit for %q: %v", skillName, err))
	}

	handle, err := p.start(ctx, sessionName, workDir)
	if err != nil {
		p.sem.Release(1)
		return "", err
	}

	id := core.NewAgentID()
	agent := core.NewAgent(id, sessionName, workDir)
	if taskID != "" {
		agent.MarkRunning(taskID)
	}

	p.mu.Lock()
	p.agents[id] = &entry{agent: agent, handle: handle}
	p.mu.Unlock()

	ev := core.NewAgentEvent(core.AgentEventStarted, id)
	ev.TaskID = taskID
	p.emit(ev)
	return id, nil
}

func (p *Pool) limiterFor(skillName string) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()
	l, ok := p.limiters[skillName]
	if !ok {
		l = rate.NewLimiter(defaultSpawnRate, 2)
		p.limiters[skillName] = l
	}
	return l
}

// ActiveIDs returns a snapshot of every agent id currently held by the
// pool, for the Health Monitor's periodic inspection sweep.
func (p *Pool) ActiveIDs() []core.AgentID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]core.AgentID, 0, len(p.agents))
	for id := range p.agents {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the live core.Agent and driver handle for id.
func (p *Pool) Get(id core.AgentID) (*core.Agent, *agentdriver.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.agents[id]
	if !ok {
		return nil, nil, false
	}
	return e.agent, e.handle, true
}

// MarkStuck records a stall the Health Monitor detected against id's agent,
// and emits StuckDetected.
func (p *Pool) MarkStuck(id core.AgentID, reason string, since time.Duration) {
	p.mu.Lock()
	e, ok := p.agents[id]
	if ok {
		e.agent.MarkStuck(reason)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	ev := core.NewAgentEvent(core.AgentEventStuckDetected, id)
	ev.Duration = since
	p.emit(ev)
}

// MarkCompleted records a successful terminal exit and emits Completed.
// The entry is retained (not removed) so late lookups still resolve; use
// Terminate to free the concurrency slot.
func (p *Pool) MarkCompleted(id core.AgentID, exitCode int) {
	ev := core.NewAgentEvent(core.AgentEventCompleted, id)
	ev.ExitCode = exitCode
	p.emit(ev)
}

// MarkFailed records a terminal failure and emits Failed.
func (p *Pool) MarkFailed(id core.AgentID, errMsg string) {
	p.mu.Lock()
	e, ok := p.agents[id]
	if ok {
		e.agent.MarkFailed(errMsg)
	}
	p.mu.Unlock()
	ev := core.NewAgentEvent(core.AgentEventFailed, id)
	ev.Error = errMsg
	p.emit(ev)
}

// Terminate tears down id's session and frees its concurrency slot.
// Idempotent on an already-terminated or unknown agent id, per spec §4.5.
func (p *Pool) Terminate(ctx context.Context, id core.AgentID) error {
	p.mu.Lock()
	e, ok := p.agents[id]
	if ok {
		delete(p.agents, id)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	p.sem.Release(1)
	err := e.handle.Terminate(ctx)
	e.agent.MarkTerminated()
	p.emit(core.NewAgentEvent(core.AgentEventTerminated, id))
	return err
}

// emit delivers ev to the event channel, dropping the oldest queued event
// and retrying once if the channel is full (ring-buffer semantics; never
// blocks the caller).
func (p *Pool) emit(ev core.AgentEvent) {
	select {
	case p.events <- ev:
		return
	default:
	}
	select {
	case <-p.events:
	default:
	}
	select {
	case p.events <- ev:
	default:
	}
}
