package conflictresolver

import (
	"context"

	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/core"
)

// poolAdapter satisfies Pool from a real *agentpool.Pool. Needed because
// agentpool.Pool.Get returns the concrete *agentdriver.Handle, one
// assignment short of the AgentHandle interface Resolver depends on (the
// same covariance gap internal/healthmonitor works around with its own
// adapter).
type poolAdapter struct {
	pool *agentpool.Pool
}

// NewPoolAdapter wraps p so it satisfies Pool for wiring into a Resolver.
func NewPoolAdapter(p *agentpool.Pool) Pool {
	return poolAdapter{pool: p}
}

func (a poolAdapter) SpawnForSkill(ctx context.Context, skillName, sessionName, workDir string) (core.AgentID, error) {
	return a.pool.SpawnForSkill(ctx, skillName, sessionName, workDir)
}

func (a poolAdapter) Get(id core.AgentID) (*core.Agent, AgentHandle, bool) {
	agent, handle, ok := a.pool.Get(id)
	if handle == nil {
		return agent, nil, ok
	}
	return agent, handle, ok
}

func (a poolAdapter) Terminate(ctx context.Context, id core.AgentID) error {
	return a.pool.Terminate(ctx, id)
}
