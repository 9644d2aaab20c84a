package healthmonitor

import (
	"time"

	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/core"
)

// poolAdapter satisfies Pool from a real *agentpool.Pool. Needed because
// agentpool.Pool.Get returns the concrete *agentdriver.Handle, one
// assignment short of the AgentHandle interface Monitor depends on.
type poolAdapter struct {
	pool *agentpool.Pool
}

// NewPoolAdapter wraps p so it satisfies Pool for wiring into a Monitor.
func NewPoolAdapter(p *agentpool.Pool) Pool {
	return poolAdapter{pool: p}
}

func (a poolAdapter) ActiveIDs() []core.AgentID {
	return a.pool.ActiveIDs()
}

func (a poolAdapter) Get(id core.AgentID) (*core.Agent, AgentHandle, bool) {
	agent, handle, ok := a.pool.Get(id)
	if handle == nil {
		return agent, nil, ok
	}
	return agent, handle, ok
}

func (a poolAdapter) MarkStuck(id core.AgentID, reason string, since time.Duration) {
	a.pool.MarkStuck(id, reason, since)
}

func (a poolAdapter) MarkFailed(id core.AgentID, errMsg string) {
	a.pool.MarkFailed(id, errMsg)
}
