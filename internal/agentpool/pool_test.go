package agentpool_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/TheHiddenLayer/zen/internal/agentdriver"
	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/testutil"
)

func requireTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available in PATH")
	}
}

func newStartFunc(t *testing.T) agentpool.StartFunc {
	return func(ctx context.Context, sessionName, workDir string) (*agentdriver.Handle, error) {
		return agentdriver.NewHandle(ctx, sessionName, workDir, "cat")
	}
}

func sessionName(t *testing.T, suffix string) string {
	return strings.ReplaceAll("zen-pool-test-"+t.Name()+"-"+suffix, "/", "-")
}

func TestPool_SpawnForTask_TracksActiveCount(t *testing.T) {
	requireTmux(t)
	ctx := context.Background()
	pool := agentpool.New(2, newStartFunc(t))

	task := core.NewTask(core.NewTaskID(), core.NewWorkflowID(), "build thing")
	id, err := pool.SpawnForTask(ctx, task, "claude", sessionName(t, "a"), testutil.TempDir(t))
	testutil.AssertNoError(t, err)
	defer pool.Terminate(ctx, id)

	testutil.AssertEqual(t, pool.ActiveCount(), 1)

	agent, handle, ok := pool.Get(id)
	testutil.AssertTrue(t, ok, "expected spawned agent to be retrievable")
	testutil.AssertEqual(t, agent.Status, core.AgentStatusRunning)
	testutil.AssertEqual(t, agent.TaskID, task.ID)
	testutil.AssertEqual(t, handle.WorktreePath(), agent.WorktreePath)
}

func TestPool_SpawnForSkill_NoTaskAssociation(t *testing.T) {
	requireTmux(t)
	ctx := context.Background()
	pool := agentpool.New(2, newStartFunc(t))

	id, err := pool.SpawnForSkill(ctx, "claude", sessionName(t, "skill"), testutil.TempDir(t))
	testutil.AssertNoError(t, err)
	defer pool.Terminate(ctx, id)

	agent, _, ok := pool.Get(id)
	testutil.AssertTrue(t, ok, "expected spawned agent to be retrievable")
	testutil.AssertEqual(t, agent.Status, core.AgentStatusIdle)
	testutil.AssertEqual(t, agent.TaskID, core.TaskID(""))
}

func TestPool_SpawnBeyondCapacity_FailsWithCapacityExceeded(t *testing.T) {
	requireTmux(t)
	ctx := context.Background()
	pool := agentpool.New(1, newStartFunc(t))

	task := core.NewTask(core.NewTaskID(), core.NewWorkflowID(), "first")
	id, err := pool.SpawnForTask(ctx, task, "claude", sessionName(t, "first"), testutil.TempDir(t))
	testutil.AssertNoError(t, err)
	defer pool.Terminate(ctx, id)

	testutil.AssertFalse(t, pool.HasCapacity(), "pool should be at capacity")

	_, err = pool.SpawnForTask(ctx, core.NewTask(core.NewTaskID(), core.NewWorkflowID(), "second"), "claude", sessionName(t, "second"), testutil.TempDir(t))
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatState), "expected a state-category error")
}

func TestPool_Terminate_FreesCapacityAndIsIdempotent(t *testing.T) {
	requireTmux(t)
	ctx := context.Background()
	pool := agentpool.New(1, newStartFunc(t))

	task := core.NewTask(core.NewTaskID(), core.NewWorkflowID(), "first")
	id, err := pool.SpawnForTask(ctx, task, "claude", sessionName(t, "term"), testutil.TempDir(t))
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, pool.Terminate(ctx, id))
	testutil.AssertNoError(t, pool.Terminate(ctx, id))
	testutil.AssertEqual(t, pool.ActiveCount(), 0)
	testutil.AssertTrue(t, pool.HasCapacity(), "capacity should be freed after terminate")
}

func TestPool_Events_EmitsStartedAndTerminated(t *testing.T) {
	requireTmux(t)
	ctx := context.Background()
	pool := agentpool.New(2, newStartFunc(t))

	task := core.NewTask(core.NewTaskID(), core.NewWorkflowID(), "first")
	id, err := pool.SpawnForTask(ctx, task, "claude", sessionName(t, "events"), testutil.TempDir(t))
	testutil.AssertNoError(t, err)

	started := <-pool.Events()
	testutil.AssertEqual(t, started.Type, core.AgentEventStarted)
	testutil.AssertEqual(t, started.AgentID, id)

	testutil.AssertNoError(t, pool.Terminate(ctx, id))
	terminated := <-pool.Events()
	testutil.AssertEqual(t, terminated.Type, core.AgentEventTerminated)
}

func TestPool_Get_UnknownID(t *testing.T) {
	pool := agentpool.New(1, newStartFunc(t))
	_, _, ok := pool.Get(core.NewAgentID())
	testutil.AssertFalse(t, ok, "expected unknown id to miss")
}
