package workflowfsm_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/testutil"
	"github.com/TheHiddenLayer/zen/internal/workflowfsm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *capturePublisher) Publish(e core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newRunningWorkflow(cfg core.Config) *core.Workflow {
	wf := core.NewWorkflow(core.NewWorkflowID(), "test", "do the thing", cfg)
	if err := wf.Start(); err != nil {
		panic(err)
	}
	return wf
}

func TestMachine_TransitionTo_WalksFullOrderAndCompletes(t *testing.T) {
	pub := &capturePublisher{}
	wf := newRunningWorkflow(core.DefaultConfig())
	m := workflowfsm.New(wf, pub)

	order := []core.Phase{
		core.PhaseTaskGeneration,
		core.PhaseImplementation,
		core.PhaseMerging,
		core.PhaseDocumentation,
		core.PhaseComplete,
	}
	for _, next := range order {
		testutil.AssertNoError(t, m.TransitionTo(next))
	}

	testutil.AssertEqual(t, m.Current(), core.PhaseComplete)
	testutil.AssertEqual(t, wf.Status, core.WorkflowStatusCompleted)
	testutil.AssertLen(t, m.History(), 6) // Planning + 5 transitions

	types := pub.types()
	changed := 0
	completed := 0
	for _, ty := range types {
		switch ty {
		case core.EventPhaseChanged:
			changed++
		case core.EventWorkflowCompleted:
			completed++
		}
	}
	testutil.AssertEqual(t, changed, 5)
	testutil.AssertEqual(t, completed, 1)
}

func TestMachine_TransitionTo_SkipsDocumentationWhenDisabled(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.UpdateDocs = false
	pub := &capturePublisher{}
	wf := newRunningWorkflow(cfg)
	m := workflowfsm.New(wf, pub)

	testutil.AssertNoError(t, m.TransitionTo(core.PhaseTaskGeneration))
	testutil.AssertNoError(t, m.TransitionTo(core.PhaseImplementation))
	testutil.AssertNoError(t, m.TransitionTo(core.PhaseMerging))

	// Documentation is not a valid target once docs are disabled.
	err := m.TransitionTo(core.PhaseDocumentation)
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatStructural), "expected a structural error")

	testutil.AssertNoError(t, m.TransitionTo(core.PhaseComplete))
	testutil.AssertEqual(t, m.Current(), core.PhaseComplete)
}

func TestMachine_TransitionTo_RejectsNonSequentialJump(t *testing.T) {
	wf := newRunningWorkflow(core.DefaultConfig())
	m := workflowfsm.New(wf, nil)

	err := m.TransitionTo(core.PhaseMerging)
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatStructural), "expected a structural error")
	testutil.AssertEqual(t, m.Current(), core.PhasePlanning)
}

func TestMachine_TransitionTo_RejectsReplay(t *testing.T) {
	wf := newRunningWorkflow(core.DefaultConfig())
	m := workflowfsm.New(wf, nil)

	testutil.AssertNoError(t, m.TransitionTo(core.PhaseTaskGeneration))
	testutil.AssertNoError(t, m.TransitionTo(core.PhaseImplementation))

	err := m.TransitionTo(core.PhasePlanning)
	testutil.AssertError(t, err)
}

func TestMachine_Fail_PreservesPhaseAndEmitsWorkflowFailed(t *testing.T) {
	pub := &capturePublisher{}
	wf := newRunningWorkflow(core.DefaultConfig())
	m := workflowfsm.New(wf, pub)

	testutil.AssertNoError(t, m.TransitionTo(core.PhaseTaskGeneration))
	testutil.AssertNoError(t, m.TransitionTo(core.PhaseImplementation))

	testutil.AssertNoError(t, m.Fail(errors.New("agent pool exhausted")))
	testutil.AssertEqual(t, wf.Status, core.WorkflowStatusFailed)
	testutil.AssertEqual(t, m.Current(), core.PhaseImplementation)
	testutil.AssertContains(t, wf.Error, "agent pool exhausted")

	found := false
	for _, e := range pub.events {
		if e.Type == core.EventWorkflowFailed {
			found = true
			testutil.AssertEqual(t, e.FromPhase, core.PhaseImplementation)
		}
	}
	testutil.AssertTrue(t, found, "expected a WorkflowFailed event")
}

func TestMachine_AcceptReject_RequireComplete(t *testing.T) {
	wf := newRunningWorkflow(core.DefaultConfig())
	m := workflowfsm.New(wf, nil)

	testutil.AssertError(t, m.Accept())
	testutil.AssertError(t, m.Reject())

	for _, next := range []core.Phase{
		core.PhaseTaskGeneration, core.PhaseImplementation, core.PhaseMerging,
		core.PhaseDocumentation, core.PhaseComplete,
	} {
		testutil.AssertNoError(t, m.TransitionTo(next))
	}

	testutil.AssertNoError(t, m.Accept())
	testutil.AssertEqual(t, wf.Status, core.WorkflowStatusAccepted)
}
