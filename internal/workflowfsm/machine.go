package workflowfsm

import (
	"fmt"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Machine wraps a *core.Workflow with validated transitions and event
// emission. The workflow itself stays the single source of truth for phase,
// status, and history; Machine never duplicates that state.
type Machine struct {
	Workflow  *core.Workflow
	Publisher core.Publisher
}

// New builds a Machine over workflow. publisher may be nil, in which case
// transitions still apply but no events are emitted.
func New(workflow *core.Workflow, publisher core.Publisher) *Machine {
	return &Machine{Workflow: workflow, Publisher: publisher}
}

// Current returns the workflow's current phase.
func (m *Machine) Current() core.Phase {
	return m.Workflow.Phase
}

// History returns the recorded (phase, timestamp) transitions, oldest first.
func (m *Machine) History() []core.PhaseTransition {
	return m.Workflow.PhaseHistory
}

// expectedNext returns the only phase TransitionTo will accept from the
// workflow's current phase, honoring the Documentation skip rule.
func (m *Machine) expectedNext() core.Phase {
	from := m.Workflow.Phase
	if from == core.PhaseMerging && core.CanSkipDocumentation(m.Workflow.Config.UpdateDocs) {
		return core.PhaseComplete
	}
	return core.NextPhase(from)
}

// TransitionTo advances the workflow to target. Only the single forward
// transition the fixed phase order allows from the current phase succeeds;
// any other target, including replay of an already-visited phase, fails
// with InvalidTransition. Reaching PhaseComplete also marks the workflow
// Completed and emits WorkflowCompleted alongside the PhaseChanged event.
func (m *Machine) TransitionTo(target core.Phase) error {
	from := m.Workflow.Phase
	expected := m.expectedNext()
	if expected == "" || target != expected {
		return core.ErrStructural(core.CodeInvalidTransition,
			fmt.Sprintf("invalid transition %s -> %s", from, target))
	}

	entered := m.phaseEnteredAt(from)
	if err := m.Workflow.AdvancePhase(); err != nil {
		return err
	}

	m.publish(core.Event{
		Type:       core.EventPhaseChanged,
		WorkflowID: m.Workflow.ID,
		FromPhase:  from,
		ToPhase:    target,
		Elapsed:    time.Since(entered),
	})

	if target != core.PhaseComplete {
		return nil
	}
	if err := m.Workflow.Complete(); err != nil {
		return err
	}
	m.publish(core.Event{Type: core.EventWorkflowCompleted, WorkflowID: m.Workflow.ID, ToPhase: target})
	return nil
}

// Fail transitions the workflow to Failed from whatever phase it is
// currently in — spec §4.11's "any phase may transition to Failed on fatal
// error" — and emits WorkflowFailed with the phase the failure occurred in.
func (m *Machine) Fail(cause error) error {
	from := m.Workflow.Phase
	if err := m.Workflow.Fail(cause); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	m.publish(core.Event{Type: core.EventWorkflowFailed, WorkflowID: m.Workflow.ID, FromPhase: from, Error: msg})
	return nil
}

// Accept records the operator's post-Complete acceptance. Phase is
// untouched; only Status moves to Accepted.
func (m *Machine) Accept() error {
	return m.Workflow.Accept()
}

// Reject records the operator's post-Complete rejection. Phase is
// untouched; only Status moves to Rejected.
func (m *Machine) Reject() error {
	return m.Workflow.Reject()
}

// phaseEnteredAt returns the timestamp phase was entered, from the most
// recent matching history entry, falling back to the workflow's creation
// time for the initial phase.
func (m *Machine) phaseEnteredAt(phase core.Phase) time.Time {
	for i := len(m.Workflow.PhaseHistory) - 1; i >= 0; i-- {
		if m.Workflow.PhaseHistory[i].Phase == phase {
			return m.Workflow.PhaseHistory[i].Timestamp
		}
	}
	return m.Workflow.Created
}

func (m *Machine) publish(e core.Event) {
	if m.Publisher == nil {
		return
	}
	m.Publisher.Publish(e)
}
