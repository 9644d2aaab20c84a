package core

import "fmt"

// Phase represents a stage in a workflow's lifecycle.
type Phase string

const (
	// PhasePlanning drives a single agent through the planning skill,
	// producing a design document and an implementation plan.
	PhasePlanning Phase = "planning"

	// PhaseTaskGeneration drives a single agent that turns the plan into
	// a set of discrete, dependency-annotated code tasks.
	PhaseTaskGeneration Phase = "task_generation"

	// PhaseImplementation hands the generated task graph to the scheduler,
	// which dispatches ready tasks to a capacity-bounded agent pool.
	PhaseImplementation Phase = "implementation"

	// PhaseMerging sequentially merges completed task branches into the
	// workflow's staging branch, resolving conflicts as they arise.
	PhaseMerging Phase = "merging"

	// PhaseDocumentation drives a single agent that refreshes project
	// documentation against the merged result. Skipped when the workflow's
	// config disables it.
	PhaseDocumentation Phase = "documentation"

	// PhaseComplete is the terminal success phase.
	PhaseComplete Phase = "complete"
)

// AllPhases returns every phase in execution order.
func AllPhases() []Phase {
	return []Phase{
		PhasePlanning,
		PhaseTaskGeneration,
		PhaseImplementation,
		PhaseMerging,
		PhaseDocumentation,
		PhaseComplete,
	}
}

// PhaseOrder returns the numeric order of a phase (0-indexed), or -1 if
// the phase is not one of AllPhases.
func PhaseOrder(p Phase) int {
	for i, candidate := range AllPhases() {
		if candidate == p {
			return i
		}
	}
	return -1
}

// NextPhase returns the phase following the given phase, or empty string
// if p is the last phase or not a known phase.
func NextPhase(p Phase) Phase {
	phases := AllPhases()
	order := PhaseOrder(p)
	if order < 0 || order+1 >= len(phases) {
		return ""
	}
	return phases[order+1]
}

// PrevPhase returns the phase preceding the given phase, or empty string
// if p is the first phase or not a known phase.
func PrevPhase(p Phase) Phase {
	order := PhaseOrder(p)
	if order <= 0 {
		return ""
	}
	return AllPhases()[order-1]
}

// ValidPhase reports whether p is one of the declared workflow phases.
func ValidPhase(p Phase) bool {
	return PhaseOrder(p) >= 0
}

// ParsePhase converts a string to a Phase, validating it against the
// declared phase set.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !ValidPhase(p) {
		return "", fmt.Errorf("invalid phase: %s", s)
	}
	return p, nil
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Description returns a human-readable description of the phase.
func (p Phase) Description() string {
	switch p {
	case PhasePlanning:
		return "Plan the change: produce a design and an implementation plan"
	case PhaseTaskGeneration:
		return "Break the plan into a dependency-ordered set of code tasks"
	case PhaseImplementation:
		return "Dispatch code tasks to a pool of agents in isolated worktrees"
	case PhaseMerging:
		return "Merge completed task branches into the staging branch"
	case PhaseDocumentation:
		return "Refresh documentation against the merged result"
	case PhaseComplete:
		return "Workflow finished successfully"
	default:
		return "Unknown phase"
	}
}

// CanSkipDocumentation reports whether PhaseDocumentation may be bypassed
// (Merging transitions directly to Complete) given updateDocs.
func CanSkipDocumentation(updateDocs bool) bool {
	return !updateDocs
}
