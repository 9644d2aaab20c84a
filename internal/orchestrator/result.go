package orchestrator

import "github.com/TheHiddenLayer/zen/internal/core"

// WorkflowResult summarizes one Execute call: the public return value spec
// §4.12 step 8 calls for, independent of whatever the caller does with the
// persisted Workflow/Task/Agent records afterward.
type WorkflowResult struct {
	WorkflowID    core.WorkflowID
	Phase         core.Phase
	Status        core.WorkflowStatus
	StagingBranch string
	TaskIDs       []core.TaskID
	Error         string
}

func resultFromWorkflow(wf *core.Workflow) *WorkflowResult {
	return &WorkflowResult{
		WorkflowID:    wf.ID,
		Phase:         wf.Phase,
		Status:        wf.Status,
		StagingBranch: wf.StagingBranch,
		TaskIDs:       append([]core.TaskID{}, wf.TaskIDs...),
		Error:         wf.Error,
	}
}
