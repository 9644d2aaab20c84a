package healthmonitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Advisor recommends a recovery action kind for a failed task, given its
// retry budget and the agent's recent output. A non-nil error means the
// caller must fall back to the deterministic ladder in fallback().
type Advisor interface {
	Recommend(ctx context.Context, task *core.Task, recentOutput string, cause error) (core.RecoveryActionKind, error)
}

const recoveryPromptTemplate = `A task in an automated coding workflow has failed.

Task: %s
Description:
%s

Retry count: %d of %d allowed.

Recent output from the agent:
%s

Failure: %v

Reply with exactly one word choosing the best recovery action:
restart - the failure looks transient, retry with a fresh agent
decompose - the task is too large and should be split into smaller subtasks
escalate - a human operator should look at this
abort - this task and anything depending on it cannot proceed

Reply with only that one word.`

// LangChainAdvisor calls an LLM directly through langchaingo to recommend a
// recovery action, mirroring internal/aqa's LangChainAnswerGenerator.
type LangChainAdvisor struct {
	Model llms.Model
}

func (a LangChainAdvisor) Recommend(ctx context.Context, task *core.Task, recentOutput string, cause error) (core.RecoveryActionKind, error) {
	prompt := fmt.Sprintf(recoveryPromptTemplate, task.Name, task.Description, task.Retries, task.MaxRetries, recentOutput, cause)
	out, err := llms.GenerateFromSinglePrompt(ctx, a.Model, prompt)
	if err != nil {
		return "", core.ErrExecution("RECOVERY_ADVISOR_FAILED", fmt.Sprintf("langchaingo generate: %v", err)).WithCause(err)
	}

	switch strings.ToLower(strings.TrimSpace(out)) {
	case string(core.RecoveryRestart):
		return core.RecoveryRestart, nil
	case string(core.RecoveryDecompose):
		return core.RecoveryDecompose, nil
	case string(core.RecoveryEscalate):
		return core.RecoveryEscalate, nil
	case string(core.RecoveryAbort):
		return core.RecoveryAbort, nil
	default:
		return "", core.ErrExecution("RECOVERY_ADVISOR_UNPARSEABLE", fmt.Sprintf("advisor returned unrecognized action %q", out))
	}
}

// ScriptedAdvisor returns a fixed action regardless of input, the
// deterministic test double mirroring aqa.ScriptedAnswerGenerator.
type ScriptedAdvisor struct {
	Kind core.RecoveryActionKind
}

func (a ScriptedAdvisor) Recommend(_ context.Context, _ *core.Task, _ string, _ error) (core.RecoveryActionKind, error) {
	return a.Kind, nil
}
