package aqa

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// AnswerGenerator produces a raw, unshaped response to question given the
// conversation accumulated so far. AQA.Answer shapes the result down to a
// digit, yes/no, or single token before recording and returning it.
type AnswerGenerator interface {
	Generate(ctx context.Context, convo *core.ConversationContext, question string) (string, error)
}

// promptTemplate is the fixed instruction template every non-interactive
// re-invocation uses, so the same assistant that is stuck answers its own
// question consistently with the prompt that started the workflow.
const promptTemplate = `You previously started working on this task:

%s

You asked the following clarification question and need a short, concrete
answer so you can continue, with no further discussion:

%s

Reply with only the answer, nothing else.`

func buildPrompt(convo *core.ConversationContext, question string) string {
	return fmt.Sprintf(promptTemplate, convo.Prompt, question)
}

// CLIAnswerGenerator re-invokes the same coding-assistant binary the agent
// pool drives, but as a single non-interactive subprocess rather than
// through a tmux pane — the production default (spec §4.4).
type CLIAnswerGenerator struct {
	// Binary is the assistant executable (e.g. "claude", "gemini").
	Binary string
	// PromptFlag is the flag the binary accepts a one-shot prompt under
	// (e.g. "-p" / "--print"). If empty, the prompt is passed as the final
	// positional argument instead.
	PromptFlag string
	Timeout    time.Duration
}

func (g CLIAnswerGenerator) Generate(ctx context.Context, convo *core.ConversationContext, question string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := buildPrompt(convo, question)
	var args []string
	if g.PromptFlag != "" {
		args = []string{g.PromptFlag, prompt}
	} else {
		args = []string{prompt}
	}

	cmd := exec.CommandContext(runCtx, g.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return "", core.ErrTimeout(fmt.Sprintf("answer generation for %q timed out", g.Binary))
		}
		return "", core.ErrExecution("AQA_GENERATE_FAILED", fmt.Sprintf("%s: %v: %s", g.Binary, err, stderr.String())).WithCause(err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

const defaultGenerateTimeout = 30 * time.Second

// LangChainAnswerGenerator calls an LLM directly through langchaingo instead
// of re-invoking the driven CLI, for deployments that configure a model
// client rather than relying on the agent's own one-shot mode.
type LangChainAnswerGenerator struct {
	Model llms.Model
}

func (g LangChainAnswerGenerator) Generate(ctx context.Context, convo *core.ConversationContext, question string) (string, error) {
	prompt := buildPrompt(convo, question)
	out, err := llms.GenerateFromSinglePrompt(ctx, g.Model, prompt)
	if err != nil {
		return "", core.ErrExecution("AQA_GENERATE_FAILED", fmt.Sprintf("langchaingo generate: %v", err)).WithCause(err)
	}
	return strings.TrimSpace(out), nil
}

// ScriptedAnswerGenerator returns a fixed answer regardless of question,
// the deterministic test implementation spec §4.4 calls for.
type ScriptedAnswerGenerator struct {
	Answer string
}

func (g ScriptedAnswerGenerator) Generate(_ context.Context, _ *core.ConversationContext, _ string) (string, error) {
	return g.Answer, nil
}
