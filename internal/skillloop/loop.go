package skillloop

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/TheHiddenLayer/zen/internal/classifier"
	"github.com/TheHiddenLayer/zen/internal/core"
)

var tracer = otel.Tracer("zen/skillloop")

// AgentHandle is the narrow surface the loop needs from a driven agent.
// agentdriver.Handle satisfies it; tests substitute a fake.
type AgentHandle interface {
	Send(ctx context.Context, text string) error
	ReadPlain(ctx context.Context) (string, error)
}

// QuestionAnswerer is the narrow surface the loop needs from an AQA.
// aqa.AQA satisfies it.
type QuestionAnswerer interface {
	NeedsEscalation(ctx context.Context, question string) bool
	Answer(ctx context.Context, question string) (string, error)
}

// Escalator awaits an operator-supplied answer for a question the AQA
// refused to answer autonomously.
type Escalator interface {
	AwaitOverride(ctx context.Context, question string) (string, error)
}

// Toucher records observed agent activity, for the Health Monitor's stall
// detection. core.Agent satisfies it.
type Toucher interface {
	Touch()
}

// MonitorConfig bounds the loop's polling and overall patience.
type MonitorConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Result is the loop's outcome.
type Result struct {
	Success           bool
	Output            string
	QuestionsAnswered int
	Duration          time.Duration

	// TokensIn and TokensOut are cl100k_base token-count estimates over the
	// initial command and the agent's final pane snapshot, for budget and
	// progress logging (spec §6's TaskProgress); never used for dispatch
	// decisions.
	TokensIn  int
	TokensOut int
}

// Loop binds one agent handle, one AQA, and an optional escalation/event
// sink to a single skill invocation. Not concurrency-safe: exactly one
// Run call may be in flight per Loop at a time (spec §4.6's single
// cooperative driver discipline applies equally here).
type Loop struct {
	Handle     AgentHandle
	QA         QuestionAnswerer
	Escalator  Escalator
	Agent      Toucher        // optional
	Publisher  core.Publisher // optional
	WorkflowID core.WorkflowID
	TaskID     core.TaskID
	AgentID    core.AgentID
	Config     MonitorConfig
}

// Run sends command and polls until the agent completes, fails, the
// context is cancelled, or Config.Timeout elapses.
func (l *Loop) Run(ctx context.Context, command string) (Result, error) {
	ctx, span := tracer.Start(ctx, "skillloop.run")
	defer span.End()

	start := time.Now()
	tokensIn := estimateTokens(command)
	result := func(success bool, output string, answered int) Result {
		return Result{
			Success:           success,
			Output:            output,
			QuestionsAnswered: answered,
			Duration:          time.Since(start),
			TokensIn:          tokensIn,
			TokensOut:         estimateTokens(output),
		}
	}

	if err := l.Handle.Send(ctx, command); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send initial command failed")
		return result(false, "", 0), err
	}

	var lastSnapshot string
	questionsAnswered := 0

	for {
		select {
		case <-ctx.Done():
			return result(false, lastSnapshot, questionsAnswered), ctx.Err()
		case <-time.After(l.Config.PollInterval):
		}

		if time.Since(start) > l.Config.Timeout {
			err := core.ErrTimeout("skill interaction exceeded timeout")
			span.RecordError(err)
			span.SetStatus(codes.Error, "timeout")
			return result(false, lastSnapshot, questionsAnswered), err
		}

		snapshot, err := l.Handle.ReadPlain(ctx)
		if err != nil {
			span.RecordError(err)
			return result(false, lastSnapshot, questionsAnswered), err
		}
		out := classifier.Classify(snapshot, "")

		switch out.Kind {
		case classifier.KindQuestion:
			answered, err := l.answer(ctx, out.Text)
			if err != nil {
				span.RecordError(err)
				return result(false, snapshot, questionsAnswered), err
			}
			if err := l.Handle.Send(ctx, answered); err != nil {
				span.RecordError(err)
				return result(false, snapshot, questionsAnswered), err
			}
			questionsAnswered++
			l.touch()

		case classifier.KindCompleted:
			span.SetAttributes(attribute.Int("questions_answered", questionsAnswered))
			return result(true, snapshot, questionsAnswered), nil

		case classifier.KindError:
			err := core.ErrExecution(core.CodeAgentFailed, out.Text)
			span.RecordError(err)
			span.SetStatus(codes.Error, "agent reported error")
			return result(false, snapshot, questionsAnswered), err

		default: // KindText
			if snapshot != lastSnapshot {
				l.touch()
			}
		}
		lastSnapshot = snapshot
	}
}

// answer resolves a question to a string: either the AQA's autonomous
// answer, or an operator override after an EscalationRequested event when
// the AQA declines (spec §4.6 step 3). No pipelining: the send happens
// only after this returns, strictly after the question that triggered it.
func (l *Loop) answer(ctx context.Context, question string) (string, error) {
	if l.QA.NeedsEscalation(ctx, question) {
		l.publish(core.EventEscalationRequested, question)
		if l.Escalator == nil {
			return "", core.ErrState(core.CodeInvalidState, "question requires escalation but no escalator is configured")
		}
		return l.Escalator.AwaitOverride(ctx, question)
	}
	return l.QA.Answer(ctx, question)
}

func (l *Loop) touch() {
	if l.Agent != nil {
		l.Agent.Touch()
	}
}

func (l *Loop) publish(t core.EventType, question string) {
	if l.Publisher == nil {
		return
	}
	l.Publisher.Publish(core.Event{
		Type:       t,
		WorkflowID: l.WorkflowID,
		TaskID:     l.TaskID,
		AgentID:    l.AgentID,
		Question:   question,
	})
}
