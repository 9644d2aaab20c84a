package skillloop_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
	"github.com/TheHiddenLayer/zen/internal/testutil"
)

// fakeHandle feeds a scripted sequence of ReadPlain snapshots, one per
// poll, and records every Send call.
type fakeHandle struct {
	mu        sync.Mutex
	snapshots []string
	idx       int
	sent      []string
}

func (h *fakeHandle) Send(_ context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, text)
	return nil
}

func (h *fakeHandle) ReadPlain(_ context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.idx >= len(h.snapshots) {
		return h.snapshots[len(h.snapshots)-1], nil
	}
	s := h.snapshots[h.idx]
	h.idx++
	return s, nil
}

func (h *fakeHandle) Sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.sent))
	copy(out, h.sent)
	return out
}

type scriptedQA struct {
	escalate bool
	answer   string
}

func (q scriptedQA) NeedsEscalation(_ context.Context, _ string) bool { return q.escalate }
func (q scriptedQA) Answer(_ context.Context, _ string) (string, error) {
	return q.answer, nil
}

type scriptedEscalator struct{ answer string }

func (e scriptedEscalator) AwaitOverride(_ context.Context, _ string) (string, error) {
	return e.answer, nil
}

type fakeToucher struct{ touched int }

func (f *fakeToucher) Touch() { f.touched++ }

type capturePublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *capturePublisher) Publish(e core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func cfg() skillloop.MonitorConfig {
	return skillloop.MonitorConfig{PollInterval: time.Millisecond, Timeout: time.Second}
}

func TestLoop_Run_CompletesOnCompletedClassification(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{"working...\n", "All tests pass\n"}}
	loop := &skillloop.Loop{Handle: handle, QA: scriptedQA{}, Config: cfg()}

	result, err := loop.Run(context.Background(), "run the tests")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, result.Success, "expected success")
	testutil.AssertEqual(t, handle.Sent()[0], "run the tests")
}

func TestLoop_Run_AnswersQuestionThenCompletes(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{
		"Which database should I use?",
		"Task completed\n",
	}}
	toucher := &fakeToucher{}
	loop := &skillloop.Loop{
		Handle: handle,
		QA:     scriptedQA{answer: "postgres"},
		Agent:  toucher,
		Config: cfg(),
	}

	result, err := loop.Run(context.Background(), "start")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, result.Success, "expected success")
	testutil.AssertEqual(t, result.QuestionsAnswered, 1)
	sent := handle.Sent()
	testutil.AssertLen(t, sent, 2)
	testutil.AssertEqual(t, sent[1], "postgres")
	testutil.AssertTrue(t, toucher.touched > 0, "expected activity to be touched")
}

func TestLoop_Run_EscalatesInsteadOfAnswering(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{
		"Which approach do you prefer for caching?",
		"Task completed\n",
	}}
	pub := &capturePublisher{}
	loop := &skillloop.Loop{
		Handle:    handle,
		QA:        scriptedQA{escalate: true},
		Escalator: scriptedEscalator{answer: "use redis"},
		Publisher: pub,
		Config:    cfg(),
	}

	result, err := loop.Run(context.Background(), "start")
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, result.Success, "expected success")
	testutil.AssertEqual(t, handle.Sent()[1], "use redis")
	testutil.AssertLen(t, pub.events, 1)
	testutil.AssertEqual(t, pub.events[0].Type, core.EventEscalationRequested)
}

func TestLoop_Run_NoEscalatorConfiguredIsAnError(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{"Which approach do you prefer?"}}
	loop := &skillloop.Loop{Handle: handle, QA: scriptedQA{escalate: true}, Config: cfg()}

	_, err := loop.Run(context.Background(), "start")
	testutil.AssertError(t, err)
}

func TestLoop_Run_ExitsOnError(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{"building...\n", "Error: build failed\n"}}
	loop := &skillloop.Loop{Handle: handle, QA: scriptedQA{}, Config: cfg()}

	_, err := loop.Run(context.Background(), "start")
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatExecution), "expected execution-category error")
}

func TestLoop_Run_TimesOut(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{"still working...\n"}}
	loop := &skillloop.Loop{
		Handle: handle,
		QA:     scriptedQA{},
		Config: skillloop.MonitorConfig{PollInterval: time.Millisecond, Timeout: 5 * time.Millisecond},
	}

	_, err := loop.Run(context.Background(), "start")
	testutil.AssertError(t, err)
	testutil.AssertTrue(t, core.IsCategory(err, core.ErrCatTimeout), "expected timeout-category error")
}

func TestLoop_Run_CancellationExitsPromptly(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{"still working...\n"}}
	loop := &skillloop.Loop{Handle: handle, QA: scriptedQA{}, Config: cfg()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Run(ctx, "start")
	testutil.AssertError(t, err)
}

func TestLoop_Run_NoPipelining_AnswersSentInOrder(t *testing.T) {
	handle := &fakeHandle{snapshots: []string{
		"What should we name it?",
		"Which database should I use?",
		"done.\n",
	}}
	var calls []string
	qa := recordingQA{onAnswer: func(q string) { calls = append(calls, q) }, answer: "ok"}
	loop := &skillloop.Loop{Handle: handle, QA: qa, Config: cfg()}

	result, err := loop.Run(context.Background(), "start")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.QuestionsAnswered, 2)
	testutil.AssertEqual(t, calls[0], "What should we name it?")
	testutil.AssertEqual(t, calls[1], "Which database should I use?")
}

type recordingQA struct {
	onAnswer func(string)
	answer   string
}

func (q recordingQA) NeedsEscalation(_ context.Context, _ string) bool { return false }
func (q recordingQA) Answer(_ context.Context, question string) (string, error) {
	q.onAnswer(question)
	return q.answer, nil
}
