package aqa_test

import (
	"context"
	"testing"

	"github.com/TheHiddenLayer/zen/internal/aqa"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/testutil"
)

func newAQA(t *testing.T, scripted string) (*aqa.AQA, *core.ConversationContext) {
	t.Helper()
	convo := core.NewConversationContext("build a login form")
	a := aqa.New(context.Background(), convo, aqa.ScriptedAnswerGenerator{Answer: scripted})
	return a, convo
}

func TestAQA_Answer_NumericOption_PicksNamedOption(t *testing.T) {
	a, convo := newAQA(t, "I'd go with option 2")
	question := "Which database?\n  1. PostgreSQL\n  2. MySQL\n  3. SQLite\n"

	answer, err := a.Answer(context.Background(), question)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, answer, "2")
	testutil.AssertEqual(t, convo.Decisions[core.DecisionDatabase], "2")
}

func TestAQA_Answer_NumericOption_DeterministicDigit(t *testing.T) {
	a, _ := newAQA(t, "1")
	question := "Which database?\n  1. PostgreSQL\n  2. MySQL\n  3. SQLite\n"

	answer, err := a.Answer(context.Background(), question)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, answer, "1")
}

func TestAQA_Answer_NumericOption_FallsBackToFirstOption(t *testing.T) {
	a, _ := newAQA(t, "I'm not sure, anything works")
	question := "Which database?\n  1. PostgreSQL\n  2. MySQL\n"

	answer, err := a.Answer(context.Background(), question)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, answer, "1")
}

func TestAQA_Answer_YesNo(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"yes, go ahead", "yes"},
		{"no, don't overwrite it", "no"},
		{"sure", "yes"},
	}
	for _, c := range cases {
		a, _ := newAQA(t, c.raw)
		answer, err := a.Answer(context.Background(), "Overwrite the file (y/n)")
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, answer, c.want)
	}
}

func TestAQA_Answer_Value_SingleToken(t *testing.T) {
	a, convo := newAQA(t, "Call it auth_service")
	answer, err := a.Answer(context.Background(), "What should we name the module?")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, answer, "call_it_auth_service")
	testutil.AssertEqual(t, convo.Decisions[core.DecisionNaming], answer)
}

func TestAQA_Answer_Value_KebabInferredFromQuestion(t *testing.T) {
	a, _ := newAQA(t, "use kebab case")
	answer, err := a.Answer(context.Background(), "Should the branch-name use kebab-case?")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, answer, "use-kebab-case")
}

func TestAQA_Answer_RecordsHistory(t *testing.T) {
	a, convo := newAQA(t, "sqlite")
	question := "What database should we use?"
	_, err := a.Answer(context.Background(), question)
	testutil.AssertNoError(t, err)
	testutil.AssertLen(t, convo.History, 1)
	testutil.AssertEqual(t, convo.History[0].Question, question)
}

func TestAQA_NeedsEscalation_True(t *testing.T) {
	a, _ := newAQA(t, "")
	testutil.AssertTrue(t, a.NeedsEscalation(context.Background(), "Which approach do you prefer for caching?"), "expected escalation")
}

func TestAQA_NeedsEscalation_False(t *testing.T) {
	a, _ := newAQA(t, "")
	testutil.AssertFalse(t, a.NeedsEscalation(context.Background(), "What database should we use?"), "did not expect escalation")
}

func TestAQA_NeedsEscalation_MatchesLiteralFallback(t *testing.T) {
	questions := []string{
		"Which approach do you prefer: REST or gRPC?",
		"What style do you want for logging?",
		"This is personal preference, pick one",
		"There are multiple valid ways to do this, which one?",
		"What should we call the service?",
		"Which database should be used?",
	}
	a, _ := newAQA(t, "")
	for _, q := range questions {
		testutil.AssertEqual(t, a.NeedsEscalation(context.Background(), q), core.NeedsEscalation(q))
	}
}
