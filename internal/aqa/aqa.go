package aqa

import (
	"context"
	"regexp"
	"strings"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// AQA answers clarification questions raised by a driven agent, shaping the
// answer to the question's apparent type and recording it in the workflow's
// ConversationContext (spec §4.4).
type AQA struct {
	convo     *core.ConversationContext
	generator AnswerGenerator
	policy    *PolicyEngine // nil if the embedded policy failed to load
}

// New builds an AQA over convo, using generator to produce raw answers.
// Policy loading is best-effort: a failure falls back to the literal
// keyword lists in core (NeedsEscalation, ConversationContext.Record),
// which remain the canonical behavior regardless.
func New(ctx context.Context, convo *core.ConversationContext, generator AnswerGenerator) *AQA {
	policy, err := loadPolicy(ctx)
	if err != nil {
		policy = nil
	}
	return &AQA{convo: convo, generator: generator, policy: policy}
}

// NeedsEscalation reports whether question is a matter of genuine personal
// preference that must be surfaced to an operator rather than answered
// autonomously (spec §4.4).
func (a *AQA) NeedsEscalation(ctx context.Context, question string) bool {
	if a.policy != nil {
		if result, ok, err := a.policy.Evaluate(ctx, question); err == nil && ok {
			return result.Escalate
		}
	}
	return core.NeedsEscalation(question)
}

// Answer generates, shapes, and records an answer to question. The caller
// (the skill interaction loop, C6) is responsible for calling
// NeedsEscalation first and not calling Answer on escalated questions.
func (a *AQA) Answer(ctx context.Context, question string) (string, error) {
	raw, err := a.generator.Generate(ctx, a.convo, question)
	if err != nil {
		return "", err
	}
	answer := shapeAnswer(question, raw)
	a.convo.Record(question, answer)
	return answer, nil
}

var (
	numberedOptionLine = regexp.MustCompile(`(?m)^\s*(\d+)\.\s`)
	digitToken         = regexp.MustCompile(`\d+`)
	yesWord            = regexp.MustCompile(`(?i)\byes\b|\by\b`)
	noWord             = regexp.MustCompile(`(?i)\bno\b|\bn\b`)
	tokenPunctuation   = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// shapeAnswer reduces a raw generator response to the concise form spec
// §4.4 requires for the question's apparent shape.
func shapeAnswer(question, raw string) string {
	if options := numberedOptionLine.FindAllStringSubmatch(question, -1); len(options) > 0 {
		return shapeNumericAnswer(options, raw)
	}
	if looksLikeYesNo(question) {
		return shapeYesNoAnswer(raw)
	}
	return shapeValueAnswer(question, raw)
}

// shapeNumericAnswer picks the option digit the raw response names; it
// falls back to the first listed option when the response names none of
// them, since some answer must be sent to keep the loop moving.
func shapeNumericAnswer(options [][]string, raw string) string {
	valid := make(map[string]bool, len(options))
	for _, m := range options {
		valid[m[1]] = true
	}
	for _, candidate := range digitToken.FindAllString(raw, -1) {
		if valid[candidate] {
			return candidate
		}
	}
	return options[0][1]
}

func looksLikeYesNo(question string) bool {
	lower := strings.ToLower(question)
	return strings.Contains(lower, "(y/n)") || strings.Contains(lower, "[y/n]") ||
		strings.HasPrefix(lower, "do you") || strings.HasPrefix(lower, "would you")
}

func shapeYesNoAnswer(raw string) string {
	if noWord.MatchString(raw) && !yesWord.MatchString(raw) {
		return "no"
	}
	return "yes"
}

// shapeValueAnswer reduces raw to a single snake_case or kebab-case token,
// inferring the separator style from the question's own punctuation.
func shapeValueAnswer(question, raw string) string {
	firstLine := raw
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		firstLine = raw[:idx]
	}
	token := strings.ToLower(strings.TrimSpace(firstLine))
	if fields := strings.Fields(token); len(fields) > 0 {
		token = strings.Join(fields, separatorFor(question))
	}
	token = tokenPunctuation.ReplaceAllString(token, "")
	if token == "" {
		token = "unspecified"
	}
	return token
}

func separatorFor(question string) string {
	if strings.Contains(question, "-") {
		return "-"
	}
	return "_"
}
