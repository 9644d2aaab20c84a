package core

import "strings"

// DecisionCategory buckets a recorded decision by the kind of choice it
// represents, inferred from keywords in the question that produced it.
type DecisionCategory string

const (
	DecisionNaming       DecisionCategory = "naming"
	DecisionDatabase     DecisionCategory = "database"
	DecisionTechnology   DecisionCategory = "technology"
	DecisionArchitecture DecisionCategory = "architecture"
)

// QAPair is one answered clarification question.
type QAPair struct {
	Question string
	Answer   string
}

// ConversationContext accumulates, for a single workflow, every
// clarification question answered so far and the decisions extracted from
// them. It is in-memory only — held by the orchestrator for the lifetime of
// the workflow's run, never persisted by C1.
type ConversationContext struct {
	Prompt    string
	History   []QAPair
	Decisions map[DecisionCategory]string
}

// NewConversationContext seeds a context with the workflow's original prompt.
func NewConversationContext(prompt string) *ConversationContext {
	return &ConversationContext{
		Prompt:    prompt,
		Decisions: make(map[DecisionCategory]string),
	}
}

// Record appends a question/answer pair and updates Decisions via keyword
// heuristics on the question text.
func (c *ConversationContext) Record(question, answer string) {
	c.History = append(c.History, QAPair{Question: question, Answer: answer})
	for _, cat := range classifyDecision(question) {
		c.Decisions[cat] = answer
	}
}

func classifyDecision(question string) []DecisionCategory {
	q := strings.ToLower(question)
	var cats []DecisionCategory
	if containsAny(q, "name", "naming", "call it", "call the") {
		cats = append(cats, DecisionNaming)
	}
	if containsAny(q, "database", "db") {
		cats = append(cats, DecisionDatabase)
	}
	if containsAny(q, "framework", "library", "tool", "technology") {
		cats = append(cats, DecisionTechnology)
	}
	if containsAny(q, "pattern", "architecture", "approach", "structure", "design") {
		cats = append(cats, DecisionArchitecture)
	}
	return cats
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// escalationPhrases trigger needs_escalation: questions that are genuinely
// matters of personal preference, not facts the original prompt determines.
var escalationPhrases = []string{
	"which approach do you prefer",
	"what style do you want",
	"personal preference",
	"there are multiple valid",
}

// NeedsEscalation reports whether q should be surfaced to a human operator
// instead of answered autonomously.
func NeedsEscalation(question string) bool {
	q := strings.ToLower(question)
	return containsAny(q, escalationPhrases...)
}
