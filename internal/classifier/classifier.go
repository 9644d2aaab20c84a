// Package classifier turns a captured agent pane buffer into one of four
// outcomes the skill interaction loop (C6) acts on: the agent produced plain
// text, asked a question, reported completion, or failed. Classification is
// a pure function of the buffer text — no state, no I/O — so it is
// deterministic and idempotent on identical input, the same quality the
// teacher's output-quality heuristics (`service/workflow/output_quality.go`)
// hold to for its own text-shape checks.
package classifier

import (
	"regexp"
	"strings"
)

// Kind is the classified outcome of one pane snapshot.
type Kind int

const (
	// KindText is ordinary progress output; the loop keeps waiting.
	KindText Kind = iota
	// KindQuestion means the agent is blocked on operator input.
	KindQuestion
	// KindCompleted means the agent signaled it finished its work.
	KindCompleted
	// KindError means the agent reported a failure.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindQuestion:
		return "question"
	case KindCompleted:
		return "completed"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Output is the classifier's verdict. Text carries the triggering line for
// KindQuestion and KindError; it is empty for KindText and KindCompleted.
type Output struct {
	Kind Kind
	Text string
}

// tailLines is how many trailing lines the Completed check scans (spec
// §4.3: "the last ~32 lines").
const tailLines = 32

var (
	errorLinePattern = regexp.MustCompile(`(?i)(error:|failed:|fatal:|panic:|traceback)`)

	numberedOptionPattern = regexp.MustCompile(`^\s*\d+\.\s`)

	yesNoPattern = regexp.MustCompile(`(?i)\((y/n)\)|\[y/n\]`)

	questionLeadWords = []string{
		"enter", "provide", "specify", "please", "do you", "would you", "which", "what", "how should",
	}

	completionMarkers = []string{
		"task completed", "all tests pass", "done.", "✓",
	}
)

// Classify applies the spec's ordered classification rules to text, the raw
// plain-text pane buffer. completionMarker, when non-empty, is an
// additional skill-specific completion phrase checked alongside the
// built-in markers.
func Classify(text, completionMarker string) Output {
	lines := strings.Split(text, "\n")

	lastNonEmpty, lastNonEmptyIdx := lastNonEmptyLine(lines)
	if lastNonEmpty == "" {
		return Output{Kind: KindText}
	}

	if errorLinePattern.MatchString(lastNonEmpty) {
		return Output{Kind: KindError, Text: lastNonEmpty}
	}

	if isCompleted(lines, completionMarker) {
		return Output{Kind: KindCompleted}
	}

	if isQuestion(lines, lastNonEmpty, lastNonEmptyIdx) {
		return Output{Kind: KindQuestion, Text: lastNonEmpty}
	}

	return Output{Kind: KindText}
}

// lastNonEmptyLine returns the last non-blank line (trimmed) and its index
// in lines, or ("", -1) if every line is blank.
func lastNonEmptyLine(lines []string) (string, int) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed != "" {
			return trimmed, i
		}
	}
	return "", -1
}

func isCompleted(lines []string, completionMarker string) bool {
	start := 0
	if len(lines) > tailLines {
		start = len(lines) - tailLines
	}
	tail := strings.ToLower(strings.Join(lines[start:], "\n"))

	for _, marker := range completionMarkers {
		if strings.Contains(tail, marker) {
			return true
		}
	}
	if completionMarker != "" && strings.Contains(tail, strings.ToLower(completionMarker)) {
		return true
	}
	return false
}

// isQuestion applies the four question-detection rules against the tail of
// the buffer. The numbered-options rule additionally requires at least two
// numbered lines within the tail, not just the last line.
func isQuestion(lines []string, lastNonEmpty string, lastIdx int) bool {
	if strings.HasSuffix(lastNonEmpty, "?") {
		return true
	}

	if numberedOptionPattern.MatchString(lastNonEmpty) && countNumberedTail(lines, lastIdx) >= 2 {
		return true
	}

	if yesNoPattern.MatchString(lastNonEmpty) {
		return true
	}

	lower := strings.ToLower(lastNonEmpty)
	for _, lead := range questionLeadWords {
		if strings.HasPrefix(lower, lead) {
			return true
		}
	}

	return false
}

// countNumberedTail counts how many of the trailing tailLines lines up to
// and including lastIdx match the numbered-option pattern.
func countNumberedTail(lines []string, lastIdx int) int {
	start := 0
	if lastIdx-tailLines+1 > 0 {
		start = lastIdx - tailLines + 1
	}
	count := 0
	for i := start; i <= lastIdx; i++ {
		if numberedOptionPattern.MatchString(strings.TrimSpace(lines[i])) {
			count++
		}
	}
	return count
}
