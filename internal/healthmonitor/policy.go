package healthmonitor

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy/recovery.rego
var policySource string

const policyQuery = "data.zen.healthmonitor.result"

// policyEngine evaluates the embedded transient-pattern Rego policy. It is a
// declarative restatement of the literal stuck-pattern list, not an
// independent source of behavior — see policy/recovery.rego.
type policyEngine struct {
	query rego.PreparedEvalQuery
}

func loadPolicy(ctx context.Context) (*policyEngine, error) {
	prepared, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("recovery.rego", policySource),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile recovery policy: %w", err)
	}
	return &policyEngine{query: prepared}, nil
}

// isTransient reports whether text matches a known transient-failure
// pattern. ok is false if the policy produced no result, signaling the
// caller should fall back to the literal pattern list in isTransientLiteral.
func (p *policyEngine) isTransient(ctx context.Context, text string) (transient, ok bool) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"text": text}))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, false
	}
	value, valOK := rs[0].Expressions[0].Value.(map[string]interface{})
	if !valOK {
		return false, false
	}
	t, tOK := value["transient"].(bool)
	return t, tOK
}

// defaultStuckPatterns mirrors policy/recovery.rego's transient_patterns set
// and is the fallback used when the policy engine fails to load or evaluate.
var defaultStuckPatterns = []string{
	"rate limit", "429", "context length", "overloaded", "timeout", "quota exceeded",
}

func isTransientLiteral(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
