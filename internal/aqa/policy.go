package aqa

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed policy/aqa.rego
var policySource string

const policyQuery = "data.zen.aqa.result"

// PolicyEngine evaluates the embedded escalation/category Rego policy. It is
// a declarative restatement of core.NeedsEscalation and the package-level
// classifyDecision keyword lists, not an independent source of behavior —
// see policy/aqa.rego.
type PolicyEngine struct {
	query rego.PreparedEvalQuery
}

// loadPolicy compiles the embedded policy. Compile failures are only
// possible if policy/aqa.rego itself is malformed (it is static, embedded at
// build time), but callers must still treat load as fallible per spec: on
// error, AQA falls back to the literal core keyword lists unconditionally.
func loadPolicy(ctx context.Context) (*PolicyEngine, error) {
	prepared, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("aqa.rego", policySource),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile aqa policy: %w", err)
	}
	return &PolicyEngine{query: prepared}, nil
}

// policyResult is the decoded shape of the policy's `result` rule.
type policyResult struct {
	Escalate   bool
	Categories []string
}

// Evaluate runs the policy against question. ok is false if evaluation
// produced no result set, signaling the caller should use the literal
// keyword fallback instead.
func (p *PolicyEngine) Evaluate(ctx context.Context, question string) (policyResult, bool, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"question": question}))
	if err != nil {
		return policyResult{}, false, fmt.Errorf("evaluate aqa policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return policyResult{}, false, nil
	}
	value, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return policyResult{}, false, nil
	}
	out := policyResult{}
	if escalate, ok := value["escalate"].(bool); ok {
		out.Escalate = escalate
	}
	if rawCats, ok := value["categories"].([]interface{}); ok {
		for _, c := range rawCats {
			if s, ok := c.(string); ok {
				out.Categories = append(out.Categories, s)
			}
		}
	}
	return out, true, nil
}
