package tx

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Classify maps a failure to an outcome using the default category table and
// the caller-supplied override set. A nil failure always commits.
func Classify(failure error, rollbackFor []Kind) Outcome {
	return DefaultPolicy().Classify(failure, Definition{RollbackFor: rollbackFor})
}

// Policy classifies the failure a scope closes with into COMMIT or ROLLBACK.
//
// Precedence: Definition.RollbackFor, Definition.NoRollbackFor, rules, then the
// kind's category (faults roll back, expected failures commit).
type Policy struct {
	rules []*Rule
}

// DefaultPolicy returns a policy without rules.
func DefaultPolicy() *Policy {
	return &Policy{}
}

// NewPolicy returns a policy that additionally rolls back whenever one of
// rules matches.
func NewPolicy(rules ...*Rule) *Policy {
	return &Policy{rules: rules}
}

// Rules returns the configured rules.
func (p *Policy) Rules() []*Rule {
	return p.rules
}

// Classify evaluates failure once for the scope described by def.
func (p *Policy) Classify(failure error, def Definition) Outcome {
	kind, failed := KindOf(failure)
	if !failed {
		return OutcomeCommit
	}
	if containsKind(def.RollbackFor, kind) {
		return OutcomeRollback
	}
	if containsKind(def.NoRollbackFor, kind) {
		return OutcomeCommit
	}
	for _, rule := range p.rules {
		if rule.Matches(kind, failure) {
			return OutcomeRollback
		}
	}
	if kind.IsExpected() {
		return OutcomeCommit
	}
	return OutcomeRollback
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Rule is a compiled CEL expression forcing ROLLBACK when it evaluates to true.
// Available variables: kind, category ("fault" or "expected"), message.
type Rule struct {
	expr    string
	program cel.Program
}

var ruleEnv = mustRuleEnv()

func mustRuleEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("message", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("rollback rule environment: %v", err))
	}
	return env
}

// CompileRule compiles a rollback rule expression.
func CompileRule(expr string) (*Rule, error) {
	ast, issues := ruleEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rollback rule %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rollback rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := ruleEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program rollback rule %q: %w", expr, err)
	}
	return &Rule{expr: expr, program: program}, nil
}

// ParseRules compiles a ';'-separated list of rule expressions.
func ParseRules(list string) ([]*Rule, error) {
	var rules []*Rule
	for _, expr := range strings.Split(list, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		rule, err := CompileRule(expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// String returns the source expression.
func (r *Rule) String() string {
	return r.expr
}

// Matches evaluates the rule. Evaluation errors count as no match.
func (r *Rule) Matches(kind Kind, failure error) bool {
	message := ""
	if failure != nil {
		message = failure.Error()
	}
	out, _, err := r.program.Eval(map[string]any{
		"kind":     kind.Name(),
		"category": kind.Category().String(),
		"message":  message,
	})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}
