package domain

import (
	"context"
	"fmt"
)

// RuleView is the read-only state a rule inspects: the transaction's
// pending state, including its own writes.
type RuleView = TransactionView

// Rule checks an invariant over the changes of one transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine runs every registered rule at commit time.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with no rules.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends rules; they run in registration order.
func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns the registered rule names in registration order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

// Evaluate merges the results of all rules. A rule error aborts the
// evaluation; a cancelled context is reported as a dependency failure.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, Unavailable("evaluate_rules", err)
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
