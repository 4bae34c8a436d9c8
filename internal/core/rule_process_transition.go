package core

import (
	"context"
	"fmt"

	"liderforte/pkg/domain"
)

// ProcessTransitionRule blocks process status changes that skip or reverse
// the workflow, and any change to a terminal process.
func ProcessTransitionRule() domain.Rule {
	return processTransitionRule{}
}

type processTransitionRule struct{}

func (processTransitionRule) Name() string { return "process_transition" }

func (r processTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityProcess {
			continue
		}
		after, ok := change.After.(domain.MultiplicationProcess)
		if !ok {
			continue
		}
		if !after.Status.Valid() {
			res.Violations = append(res.Violations, r.violation(after.ID, fmt.Sprintf("process %s has unknown status %q", after.ID, after.Status)))
			continue
		}
		before, ok := change.Before.(domain.MultiplicationProcess)
		if !ok {
			if change.Action == domain.ActionCreate && after.Status != domain.ProcessDraft {
				res.Violations = append(res.Violations, r.violation(after.ID, fmt.Sprintf("process %s must start as draft, not %s", after.ID, after.Status)))
			}
			continue
		}
		if before.Status.Terminal() {
			res.Violations = append(res.Violations, r.violation(after.ID, fmt.Sprintf("process %s is %s and cannot change", after.ID, before.Status)))
			continue
		}
		if !before.Status.CanTransition(after.Status) {
			res.Violations = append(res.Violations, r.violation(after.ID, fmt.Sprintf("process %s cannot move from %s to %s", after.ID, before.Status, after.Status)))
		}
	}
	return res, nil
}

func (processTransitionRule) violation(id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "process_transition",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityProcess,
		EntityID: id,
	}
}
