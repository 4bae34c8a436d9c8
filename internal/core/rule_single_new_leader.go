package core

import (
	"context"
	"fmt"
	"sort"

	"liderforte/pkg/domain"
)

// SingleNewLeaderRule requires every process at plan_review or later to hold
// exactly one new_leader assignment that matches its recorded new leader.
func SingleNewLeaderRule() domain.Rule {
	return singleNewLeaderRule{}
}

type singleNewLeaderRule struct{}

func (singleNewLeaderRule) Name() string { return "single_new_leader" }

func (singleNewLeaderRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityProcess:
			if p, ok := change.After.(domain.MultiplicationProcess); ok {
				touched[p.ID] = struct{}{}
			}
		case domain.EntityAssignment:
			for _, payload := range []any{change.Before, change.After} {
				if a, ok := payload.(domain.MemberAssignment); ok {
					touched[a.ProcessID] = struct{}{}
				}
			}
		}
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := domain.Result{}
	for _, id := range ids {
		proc, ok := view.FindProcess(id)
		if !ok || !proc.Status.AtLeast(domain.ProcessPlanReview) {
			continue
		}
		if err := requireSingleLeader(view, proc); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "single_new_leader",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("process %s at %s: %v", proc.ID, proc.Status, err),
				Entity:   domain.EntityProcess,
				EntityID: proc.ID,
			})
		}
	}
	return res, nil
}
