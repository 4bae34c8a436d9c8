package core

import (
	"context"
	"fmt"

	"liderforte/pkg/domain"
)

// ActiveMembershipRule allows at most one active membership per cell and person.
func ActiveMembershipRule() domain.Rule {
	return activeMembershipRule{}
}

type activeMembershipRule struct{}

func (activeMembershipRule) Name() string { return "active_membership_unique" }

func (activeMembershipRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[[2]string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityMember {
			continue
		}
		m, ok := change.After.(domain.Member)
		if !ok || !m.Active {
			continue
		}
		key := [2]string{m.CellID, m.PersonID}
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}
		count := 0
		for _, other := range view.ListMembers(m.CellID) {
			if other.Active && other.PersonID == m.PersonID {
				count++
			}
		}
		if count > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "active_membership_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("person %s has %d active memberships in cell %s", m.PersonID, count, m.CellID),
				Entity:   domain.EntityMember,
				EntityID: m.ID,
			})
		}
	}
	return res, nil
}

// SingleActiveProcessRule allows at most one non-terminal process per cell.
func SingleActiveProcessRule() domain.Rule {
	return singleActiveProcessRule{}
}

type singleActiveProcessRule struct{}

func (singleActiveProcessRule) Name() string { return "single_active_process" }

func (singleActiveProcessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityProcess {
			continue
		}
		p, ok := change.After.(domain.MultiplicationProcess)
		if !ok || p.Status.Terminal() {
			continue
		}
		if _, done := seen[p.SourceCellID]; done {
			continue
		}
		seen[p.SourceCellID] = struct{}{}
		var open []string
		for _, other := range view.ListCellProcesses(p.SourceCellID) {
			if !other.Status.Terminal() {
				open = append(open, other.ID)
			}
		}
		if len(open) > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "single_active_process",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cell %s has %d active multiplication processes %v", p.SourceCellID, len(open), open),
				Entity:   domain.EntityProcess,
				EntityID: p.ID,
			})
		}
	}
	return res, nil
}
