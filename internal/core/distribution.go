package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"liderforte/pkg/domain"
)

// SuggestedAssignment is one proposed placement.
type SuggestedAssignment struct {
	MemberID      string                `json:"member_id"`
	PersonID      string                `json:"person_id"`
	DisplayName   string                `json:"display_name"`
	Type          domain.AssignmentType `json:"assignment_type"`
	RoleInNewCell domain.CellRole       `json:"role_in_new_cell,omitempty"`
	PriorityScore float64               `json:"priority_score"`
	Reasoning     string                `json:"reasoning"`
}

// Suggestion is the transient result of the distribution suggester.
type Suggestion struct {
	ProcessID         string                `json:"process_id,omitempty"`
	SourceCellID      string                `json:"source_cell_id"`
	TemplateID        *string               `json:"template_id,omitempty"`
	NewLeader         *SuggestedAssignment  `json:"new_leader,omitempty"`
	Assignments       []SuggestedAssignment `json:"assignments"`
	TargetNewCellSize int                   `json:"target_new_cell_size"`
	Recommendations   []string              `json:"recommendations"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// Counts tallies assignments by type.
func (s Suggestion) Counts() map[domain.AssignmentType]int {
	out := make(map[domain.AssignmentType]int)
	for _, a := range s.Assignments {
		out[a.Type]++
	}
	return out
}

// DistributionParams parameterises SuggestDistributionPlan.
type DistributionParams struct {
	LeadershipThreshold float64
	MoveRatio           float64
	AsOf                time.Time
	Placements          map[string]int
}

// attachment weighs engagement against tenure, capped at two years.
func attachment(m domain.Member, asOf time.Time) float64 {
	tenure := math.Min(float64(wholeMonths(m.JoinedAt, asOf)), 24) / 24 * 100
	return round2(0.7*m.EngagementScore + 0.3*tenure)
}

// SuggestDistributionPlan partitions the active members of cell. It is pure.
func SuggestDistributionPlan(cell domain.Cell, members []domain.Member, p DistributionParams) Suggestion {
	active := activeMembers(members)
	sugg := Suggestion{
		SourceCellID:    cell.ID,
		Assignments:     make([]SuggestedAssignment, 0, len(active)),
		Recommendations: make([]string, 0),
		GeneratedAt:     p.AsOf,
	}
	if len(active) == 0 {
		sugg.Recommendations = append(sugg.Recommendations, "The cell has no active members to distribute")
		return sugg
	}

	candidates := QualifyCandidates(leadershipPool(cell, active), p.LeadershipThreshold, p.AsOf, p.Placements)
	var leader *Candidate
	if len(candidates) > 0 {
		leader = &candidates[0]
	}

	rest := make([]domain.Member, 0, len(active))
	for _, m := range active {
		switch {
		case m.PersonID == cell.LeaderID:
			sugg.Assignments = append(sugg.Assignments, SuggestedAssignment{
				MemberID:      m.ID,
				PersonID:      m.PersonID,
				DisplayName:   m.DisplayName,
				Type:          domain.AssignmentStaysSource,
				PriorityScore: 100,
				Reasoning:     "Current leader stays with the source cell",
			})
		case leader != nil && m.ID == leader.MemberID:
			a := SuggestedAssignment{
				MemberID:      m.ID,
				PersonID:      m.PersonID,
				DisplayName:   m.DisplayName,
				Type:          domain.AssignmentNewLeader,
				RoleInNewCell: domain.CellRoleLeader,
				PriorityScore: round2(leader.Score),
				Reasoning: fmt.Sprintf("Highest leadership readiness (%.0f) among %d qualified candidate(s), %d month(s) in the cell",
					leader.Score, len(candidates), leader.TenureMonths),
			}
			sugg.Assignments = append(sugg.Assignments, a)
			sugg.NewLeader = &a
		case m.EngagementScore == 0 && wholeMonths(m.JoinedAt, p.AsOf) < 1:
			sugg.Assignments = append(sugg.Assignments, SuggestedAssignment{
				MemberID:    m.ID,
				PersonID:    m.PersonID,
				DisplayName: m.DisplayName,
				Type:        domain.AssignmentUndecided,
				Reasoning:   "Joined recently with no engagement history",
			})
		default:
			rest = append(rest, m)
		}
	}

	ratio := p.MoveRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	sugg.TargetNewCellSize = int(math.Round(float64(len(active)) * ratio))
	moves := sugg.TargetNewCellSize
	if leader != nil {
		moves--
	}
	if moves < 0 {
		moves = 0
	}
	if moves > len(rest) {
		moves = len(rest)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		ai, aj := attachment(rest[i], p.AsOf), attachment(rest[j], p.AsOf)
		if ai != aj {
			return ai > aj
		}
		return rest[i].ID < rest[j].ID
	})
	stay := len(rest) - moves
	for i, m := range rest {
		score := attachment(m, p.AsOf)
		a := SuggestedAssignment{MemberID: m.ID, PersonID: m.PersonID, DisplayName: m.DisplayName}
		if i < stay {
			a.Type = domain.AssignmentStaysSource
			a.PriorityScore = score
			a.Reasoning = fmt.Sprintf("Strong attachment to the source cell (%.0f)", score)
		} else {
			a.Type = domain.AssignmentMovesNew
			a.RoleInNewCell = domain.CellRoleMember
			a.PriorityScore = round2(100 - score)
			a.Reasoning = fmt.Sprintf("Lower attachment (%.0f) balances the new cell", score)
		}
		sugg.Assignments = append(sugg.Assignments, a)
	}

	if leader == nil {
		sugg.Recommendations = append(sugg.Recommendations,
			fmt.Sprintf("No leadership-track member reaches %.0f; develop a new leader before proceeding", p.LeadershipThreshold))
	}
	if n := sugg.Counts()[domain.AssignmentUndecided]; n > 0 {
		sugg.Recommendations = append(sugg.Recommendations, fmt.Sprintf("Place %d undecided member(s) manually", n))
	}
	return sugg
}

// SuggestDistribution replaces the process's assignments with a fresh
// suggestion and moves it to member_selection.
func (s *Service) SuggestDistribution(ctx context.Context, actorID, processID string, templateID *string) (sugg Suggestion, err error) {
	ctx, op := s.begin(ctx, "suggest_distribution", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	proc, cell, err := s.findProcess(ctx, "suggest_distribution", processID)
	if err != nil {
		return Suggestion{}, err
	}
	actor, err := s.actorFor(ctx, "suggest_distribution", proc.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return Suggestion{}, err
	}
	if err := s.guardProcessEditor(actor, proc, cell, "suggest_distribution"); err != nil {
		return Suggestion{}, err
	}
	if proc.Status != domain.ProcessDraft && proc.Status != domain.ProcessMemberSelection {
		return Suggestion{}, domain.InvalidState("suggest_distribution", domain.EntityProcess, processID,
			fmt.Sprintf("cannot suggest a distribution while %s", proc.Status))
	}
	settings := s.settings.ForOrganization(proc.OrganizationID)

	err = s.run(ctx, "suggest_distribution", func(tx Transaction) error {
		v := tx.Snapshot()
		params := DistributionParams{
			LeadershipThreshold: settings.LeadershipThreshold,
			MoveRatio:           settings.MoveRatio,
			AsOf:                s.now(),
			Placements:          placementsByPerson(v, proc.OrganizationID),
		}
		if templateID != nil {
			tmpl, ok := v.FindTemplate(*templateID)
			if !ok || tmpl.OrganizationID != proc.OrganizationID {
				return domain.NotFound("suggest_distribution", domain.EntityTemplate, *templateID)
			}
			if tmpl.MoveRatio > 0 {
				params.MoveRatio = tmpl.MoveRatio
			}
			if tmpl.LeadershipThreshold != nil {
				params.LeadershipThreshold = *tmpl.LeadershipThreshold
			}
		}
		sugg = SuggestDistributionPlan(cell, v.ListMembers(cell.ID), params)
		sugg.ProcessID = proc.ID
		sugg.TemplateID = templateID

		if _, err := tx.DeleteProcessAssignments(proc.ID); err != nil {
			return err
		}
		for _, a := range sugg.Assignments {
			if _, err := tx.UpsertAssignment(domain.MemberAssignment{
				ProcessID:     proc.ID,
				MemberID:      a.MemberID,
				PersonID:      a.PersonID,
				Type:          a.Type,
				RoleInNewCell: a.RoleInNewCell,
				PriorityScore: a.PriorityScore,
				AutoSuggested: true,
				Reasoning:     a.Reasoning,
			}); err != nil {
				return err
			}
		}
		suggestedAt := params.AsOf
		_, err := tx.UpdateProcess(proc.ID, proc.Status, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessMemberSelection
			p.TemplateID = templateID
			p.SuggestedAt = &suggestedAt
			p.NewLeaderID = nil
			return nil
		})
		return err
	})
	if err != nil {
		return Suggestion{}, err
	}
	return sugg, nil
}
