package core

import (
	"context"
	"fmt"
	"math"

	"liderforte/pkg/domain"
)

// Eligibility sub-score weights.
const (
	memberWeight    = 0.4
	leaderWeight    = 0.3
	stabilityWeight = 0.3
)

// EligibilityFacts is the input of ScoreEligibility.
type EligibilityFacts struct {
	MemberCount      int
	QualifiedLeaders int
	// Stability is the measured score, or nil when the cell has no history.
	Stability        *float64
	ActorCanInitiate bool
	HasActiveProcess bool
}

// Requirement is one row of the eligibility breakdown.
type Requirement struct {
	Required float64 `json:"required"`
	Current  float64 `json:"current"`
	Met      bool    `json:"met"`
}

// EligibilityRequirements lists the requirements in recommendation order.
type EligibilityRequirements struct {
	MemberCount      Requirement `json:"member_count"`
	QualifiedLeaders Requirement `json:"qualified_leaders"`
	UserPermission   Requirement `json:"user_permission"`
	NoActiveProcess  Requirement `json:"no_active_process"`
}

// EligibilitySummary is the result of an eligibility computation.
type EligibilitySummary struct {
	CellID                    string                  `json:"cell_id,omitempty"`
	Score                     int                     `json:"score"`
	Stability                 float64                 `json:"stability"`
	Requirements              EligibilityRequirements `json:"requirements"`
	Recommendations           []string                `json:"recommendations"`
	CanInitiateMultiplication bool                    `json:"can_initiate_multiplication"`
	Candidates                []Candidate             `json:"candidates,omitempty"`
	ActiveProcessID           string                  `json:"active_process_id,omitempty"`
}

// ScoreEligibility computes the eligibility score and breakdown. It is pure.
func ScoreEligibility(f EligibilityFacts, settings Settings) EligibilitySummary {
	minimum := settings.MinimumMembers
	if minimum <= 0 {
		minimum = 12
	}
	stability := settings.StabilityPlaceholder
	if f.Stability != nil {
		stability = *f.Stability
	}
	stability = clamp(stability, 0, 100)

	memberSub := math.Min(float64(f.MemberCount)/float64(minimum)*100, 100)
	leaderSub := 0.0
	if f.QualifiedLeaders >= 1 {
		leaderSub = 100
	}
	score := int(math.Round(memberWeight*memberSub + leaderWeight*leaderSub + stabilityWeight*stability))

	req := EligibilityRequirements{
		MemberCount:      Requirement{Required: float64(minimum), Current: float64(f.MemberCount), Met: f.MemberCount >= minimum},
		QualifiedLeaders: Requirement{Required: 1, Current: float64(f.QualifiedLeaders), Met: f.QualifiedLeaders >= 1},
		UserPermission:   Requirement{Required: 1, Current: boolToFloat(f.ActorCanInitiate), Met: f.ActorCanInitiate},
		NoActiveProcess:  Requirement{Required: 0, Current: boolToFloat(f.HasActiveProcess), Met: !f.HasActiveProcess},
	}

	recs := make([]string, 0, 4)
	if !req.MemberCount.Met {
		recs = append(recs, fmt.Sprintf("Grow the cell to at least %d active members (currently %d)", minimum, f.MemberCount))
	}
	if !req.QualifiedLeaders.Met {
		recs = append(recs, fmt.Sprintf("Develop a leadership-track member to a readiness score of at least %.0f", settings.LeadershipThreshold))
	}
	if !req.UserPermission.Met {
		recs = append(recs, "Only the cell leader, its supervisor or an organization administrator can start a multiplication")
	}
	if !req.NoActiveProcess.Met {
		recs = append(recs, "Finish or cancel the multiplication already in progress for this cell")
	}

	return EligibilitySummary{
		Score:           score,
		Stability:       stability,
		Requirements:    req,
		Recommendations: recs,
		CanInitiateMultiplication: req.MemberCount.Met && req.QualifiedLeaders.Met &&
			req.UserPermission.Met && req.NoActiveProcess.Met,
	}
}

// ComputeEligibility gathers the cell's facts and scores them for actorID.
func (s *Service) ComputeEligibility(ctx context.Context, actorID, cellID string) (summary EligibilitySummary, err error) {
	ctx, op := s.begin(ctx, "compute_eligibility", actorID)
	op.entityID = cellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "compute_eligibility", cellID)
	if err != nil {
		return EligibilitySummary{}, err
	}
	actor, err := s.actorFor(ctx, "compute_eligibility", cell.OrganizationID, actorID, domain.EntityCell, cellID)
	if err != nil {
		return EligibilitySummary{}, err
	}
	settings := s.settings.ForOrganization(cell.OrganizationID)
	asOf := s.factsAsOf(cell)

	var facts EligibilityFacts
	var candidates []Candidate
	var activeID string
	err = s.view(ctx, "compute_eligibility", func(v TransactionView) error {
		members := v.ListMembers(cell.ID)
		candidates = QualifyCandidates(leadershipPool(cell, members), settings.LeadershipThreshold, asOf, placementsByPerson(v, cell.OrganizationID))
		if p, ok := activeProcess(v, cell.ID); ok {
			activeID = p.ID
		}
		facts = EligibilityFacts{
			MemberCount:      len(activeMembers(members)),
			QualifiedLeaders: len(candidates),
			Stability:        measuredStability(cell),
			ActorCanInitiate: cell.Active && actor.Manages(cell),
			HasActiveProcess: activeID != "",
		}
		return nil
	})
	if err != nil {
		return EligibilitySummary{}, err
	}
	summary = ScoreEligibility(facts, settings)
	summary.CellID = cell.ID
	summary.Candidates = candidates
	summary.ActiveProcessID = activeID
	return summary, nil
}

func measuredStability(cell domain.Cell) *float64 {
	if !cell.Stats.HasHistory() {
		return nil
	}
	v := cell.Stats.StabilityScore
	return &v
}

func activeProcess(v TransactionView, cellID string) (domain.MultiplicationProcess, bool) {
	for _, p := range v.ListCellProcesses(cellID) {
		if !p.Status.Terminal() {
			return p, true
		}
	}
	return domain.MultiplicationProcess{}, false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
