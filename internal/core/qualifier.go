package core

import (
	"sort"
	"time"

	"liderforte/pkg/domain"
)

// Candidate is a member qualified to lead a new cell.
type Candidate struct {
	MemberID        string  `json:"member_id"`
	PersonID        string  `json:"person_id"`
	DisplayName     string  `json:"display_name"`
	Score           float64 `json:"score"`
	TenureMonths    int     `json:"tenure_months"`
	PriorPlacements int     `json:"prior_placements"`
}

// QualifyCandidates keeps members scoring at least threshold, annotated with
// whole-month tenure at asOf and prior successful placements keyed by person.
// The result is ordered by score, then tenure, then member id.
func QualifyCandidates(members []domain.Member, threshold float64, asOf time.Time, placements map[string]int) []Candidate {
	out := make([]Candidate, 0, len(members))
	for _, m := range members {
		if m.EngagementScore < threshold {
			continue
		}
		out = append(out, Candidate{
			MemberID:        m.ID,
			PersonID:        m.PersonID,
			DisplayName:     m.DisplayName,
			Score:           m.EngagementScore,
			TenureMonths:    wholeMonths(m.JoinedAt, asOf),
			PriorPlacements: placements[m.PersonID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].TenureMonths != out[j].TenureMonths {
			return out[i].TenureMonths > out[j].TenureMonths
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out
}

// leadershipPool returns active leadership-track members other than the
// cell's current leader.
func leadershipPool(cell domain.Cell, members []domain.Member) []domain.Member {
	out := make([]domain.Member, 0)
	for _, m := range members {
		if m.Active && m.LeadershipTrack && m.PersonID != cell.LeaderID {
			out = append(out, m)
		}
	}
	return out
}

func activeMembers(members []domain.Member) []domain.Member {
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// placementsByPerson counts completed processes per new leader.
func placementsByPerson(view TransactionView, organizationID string) map[string]int {
	out := make(map[string]int)
	for _, p := range view.ListProcesses(organizationID) {
		if p.Status == domain.ProcessCompleted && p.NewLeaderID != nil {
			out[*p.NewLeaderID]++
		}
	}
	return out
}

// wholeMonths returns the number of complete calendar months from start to end.
func wholeMonths(start, end time.Time) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	start, end = start.UTC(), end.UTC()
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if start.AddDate(0, months, 0).After(end) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
