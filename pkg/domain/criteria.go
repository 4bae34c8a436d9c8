package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// CriterionType tags the variant of a multiplication criterion.
type CriterionType string

// Supported criterion types.
const (
	CriterionMemberCount       CriterionType = "member_count"
	CriterionMeetingFrequency  CriterionType = "meeting_frequency"
	CriterionAverageAttendance CriterionType = "average_attendance"
	CriterionPotentialLeaders  CriterionType = "potential_leaders"
	CriterionCellAge           CriterionType = "cell_age_months"
	CriterionLeaderMaturity    CriterionType = "leader_maturity"
	CriterionGrowthRate        CriterionType = "growth_rate"
	CriterionStability         CriterionType = "stability_score"
)

// CriterionRule is the typed threshold carried by a criterion. The set of
// implementations is closed; evaluators switch over the concrete types.
type CriterionRule interface {
	Type() CriterionType
	Threshold() float64
	criterionRule()
}

// MemberCountRule requires a minimum number of active members.
type MemberCountRule struct{ MinMembers int }

// MeetingFrequencyRule requires a minimum number of meetings per month.
type MeetingFrequencyRule struct{ MeetingsPerMonth float64 }

// AverageAttendanceRule requires a minimum average attendance percentage.
type AverageAttendanceRule struct{ MinPercent float64 }

// PotentialLeadersRule requires a minimum count of qualified leadership candidates.
type PotentialLeadersRule struct{ MinCandidates int }

// CellAgeRule requires the cell to have existed for a number of months.
type CellAgeRule struct{ MinMonths int }

// LeaderMaturityRule requires the current leader to have led for a number of months.
type LeaderMaturityRule struct{ MinMonths int }

// GrowthRateRule requires a minimum 90-day growth percentage.
type GrowthRateRule struct{ MinPercent float64 }

// StabilityRule requires a minimum stability score.
type StabilityRule struct{ MinScore float64 }

func (MemberCountRule) Type() CriterionType       { return CriterionMemberCount }
func (MeetingFrequencyRule) Type() CriterionType  { return CriterionMeetingFrequency }
func (AverageAttendanceRule) Type() CriterionType { return CriterionAverageAttendance }
func (PotentialLeadersRule) Type() CriterionType  { return CriterionPotentialLeaders }
func (CellAgeRule) Type() CriterionType           { return CriterionCellAge }
func (LeaderMaturityRule) Type() CriterionType    { return CriterionLeaderMaturity }
func (GrowthRateRule) Type() CriterionType        { return CriterionGrowthRate }
func (StabilityRule) Type() CriterionType         { return CriterionStability }

func (r MemberCountRule) Threshold() float64       { return float64(r.MinMembers) }
func (r MeetingFrequencyRule) Threshold() float64  { return r.MeetingsPerMonth }
func (r AverageAttendanceRule) Threshold() float64 { return r.MinPercent }
func (r PotentialLeadersRule) Threshold() float64  { return float64(r.MinCandidates) }
func (r CellAgeRule) Threshold() float64           { return float64(r.MinMonths) }
func (r LeaderMaturityRule) Threshold() float64    { return float64(r.MinMonths) }
func (r GrowthRateRule) Threshold() float64        { return r.MinPercent }
func (r StabilityRule) Threshold() float64         { return r.MinScore }

func (MemberCountRule) criterionRule()       {}
func (MeetingFrequencyRule) criterionRule()  {}
func (AverageAttendanceRule) criterionRule() {}
func (PotentialLeadersRule) criterionRule()  {}
func (CellAgeRule) criterionRule()           {}
func (LeaderMaturityRule) criterionRule()    {}
func (GrowthRateRule) criterionRule()        {}
func (StabilityRule) criterionRule()         {}

// NewCriterionRule builds the variant for t. Count-like thresholds are rounded up.
func NewCriterionRule(t CriterionType, threshold float64) (CriterionRule, error) {
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, Validation("new_criterion_rule", EntityCriterion, "", fmt.Sprintf("invalid threshold %v", threshold))
	}
	whole := int(math.Ceil(threshold))
	switch t {
	case CriterionMemberCount:
		return MemberCountRule{MinMembers: whole}, nil
	case CriterionMeetingFrequency:
		return MeetingFrequencyRule{MeetingsPerMonth: threshold}, nil
	case CriterionAverageAttendance:
		return AverageAttendanceRule{MinPercent: threshold}, nil
	case CriterionPotentialLeaders:
		return PotentialLeadersRule{MinCandidates: whole}, nil
	case CriterionCellAge:
		return CellAgeRule{MinMonths: whole}, nil
	case CriterionLeaderMaturity:
		return LeaderMaturityRule{MinMonths: whole}, nil
	case CriterionGrowthRate:
		return GrowthRateRule{MinPercent: threshold}, nil
	case CriterionStability:
		return StabilityRule{MinScore: threshold}, nil
	default:
		return nil, Validation("new_criterion_rule", EntityCriterion, "", fmt.Sprintf("unknown criterion type %q", t))
	}
}

// MultiplicationCriterion is an organization-scoped readiness criterion.
type MultiplicationCriterion struct {
	Base
	OrganizationID string
	Name           string
	Rule           CriterionRule
	Weight         float64
	Required       bool
	Active         bool
}

// Type returns the criterion's variant tag.
func (c MultiplicationCriterion) Type() CriterionType {
	if c.Rule == nil {
		return ""
	}
	return c.Rule.Type()
}

// Validate checks structural invariants of the criterion.
func (c MultiplicationCriterion) Validate() error {
	switch {
	case strings.TrimSpace(c.OrganizationID) == "":
		return Validation("validate_criterion", EntityCriterion, c.ID, "organization id required")
	case strings.TrimSpace(c.Name) == "":
		return Validation("validate_criterion", EntityCriterion, c.ID, "name required")
	case c.Rule == nil:
		return Validation("validate_criterion", EntityCriterion, c.ID, "rule required")
	case !(c.Weight > 0 && c.Weight <= 1):
		return Validation("validate_criterion", EntityCriterion, c.ID, fmt.Sprintf("weight %v outside (0,1]", c.Weight))
	}
	return nil
}

type criterionJSON struct {
	Base
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Type           CriterionType `json:"criterion_type"`
	Threshold      float64       `json:"threshold"`
	Weight         float64       `json:"weight"`
	Required       bool          `json:"required"`
	Active         bool          `json:"active"`
}

// MarshalJSON flattens the rule into criterion_type and threshold.
func (c MultiplicationCriterion) MarshalJSON() ([]byte, error) {
	out := criterionJSON{
		Base:           c.Base,
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Weight:         c.Weight,
		Required:       c.Required,
		Active:         c.Active,
	}
	if c.Rule != nil {
		out.Type = c.Rule.Type()
		out.Threshold = c.Rule.Threshold()
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the typed rule from criterion_type and threshold.
func (c *MultiplicationCriterion) UnmarshalJSON(data []byte) error {
	var in criterionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rule, err := NewCriterionRule(in.Type, in.Threshold)
	if err != nil {
		return err
	}
	*c = MultiplicationCriterion{
		Base:           in.Base,
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Rule:           rule,
		Weight:         in.Weight,
		Required:       in.Required,
		Active:         in.Active,
	}
	return nil
}
