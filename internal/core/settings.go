package core

import "time"

// Settings parameterises scoring, readiness and distribution.
type Settings struct {
	// LeadershipThreshold is the minimum engagement score for a leadership candidate.
	LeadershipThreshold float64
	// MinimumMembers is the member count at which the member sub-score saturates.
	MinimumMembers int
	// StabilityPlaceholder substitutes the stability score for cells without history.
	StabilityPlaceholder float64
	// PreparingMargin is the share of a required threshold that still counts as "close".
	PreparingMargin float64
	// OverdueAfter delays overdue past the projected-ready date. Zero means
	// overdue as soon as the projected date is reached.
	OverdueAfter time.Duration
	// ProjectionHorizonMonths estimates criteria without a growth model.
	ProjectionHorizonMonths int
	// MoveRatio is the target share of members in the new cell.
	MoveRatio float64

	Organizations map[string]OrgSettings
}

// OrgSettings overrides Settings for one organization. Nil fields inherit.
type OrgSettings struct {
	LeadershipThreshold  *float64
	StabilityPlaceholder *float64
	PreparingMargin      *float64
	MoveRatio            *float64
	OverdueAfter         *time.Duration
}

// DefaultSettings returns the built-in scoring configuration.
func DefaultSettings() Settings {
	return Settings{
		LeadershipThreshold:     60,
		MinimumMembers:          12,
		StabilityPlaceholder:    80,
		PreparingMargin:         0.8,
		ProjectionHorizonMonths: 3,
		MoveRatio:               0.5,
	}
}

// ForOrganization resolves the effective settings for organizationID.
func (s Settings) ForOrganization(organizationID string) Settings {
	out := s
	out.Organizations = nil
	o, ok := s.Organizations[organizationID]
	if !ok {
		return out
	}
	if o.LeadershipThreshold != nil {
		out.LeadershipThreshold = *o.LeadershipThreshold
	}
	if o.StabilityPlaceholder != nil {
		out.StabilityPlaceholder = *o.StabilityPlaceholder
	}
	if o.PreparingMargin != nil {
		out.PreparingMargin = *o.PreparingMargin
	}
	if o.MoveRatio != nil {
		out.MoveRatio = *o.MoveRatio
	}
	if o.OverdueAfter != nil {
		out.OverdueAfter = *o.OverdueAfter
	}
	return out
}
