package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"liderforte/pkg/domain"
)

// AlertType classifies a derived readiness alert.
type AlertType string

// Alert types in precedence order.
const (
	AlertReadyForSplit AlertType = "ready_for_split"
	AlertMissingLeader AlertType = "missing_leader"
	AlertSlowGrowth    AlertType = "slow_growth"
	AlertLowAttendance AlertType = "low_attendance"
)

var alertPriority = map[AlertType]int{
	AlertReadyForSplit: 1,
	AlertMissingLeader: 2,
	AlertSlowGrowth:    3,
	AlertLowAttendance: 4,
}

// Priority returns the numeric priority, 1 being the most urgent.
func (t AlertType) Priority() int { return alertPriority[t] }

// Alert is derived on demand from a readiness snapshot.
type Alert struct {
	Type            AlertType              `json:"type"`
	Priority        int                    `json:"priority"`
	CellID          string                 `json:"cell_id"`
	CellName        string                 `json:"cell_name"`
	OrganizationID  string                 `json:"organization_id"`
	ReadinessScore  float64                `json:"readiness_score"`
	ReadinessStatus domain.ReadinessStatus `json:"readiness_status"`
	Message         string                 `json:"message"`
	EvaluatedAt     time.Time              `json:"evaluated_at"`
}

// AlertFilter narrows ListAlerts. Zero values disable a filter.
type AlertFilter struct {
	Types       []AlertType
	MaxPriority int
	Limit       int
}

// AlertSummary counts alerts before the limit is applied.
type AlertSummary struct {
	Total      int               `json:"total"`
	ByPriority map[int]int       `json:"by_priority"`
	ByType     map[AlertType]int `json:"by_type"`
}

// AlertReport is the result of ListAlerts.
type AlertReport struct {
	Alerts  []Alert      `json:"alerts"`
	Summary AlertSummary `json:"summary"`
}

// ClassifyAlert derives at most one alert type from a snapshot.
func ClassifyAlert(snap domain.ReadinessSnapshot) (AlertType, bool) {
	unmet := func(types ...domain.CriterionType) bool {
		for _, t := range types {
			if r, ok := snap.Result(t); ok && !r.Met {
				return true
			}
		}
		return false
	}
	switch {
	case snap.Status.ReadyForSplit():
		return AlertReadyForSplit, true
	case unmet(domain.CriterionPotentialLeaders):
		return AlertMissingLeader, true
	case unmet(domain.CriterionGrowthRate, domain.CriterionMemberCount):
		return AlertSlowGrowth, true
	case unmet(domain.CriterionAverageAttendance, domain.CriterionMeetingFrequency):
		return AlertLowAttendance, true
	}
	return "", false
}

func alertMessage(t AlertType, cell domain.Cell, snap domain.ReadinessSnapshot) string {
	switch t {
	case AlertReadyForSplit:
		if snap.Status == domain.ReadinessOverdue {
			return fmt.Sprintf("%s is overdue for multiplication (score %.0f)", cell.Name, snap.Score)
		}
		return fmt.Sprintf("%s is ready to multiply (score %.0f)", cell.Name, snap.Score)
	case AlertMissingLeader:
		return fmt.Sprintf("%s has no qualified leader for a new cell", cell.Name)
	case AlertSlowGrowth:
		return fmt.Sprintf("%s is growing slowly", cell.Name)
	case AlertLowAttendance:
		return fmt.Sprintf("%s has low attendance or irregular meetings", cell.Name)
	}
	return cell.Name
}

func (f AlertFilter) accepts(t AlertType) bool {
	if f.MaxPriority > 0 && t.Priority() > f.MaxPriority {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if want == t {
			return true
		}
	}
	return false
}

// canSee applies the actor's visibility scope to a cell.
func (a Actor) canSee(c domain.Cell) bool {
	switch a.Role {
	case domain.RoleAdmin, domain.RolePastor:
		return true
	case domain.RoleSupervisor:
		return a.Approver || a.SupervisesCell(c)
	case domain.RoleLeader:
		return a.LeadsCell(c)
	}
	return false
}

// ListAlerts derives alerts from the organization's readiness snapshots
// visible to actorID. Plain members are denied.
func (s *Service) ListAlerts(ctx context.Context, actorID, organizationID string, filter AlertFilter) (report AlertReport, err error) {
	ctx, op := s.begin(ctx, "list_alerts", actorID)
	op.entityID = organizationID
	defer func() { err = op.end(ctx, err) }()

	actor, err := s.identity.ResolveActor(ctx, organizationID, actorID)
	if err != nil {
		return AlertReport{}, storeErr("list_alerts", err)
	}
	switch actor.Role {
	case domain.RoleAdmin, domain.RolePastor, domain.RoleSupervisor, domain.RoleLeader:
	default:
		return AlertReport{}, domain.PermissionDenied("list_alerts", domain.EntityReadiness, organizationID,
			fmt.Sprintf("role %q cannot view alerts", actor.Role))
	}

	alerts := make([]Alert, 0)
	err = s.view(ctx, "list_alerts", func(v TransactionView) error {
		for _, snap := range v.ListReadiness(organizationID) {
			cell, ok := v.FindCell(snap.CellID)
			if !ok || !cell.Active || !actor.canSee(cell) {
				continue
			}
			t, ok := ClassifyAlert(snap)
			if !ok || !filter.accepts(t) {
				continue
			}
			alerts = append(alerts, Alert{
				Type:            t,
				Priority:        t.Priority(),
				CellID:          cell.ID,
				CellName:        cell.Name,
				OrganizationID:  organizationID,
				ReadinessScore:  snap.Score,
				ReadinessStatus: snap.Status,
				Message:         alertMessage(t, cell, snap),
				EvaluatedAt:     snap.EvaluatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return AlertReport{}, err
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return alerts[i].Priority < alerts[j].Priority
		}
		if alerts[i].ReadinessScore != alerts[j].ReadinessScore {
			return alerts[i].ReadinessScore > alerts[j].ReadinessScore
		}
		return alerts[i].CellID < alerts[j].CellID
	})

	summary := AlertSummary{Total: len(alerts), ByPriority: map[int]int{}, ByType: map[AlertType]int{}}
	for _, a := range alerts {
		summary.ByPriority[a.Priority]++
		summary.ByType[a.Type]++
	}
	if filter.Limit > 0 && len(alerts) > filter.Limit {
		alerts = alerts[:filter.Limit]
	}
	return AlertReport{Alerts: alerts, Summary: summary}, nil
}
