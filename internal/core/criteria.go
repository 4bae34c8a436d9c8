package core

import (
	"context"
	"fmt"

	"liderforte/pkg/domain"
)

// CriteriaSource loads the active multiplication criteria of an organization.
type CriteriaSource interface {
	ActiveCriteria(ctx context.Context, organizationID string) ([]domain.MultiplicationCriterion, error)
}

type storeCriteria struct {
	store PersistentStore
}

func (c storeCriteria) ActiveCriteria(ctx context.Context, organizationID string) ([]domain.MultiplicationCriterion, error) {
	var out []domain.MultiplicationCriterion
	err := c.store.View(ctx, func(v TransactionView) error {
		for _, crit := range v.ListCriteria(organizationID) {
			if crit.Active {
				out = append(out, crit)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("load_criteria", err)
	}
	return out, nil
}

type defaultCriterion struct {
	name      string
	kind      domain.CriterionType
	threshold float64
	weight    float64
	required  bool
}

var builtinCriteria = []defaultCriterion{
	{"Minimum members", domain.CriterionMemberCount, 12, 0.25, true},
	{"Potential leaders", domain.CriterionPotentialLeaders, 1, 0.25, true},
	{"Meeting frequency", domain.CriterionMeetingFrequency, 4, 0.10, false},
	{"Average attendance", domain.CriterionAverageAttendance, 70, 0.15, false},
	{"Cell age", domain.CriterionCellAge, 6, 0.10, false},
	{"Leader maturity", domain.CriterionLeaderMaturity, 12, 0.05, false},
	{"Growth rate", domain.CriterionGrowthRate, 10, 0.05, false},
	{"Stability", domain.CriterionStability, 70, 0.05, false},
}

// DefaultCriteria returns the built-in criteria used when an organization has
// none configured. IDs are stable per criterion type.
func DefaultCriteria(organizationID string) []domain.MultiplicationCriterion {
	out := make([]domain.MultiplicationCriterion, 0, len(builtinCriteria))
	for _, d := range builtinCriteria {
		rule, err := domain.NewCriterionRule(d.kind, d.threshold)
		if err != nil {
			panic(fmt.Sprintf("builtin criterion %s: %v", d.kind, err))
		}
		c := domain.MultiplicationCriterion{
			OrganizationID: organizationID,
			Name:           d.name,
			Rule:           rule,
			Weight:         d.weight,
			Required:       d.required,
			Active:         true,
		}
		c.ID = "default-" + string(d.kind)
		out = append(out, c)
	}
	return out
}

// UpsertCriterion creates or replaces an organization criterion. Only
// administrators and pastors may configure criteria.
func (s *Service) UpsertCriterion(ctx context.Context, actorID string, criterion domain.MultiplicationCriterion) (saved domain.MultiplicationCriterion, err error) {
	ctx, op := s.begin(ctx, "upsert_criterion", actorID)
	op.entityID = criterion.ID
	defer func() { err = op.end(ctx, err) }()

	if err := criterion.Validate(); err != nil {
		return domain.MultiplicationCriterion{}, err
	}
	actor, err := s.actorFor(ctx, "upsert_criterion", criterion.OrganizationID, actorID, domain.EntityCriterion, criterion.ID)
	if err != nil {
		return domain.MultiplicationCriterion{}, err
	}
	if !actor.Privileged() {
		return domain.MultiplicationCriterion{}, domain.PermissionDenied("upsert_criterion", domain.EntityCriterion, criterion.ID, "only administrators can configure criteria")
	}
	err = s.run(ctx, "upsert_criterion", func(tx Transaction) error {
		var err error
		saved, err = tx.UpsertCriterion(criterion)
		return err
	})
	op.entityID = saved.ID
	return saved, err
}

// ListCriteria returns the organization's configured criteria.
func (s *Service) ListCriteria(ctx context.Context, organizationID string, activeOnly bool) ([]domain.MultiplicationCriterion, error) {
	var out []domain.MultiplicationCriterion
	err := s.view(ctx, "list_criteria", func(v TransactionView) error {
		for _, c := range v.ListCriteria(organizationID) {
			if activeOnly && !c.Active {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// DeactivateCriterion marks a criterion inactive without deleting it.
func (s *Service) DeactivateCriterion(ctx context.Context, actorID, organizationID, criterionID string) (err error) {
	ctx, op := s.begin(ctx, "deactivate_criterion", actorID)
	op.entityID = criterionID
	defer func() { err = op.end(ctx, err) }()

	actor, err := s.actorFor(ctx, "deactivate_criterion", organizationID, actorID, domain.EntityCriterion, criterionID)
	if err != nil {
		return err
	}
	if !actor.Privileged() {
		return domain.PermissionDenied("deactivate_criterion", domain.EntityCriterion, criterionID, "only administrators can configure criteria")
	}
	return s.run(ctx, "deactivate_criterion", func(tx Transaction) error {
		for _, c := range tx.Snapshot().ListCriteria(organizationID) {
			if c.ID != criterionID {
				continue
			}
			c.Active = false
			_, err := tx.UpsertCriterion(c)
			return err
		}
		return domain.NotFound("deactivate_criterion", domain.EntityCriterion, criterionID)
	})
}
