package core

import (
	"context"

	"liderforte/pkg/domain"
)

// Actor is the resolved identity of the person calling a service operation.
type Actor struct {
	PersonID       string
	OrganizationID string
	Role           domain.Role
	Approver       bool
}

// Privileged reports organization-wide administrative rights.
func (a Actor) Privileged() bool { return a.Role.Privileged() }

// LeadsCell reports whether the actor is the cell's current leader.
func (a Actor) LeadsCell(c domain.Cell) bool { return c.LeaderID == a.PersonID }

// SupervisesCell reports whether the actor supervises the cell.
func (a Actor) SupervisesCell(c domain.Cell) bool { return c.SupervisedBy(a.PersonID) }

// Manages reports whether the actor may drive workflow actions for the cell.
func (a Actor) Manages(c domain.Cell) bool {
	return a.Privileged() || a.LeadsCell(c) || a.SupervisesCell(c)
}

// CanApprove reports whether the actor may approve or reject a split of c.
func (a Actor) CanApprove(c domain.Cell) bool {
	if a.Privileged() {
		return true
	}
	return a.Role == domain.RoleSupervisor && (a.Approver || a.SupervisesCell(c))
}

// IdentityProvider resolves actors within an organization. A person outside
// the organization yields a NotFound error; callers map missing rights to
// PermissionDenied themselves.
type IdentityProvider interface {
	ResolveActor(ctx context.Context, organizationID, personID string) (Actor, error)
}

// StoreIdentity resolves actors from OrgMembership records.
type StoreIdentity struct {
	store PersistentStore
}

// NewStoreIdentity builds an identity provider over store.
func NewStoreIdentity(store PersistentStore) *StoreIdentity {
	return &StoreIdentity{store: store}
}

// ResolveActor implements IdentityProvider.
func (p *StoreIdentity) ResolveActor(ctx context.Context, organizationID, personID string) (Actor, error) {
	if personID == "" {
		return Actor{}, domain.NotFound("resolve_actor", domain.EntityOrgMembership, personID)
	}
	var membership domain.OrgMembership
	var found bool
	err := p.store.View(ctx, func(v TransactionView) error {
		membership, found = v.FindOrgMembership(organizationID, personID)
		return nil
	})
	if err != nil {
		return Actor{}, storeErr("resolve_actor", err)
	}
	if !found {
		return Actor{}, domain.NotFound("resolve_actor", domain.EntityOrgMembership, personID)
	}
	return Actor{
		PersonID:       personID,
		OrganizationID: organizationID,
		Role:           membership.Role,
		Approver:       membership.Approver,
	}, nil
}

// actorFor resolves personID inside organizationID. A person outside the
// organization cannot see the target, so the miss is reported against it.
func (s *Service) actorFor(ctx context.Context, op, organizationID, personID string, entity domain.EntityType, entityID string) (Actor, error) {
	actor, err := s.identity.ResolveActor(ctx, organizationID, personID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return Actor{}, domain.NotFound(op, entity, entityID)
		}
		return Actor{}, storeErr(op, err)
	}
	return actor, nil
}

func (s *Service) findCell(ctx context.Context, op, cellID string) (domain.Cell, error) {
	var cell domain.Cell
	err := s.view(ctx, op, func(v TransactionView) error {
		var ok bool
		if cell, ok = v.FindCell(cellID); !ok {
			return domain.NotFound(op, domain.EntityCell, cellID)
		}
		return nil
	})
	return cell, err
}

func (s *Service) findProcess(ctx context.Context, op, processID string) (domain.MultiplicationProcess, domain.Cell, error) {
	var proc domain.MultiplicationProcess
	var cell domain.Cell
	err := s.view(ctx, op, func(v TransactionView) error {
		var ok bool
		if proc, ok = v.FindProcess(processID); !ok {
			return domain.NotFound(op, domain.EntityProcess, processID)
		}
		if cell, ok = v.FindCell(proc.SourceCellID); !ok {
			return domain.NotFound(op, domain.EntityCell, proc.SourceCellID)
		}
		return nil
	})
	return proc, cell, err
}
