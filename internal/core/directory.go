package core

import (
	"context"
	"fmt"
	"strings"

	"liderforte/pkg/domain"
)

// CreateCell registers a cell. Administrators, pastors and supervisors may
// create cells in their organization.
func (s *Service) CreateCell(ctx context.Context, actorID string, cell domain.Cell) (created domain.Cell, err error) {
	ctx, op := s.begin(ctx, "create_cell", actorID)
	defer func() { err = op.end(ctx, err) }()

	actor, err := s.identity.ResolveActor(ctx, cell.OrganizationID, actorID)
	if err != nil {
		return domain.Cell{}, storeErr("create_cell", err)
	}
	if !actor.Privileged() && actor.Role != domain.RoleSupervisor {
		return domain.Cell{}, domain.PermissionDenied("create_cell", domain.EntityCell, "", "only administrators and supervisors can create cells")
	}
	cell.Name = strings.TrimSpace(cell.Name)
	if cell.Name == "" {
		return domain.Cell{}, domain.Validation("create_cell", domain.EntityCell, "", "cell name required")
	}
	if cell.FoundedAt.IsZero() {
		cell.FoundedAt = s.now()
	}
	if cell.LeaderSince.IsZero() {
		cell.LeaderSince = cell.FoundedAt
	}
	cell.Active = true
	err = s.run(ctx, "create_cell", func(tx Transaction) error {
		if cell.ParentCellID != nil {
			parent, ok := tx.Snapshot().FindCell(*cell.ParentCellID)
			if !ok || parent.OrganizationID != cell.OrganizationID {
				return domain.NotFound("create_cell", domain.EntityCell, *cell.ParentCellID)
			}
			cell.Generation = parent.Generation + 1
		}
		var err error
		created, err = tx.CreateCell(cell)
		return err
	})
	op.entityID = created.ID
	return created, err
}

// UpdateCellStats replaces the externally maintained facts of a cell.
func (s *Service) UpdateCellStats(ctx context.Context, actorID, cellID string, stats domain.CellStats) (updated domain.Cell, err error) {
	ctx, op := s.begin(ctx, "update_cell_stats", actorID)
	op.entityID = cellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "update_cell_stats", cellID)
	if err != nil {
		return domain.Cell{}, err
	}
	actor, err := s.actorFor(ctx, "update_cell_stats", cell.OrganizationID, actorID, domain.EntityCell, cellID)
	if err != nil {
		return domain.Cell{}, err
	}
	if !actor.Manages(cell) {
		return domain.Cell{}, domain.PermissionDenied("update_cell_stats", domain.EntityCell, cellID, "not allowed to edit this cell")
	}
	if stats.AverageAttendance < 0 || stats.AverageAttendance > 100 || stats.StabilityScore < 0 || stats.StabilityScore > 100 || stats.MeetingsPerMonth < 0 {
		return domain.Cell{}, domain.Validation("update_cell_stats", domain.EntityCell, cellID, "stats out of range")
	}
	if stats.AsOf.IsZero() {
		stats.AsOf = s.now()
	}
	err = s.run(ctx, "update_cell_stats", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCell(cellID, func(c *domain.Cell) error {
			c.Stats = stats
			return nil
		})
		return err
	})
	return updated, err
}

// DeactivateCell soft-deletes a cell without an active multiplication.
func (s *Service) DeactivateCell(ctx context.Context, actorID, cellID string) (err error) {
	ctx, op := s.begin(ctx, "deactivate_cell", actorID)
	op.entityID = cellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "deactivate_cell", cellID)
	if err != nil {
		return err
	}
	actor, err := s.actorFor(ctx, "deactivate_cell", cell.OrganizationID, actorID, domain.EntityCell, cellID)
	if err != nil {
		return err
	}
	if !actor.Privileged() && !actor.SupervisesCell(cell) {
		return domain.PermissionDenied("deactivate_cell", domain.EntityCell, cellID, "only administrators or the supervisor can deactivate a cell")
	}
	return s.run(ctx, "deactivate_cell", func(tx Transaction) error {
		if p, ok := activeProcess(tx.Snapshot(), cellID); ok {
			return domain.InvalidState("deactivate_cell", domain.EntityCell, cellID, fmt.Sprintf("multiplication %s is %s", p.ID, p.Status))
		}
		now := s.now()
		_, err := tx.UpdateCell(cellID, func(c *domain.Cell) error {
			if !c.Active {
				return domain.InvalidState("deactivate_cell", domain.EntityCell, cellID, "cell already inactive")
			}
			c.Active = false
			c.DeactivatedAt = &now
			return nil
		})
		return err
	})
}

// AddMember adds a person to an active cell.
func (s *Service) AddMember(ctx context.Context, actorID string, member domain.Member) (created domain.Member, err error) {
	ctx, op := s.begin(ctx, "add_member", actorID)
	op.entityID = member.CellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "add_member", member.CellID)
	if err != nil {
		return domain.Member{}, err
	}
	actor, err := s.actorFor(ctx, "add_member", cell.OrganizationID, actorID, domain.EntityCell, cell.ID)
	if err != nil {
		return domain.Member{}, err
	}
	if !actor.Manages(cell) {
		return domain.Member{}, domain.PermissionDenied("add_member", domain.EntityCell, cell.ID, "not allowed to edit this cell")
	}
	if !cell.Active {
		return domain.Member{}, domain.InvalidState("add_member", domain.EntityCell, cell.ID, "cell is inactive")
	}
	if member.PersonID == "" {
		return domain.Member{}, domain.Validation("add_member", domain.EntityMember, "", "person id required")
	}
	if member.EngagementScore < 0 || member.EngagementScore > 100 {
		return domain.Member{}, domain.Validation("add_member", domain.EntityMember, "", "engagement score must be within 0..100")
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = s.now()
	}
	member.Active = true
	member.LeftAt = nil
	err = s.run(ctx, "add_member", func(tx Transaction) error {
		var err error
		created, err = tx.CreateMember(member)
		return err
	})
	op.entityID = created.ID
	return created, err
}

// MemberUpdate patches a membership. Nil fields are left unchanged.
type MemberUpdate struct {
	DisplayName     *string
	EngagementScore *float64
	LeadershipTrack *bool
}

// UpdateMember patches a membership.
func (s *Service) UpdateMember(ctx context.Context, actorID, memberID string, update MemberUpdate) (updated domain.Member, err error) {
	ctx, op := s.begin(ctx, "update_member", actorID)
	op.entityID = memberID
	defer func() { err = op.end(ctx, err) }()

	if update.EngagementScore != nil && (*update.EngagementScore < 0 || *update.EngagementScore > 100) {
		return domain.Member{}, domain.Validation("update_member", domain.EntityMember, memberID, "engagement score must be within 0..100")
	}
	if _, err := s.memberEditor(ctx, "update_member", actorID, memberID); err != nil {
		return domain.Member{}, err
	}
	err = s.run(ctx, "update_member", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateMember(memberID, func(m *domain.Member) error {
			if update.DisplayName != nil {
				m.DisplayName = *update.DisplayName
			}
			if update.EngagementScore != nil {
				m.EngagementScore = *update.EngagementScore
			}
			if update.LeadershipTrack != nil {
				m.LeadershipTrack = *update.LeadershipTrack
			}
			return nil
		})
		return err
	})
	return updated, err
}

// RemoveMember deactivates a membership.
func (s *Service) RemoveMember(ctx context.Context, actorID, memberID string) (err error) {
	ctx, op := s.begin(ctx, "remove_member", actorID)
	op.entityID = memberID
	defer func() { err = op.end(ctx, err) }()

	if _, err := s.memberEditor(ctx, "remove_member", actorID, memberID); err != nil {
		return err
	}
	return s.run(ctx, "remove_member", func(tx Transaction) error {
		now := s.now()
		_, err := tx.UpdateMember(memberID, func(m *domain.Member) error {
			if !m.Active {
				return domain.InvalidState("remove_member", domain.EntityMember, memberID, "membership already inactive")
			}
			m.Active = false
			m.LeftAt = &now
			return nil
		})
		return err
	})
}

func (s *Service) memberEditor(ctx context.Context, op, actorID, memberID string) (domain.Cell, error) {
	var cell domain.Cell
	err := s.view(ctx, op, func(v TransactionView) error {
		m, ok := v.FindMember(memberID)
		if !ok {
			return domain.NotFound(op, domain.EntityMember, memberID)
		}
		if cell, ok = v.FindCell(m.CellID); !ok {
			return domain.NotFound(op, domain.EntityCell, m.CellID)
		}
		return nil
	})
	if err != nil {
		return domain.Cell{}, err
	}
	actor, err := s.actorFor(ctx, op, cell.OrganizationID, actorID, domain.EntityMember, memberID)
	if err != nil {
		return domain.Cell{}, err
	}
	if !actor.Manages(cell) {
		return domain.Cell{}, domain.PermissionDenied(op, domain.EntityMember, memberID, "not allowed to edit this cell")
	}
	return cell, nil
}

// GrantOrgRole assigns a role within an organization. Only administrators
// and pastors may grant roles, except for the first grant of an
// organization, which bootstraps its administrator.
func (s *Service) GrantOrgRole(ctx context.Context, actorID string, membership domain.OrgMembership) (saved domain.OrgMembership, err error) {
	ctx, op := s.begin(ctx, "grant_org_role", actorID)
	op.entityID = membership.PersonID
	defer func() { err = op.end(ctx, err) }()

	switch membership.Role {
	case domain.RoleAdmin, domain.RolePastor, domain.RoleSupervisor, domain.RoleLeader, domain.RoleMember:
	default:
		return domain.OrgMembership{}, domain.Validation("grant_org_role", domain.EntityOrgMembership, membership.PersonID, fmt.Sprintf("unknown role %q", membership.Role))
	}
	if membership.OrganizationID == "" || membership.PersonID == "" {
		return domain.OrgMembership{}, domain.Validation("grant_org_role", domain.EntityOrgMembership, membership.PersonID, "organization and person required")
	}
	err = s.run(ctx, "grant_org_role", func(tx Transaction) error {
		v := tx.Snapshot()
		if len(v.ListOrgMemberships(membership.OrganizationID)) > 0 {
			granter, ok := v.FindOrgMembership(membership.OrganizationID, actorID)
			if !ok || !granter.Role.Privileged() {
				return domain.PermissionDenied("grant_org_role", domain.EntityOrgMembership, membership.PersonID, "only administrators can grant roles")
			}
		} else if membership.PersonID != actorID || !membership.Role.Privileged() {
			return domain.PermissionDenied("grant_org_role", domain.EntityOrgMembership, membership.PersonID, "the first grant must make the caller an administrator")
		}
		var err error
		saved, err = tx.UpsertOrgMembership(membership)
		return err
	})
	return saved, err
}

// UpsertTemplate creates or replaces a distribution template.
func (s *Service) UpsertTemplate(ctx context.Context, actorID string, tmpl domain.DistributionTemplate) (saved domain.DistributionTemplate, err error) {
	ctx, op := s.begin(ctx, "upsert_template", actorID)
	op.entityID = tmpl.ID
	defer func() { err = op.end(ctx, err) }()

	actor, err := s.actorFor(ctx, "upsert_template", tmpl.OrganizationID, actorID, domain.EntityTemplate, tmpl.ID)
	if err != nil {
		return domain.DistributionTemplate{}, err
	}
	if !actor.Privileged() {
		return domain.DistributionTemplate{}, domain.PermissionDenied("upsert_template", domain.EntityTemplate, tmpl.ID, "only administrators can configure templates")
	}
	if strings.TrimSpace(tmpl.Name) == "" {
		return domain.DistributionTemplate{}, domain.Validation("upsert_template", domain.EntityTemplate, tmpl.ID, "template name required")
	}
	err = s.run(ctx, "upsert_template", func(tx Transaction) error {
		var err error
		saved, err = tx.UpsertTemplate(tmpl)
		return err
	})
	op.entityID = saved.ID
	return saved, err
}

// ListCells returns the cells of an organization.
func (s *Service) ListCells(ctx context.Context, organizationID string, activeOnly bool) ([]domain.Cell, error) {
	var out []domain.Cell
	err := s.view(ctx, "list_cells", func(v TransactionView) error {
		for _, c := range v.ListCells(organizationID) {
			if activeOnly && !c.Active {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// ListMembers returns the memberships of a cell.
func (s *Service) ListMembers(ctx context.Context, cellID string, activeOnly bool) ([]domain.Member, error) {
	var out []domain.Member
	err := s.view(ctx, "list_members", func(v TransactionView) error {
		if _, ok := v.FindCell(cellID); !ok {
			return domain.NotFound("list_members", domain.EntityCell, cellID)
		}
		for _, m := range v.ListMembers(cellID) {
			if activeOnly && !m.Active {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}
