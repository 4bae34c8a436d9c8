package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liderforte/pkg/domain"
)

// AssignmentInput is one row of a manual assignment update.
type AssignmentInput struct {
	MemberID      string                `json:"member_id"`
	Type          domain.AssignmentType `json:"assignment_type"`
	RoleInNewCell domain.CellRole       `json:"role_in_new_cell,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

// ProcessUpdate patches plan fields. Nil fields are left unchanged.
type ProcessUpdate struct {
	NewCellName *string
	MeetingDay  *string
	MeetingTime *string
	Location    *string
	TargetDate  *time.Time
	Notes       *string
	// AdvanceTo optionally moves the process forward after the patch.
	AdvanceTo *domain.ProcessStatus
}

func (u ProcessUpdate) empty() bool {
	return u.NewCellName == nil && u.MeetingDay == nil && u.MeetingTime == nil &&
		u.Location == nil && u.TargetDate == nil && u.Notes == nil
}

// ExecutionResult is returned by ExecuteMultiplication.
type ExecutionResult struct {
	NewCellID string                       `json:"new_cell_id"`
	Process   domain.MultiplicationProcess `json:"process"`
	Moved     int                          `json:"moved"`
}

func (s *Service) guardProcessEditor(actor Actor, proc domain.MultiplicationProcess, cell domain.Cell, op string) error {
	if actor.PersonID == proc.InitiatorID || actor.Manages(cell) {
		return nil
	}
	return domain.PermissionDenied(op, domain.EntityProcess, proc.ID, "actor is neither the initiator nor a leader or supervisor of the source cell")
}

// StartMultiplication opens a draft process for sourceCellID.
func (s *Service) StartMultiplication(ctx context.Context, actorID, sourceCellID string, plan domain.MultiplicationPlan) (proc domain.MultiplicationProcess, err error) {
	ctx, op := s.begin(ctx, "start_multiplication", actorID)
	op.entityID = sourceCellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "start_multiplication", sourceCellID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	actor, err := s.actorFor(ctx, "start_multiplication", cell.OrganizationID, actorID, domain.EntityCell, sourceCellID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if !actor.Manages(cell) {
		return domain.MultiplicationProcess{}, domain.PermissionDenied("start_multiplication", domain.EntityCell, sourceCellID,
			"only the cell leader, its supervisor or an administrator can start a multiplication")
	}
	if !cell.Active {
		return domain.MultiplicationProcess{}, domain.InvalidState("start_multiplication", domain.EntityCell, sourceCellID, "cell is inactive")
	}
	plan.NewCellName = strings.TrimSpace(plan.NewCellName)
	if plan.NewCellName == "" {
		return domain.MultiplicationProcess{}, domain.Validation("start_multiplication", domain.EntityProcess, "", "new cell name required")
	}

	err = s.run(ctx, "start_multiplication", func(tx Transaction) error {
		if active, ok := activeProcess(tx.Snapshot(), cell.ID); ok {
			return domain.InvalidState("start_multiplication", domain.EntityCell, cell.ID,
				fmt.Sprintf("cell already has an active multiplication %s (%s)", active.ID, active.Status))
		}
		var err error
		proc, err = tx.CreateProcess(domain.MultiplicationProcess{
			OrganizationID: cell.OrganizationID,
			SourceCellID:   cell.ID,
			InitiatorID:    actor.PersonID,
			Status:         domain.ProcessDraft,
			Plan:           plan,
		})
		return err
	})
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	op.entityID = proc.ID
	s.logger.Info("multiplication started", "process", proc.ID, "cell", cell.ID, "actor", actorID)
	return proc, nil
}

// UpdateAssignments applies a full desired assignment list. The list must
// hold exactly one new leader; otherwise nothing is written. Rows are written
// one by one: failures are returned as a *domain.BatchError while successful
// rows stay committed and the process does not advance.
func (s *Service) UpdateAssignments(ctx context.Context, actorID, processID string, inputs []AssignmentInput) (rows []domain.MemberAssignment, err error) {
	ctx, op := s.begin(ctx, "update_assignments", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	proc, cell, err := s.findProcess(ctx, "update_assignments", processID)
	if err != nil {
		return nil, err
	}

	leaders := 0
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if !in.Type.Valid() {
			return nil, domain.Validation("update_assignments", domain.EntityAssignment, in.MemberID, fmt.Sprintf("unknown assignment type %q", in.Type))
		}
		if _, dup := seen[in.MemberID]; dup {
			return nil, domain.Validation("update_assignments", domain.EntityAssignment, in.MemberID, "member listed twice")
		}
		seen[in.MemberID] = struct{}{}
		if in.Type == domain.AssignmentNewLeader {
			leaders++
		}
	}
	if leaders != 1 {
		return nil, domain.Validation("update_assignments", domain.EntityProcess, processID,
			fmt.Sprintf("exactly one new leader required, got %d", leaders))
	}

	actor, err := s.actorFor(ctx, "update_assignments", proc.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return nil, err
	}
	if err := s.guardProcessEditor(actor, proc, cell, "update_assignments"); err != nil {
		return nil, err
	}
	if proc.Status != domain.ProcessMemberSelection && proc.Status != domain.ProcessLeaderAssignment {
		return nil, domain.InvalidState("update_assignments", domain.EntityProcess, processID,
			fmt.Sprintf("assignments cannot change while %s", proc.Status))
	}

	members := make(map[string]domain.Member)
	existing := make(map[string]domain.MemberAssignment)
	if err := s.view(ctx, "update_assignments", func(v TransactionView) error {
		for _, m := range v.ListMembers(cell.ID) {
			if m.Active {
				members[m.ID] = m
			}
		}
		for _, a := range v.ListAssignments(proc.ID) {
			existing[a.MemberID] = a
		}
		return nil
	}); err != nil {
		return nil, err
	}
	var newLeader string
	for _, in := range inputs {
		m, ok := members[in.MemberID]
		if !ok {
			return nil, domain.Validation("update_assignments", domain.EntityMember, in.MemberID, "member is not an active member of the source cell")
		}
		if in.Type == domain.AssignmentNewLeader {
			newLeader = m.PersonID
		}
	}

	batch := &domain.BatchError{Op: "update_assignments"}
	for _, in := range inputs {
		m := members[in.MemberID]
		row := domain.MemberAssignment{
			ProcessID:        proc.ID,
			MemberID:         m.ID,
			PersonID:         m.PersonID,
			Type:             in.Type,
			RoleInNewCell:    roleFor(in),
			ManuallyAdjusted: true,
			Notes:            in.Notes,
		}
		if prev, ok := existing[m.ID]; ok {
			row.AutoSuggested = prev.AutoSuggested
			row.PriorityScore = prev.PriorityScore
			row.Reasoning = prev.Reasoning
			row.ManuallyAdjusted = prev.ManuallyAdjusted || prev.Type != in.Type || prev.Notes != in.Notes
		}
		if err := s.run(ctx, "update_assignments", func(tx Transaction) error {
			if err := expectStatus(tx.Snapshot(), proc); err != nil {
				return err
			}
			_, err := tx.UpsertAssignment(row)
			return err
		}); err != nil {
			batch.Items = append(batch.Items, domain.ItemError{ID: m.ID, Err: err})
		}
	}
	for memberID, prev := range existing {
		if _, keep := seen[memberID]; keep {
			continue
		}
		if err := s.run(ctx, "update_assignments", func(tx Transaction) error {
			if err := expectStatus(tx.Snapshot(), proc); err != nil {
				return err
			}
			return tx.DeleteAssignment(prev.ID)
		}); err != nil {
			batch.Items = append(batch.Items, domain.ItemError{ID: memberID, Err: err})
		}
	}

	if len(batch.Items) == 0 {
		err = s.run(ctx, "update_assignments", func(tx Transaction) error {
			_, err := tx.UpdateProcess(proc.ID, proc.Status, func(p *domain.MultiplicationProcess) error {
				p.NewLeaderID = &newLeader
				p.Status = domain.ProcessLeaderAssignment
				return nil
			})
			return err
		})
	}
	var listErr error
	rows, listErr = s.ListAssignments(ctx, proc.ID)
	if len(batch.Items) > 0 {
		return rows, batch
	}
	if err != nil {
		return rows, err
	}
	return rows, listErr
}

func roleFor(in AssignmentInput) domain.CellRole {
	if in.RoleInNewCell != "" {
		return in.RoleInNewCell
	}
	switch in.Type {
	case domain.AssignmentNewLeader:
		return domain.CellRoleLeader
	case domain.AssignmentMovesNew:
		return domain.CellRoleMember
	}
	return ""
}

// expectStatus fails with Conflict when proc changed status since it was read.
func expectStatus(v TransactionView, proc domain.MultiplicationProcess) error {
	current, ok := v.FindProcess(proc.ID)
	if !ok {
		return domain.NotFound("update_assignments", domain.EntityProcess, proc.ID)
	}
	if current.Status != proc.Status {
		return domain.Conflict("update_assignments", domain.EntityProcess, proc.ID,
			fmt.Sprintf("process moved from %s to %s", proc.Status, current.Status))
	}
	return nil
}

// UpdateProcessFields patches the plan and optionally advances the process.
func (s *Service) UpdateProcessFields(ctx context.Context, actorID, processID string, update ProcessUpdate) (proc domain.MultiplicationProcess, err error) {
	ctx, op := s.begin(ctx, "update_process_fields", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	observed, cell, err := s.findProcess(ctx, "update_process_fields", processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	actor, err := s.actorFor(ctx, "update_process_fields", observed.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if err := s.guardProcessEditor(actor, observed, cell, "update_process_fields"); err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if !update.empty() && (observed.Status.Terminal() || observed.Status.AtLeast(domain.ProcessPendingApproval)) {
		return domain.MultiplicationProcess{}, domain.InvalidState("update_process_fields", domain.EntityProcess, processID,
			fmt.Sprintf("plan is frozen while %s", observed.Status))
	}
	if update.NewCellName != nil && strings.TrimSpace(*update.NewCellName) == "" {
		return domain.MultiplicationProcess{}, domain.Validation("update_process_fields", domain.EntityProcess, processID, "new cell name cannot be blank")
	}

	err = s.run(ctx, "update_process_fields", func(tx Transaction) error {
		var err error
		proc, err = tx.UpdateProcess(processID, observed.Status, func(p *domain.MultiplicationProcess) error {
			applyPlanUpdate(&p.Plan, update)
			return nil
		})
		if err != nil || update.AdvanceTo == nil {
			return err
		}
		proc, err = s.advance(tx, actor, proc, cell, *update.AdvanceTo)
		return err
	})
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	return proc, nil
}

func applyPlanUpdate(plan *domain.MultiplicationPlan, u ProcessUpdate) {
	if u.NewCellName != nil {
		plan.NewCellName = strings.TrimSpace(*u.NewCellName)
	}
	if u.MeetingDay != nil {
		plan.MeetingDay = *u.MeetingDay
	}
	if u.MeetingTime != nil {
		plan.MeetingTime = *u.MeetingTime
	}
	if u.Location != nil {
		plan.Location = *u.Location
	}
	if u.TargetDate != nil {
		t := *u.TargetDate
		plan.TargetDate = &t
	}
	if u.Notes != nil {
		plan.Notes = *u.Notes
	}
}

// AdvanceProcess moves a process one step forward. Transitions with their
// own operation (assignments, execute, cancel, reject) are refused here.
func (s *Service) AdvanceProcess(ctx context.Context, actorID, processID string, to domain.ProcessStatus) (proc domain.MultiplicationProcess, err error) {
	ctx, op := s.begin(ctx, "advance_process", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	observed, cell, err := s.findProcess(ctx, "advance_process", processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	actor, err := s.actorFor(ctx, "advance_process", observed.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if err := s.guardProcessEditor(actor, observed, cell, "advance_process"); err != nil && (to != domain.ProcessApproved || !actor.CanApprove(cell)) {
		return domain.MultiplicationProcess{}, err
	}
	err = s.run(ctx, "advance_process", func(tx Transaction) error {
		var err error
		proc, err = s.advance(tx, actor, observed, cell, to)
		return err
	})
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	return proc, nil
}

// ApproveMultiplication moves a pending process to approved.
func (s *Service) ApproveMultiplication(ctx context.Context, actorID, processID string) (domain.MultiplicationProcess, error) {
	return s.AdvanceProcess(ctx, actorID, processID, domain.ProcessApproved)
}

func (s *Service) advance(tx Transaction, actor Actor, proc domain.MultiplicationProcess, cell domain.Cell, to domain.ProcessStatus) (domain.MultiplicationProcess, error) {
	const op = "advance_process"
	if to == proc.Status || !proc.Status.CanTransition(to) {
		return domain.MultiplicationProcess{}, domain.InvalidState(op, domain.EntityProcess, proc.ID,
			fmt.Sprintf("cannot move from %s to %s", proc.Status, to))
	}
	switch to {
	case domain.ProcessMemberSelection:
		if !actor.Manages(cell) && actor.PersonID != proc.InitiatorID {
			return domain.MultiplicationProcess{}, domain.PermissionDenied(op, domain.EntityProcess, proc.ID, "not allowed to edit this process")
		}
	case domain.ProcessPlanReview:
		if err := requireSingleLeader(tx.Snapshot(), proc); err != nil {
			return domain.MultiplicationProcess{}, err
		}
	case domain.ProcessPendingApproval:
		if strings.TrimSpace(proc.Plan.NewCellName) == "" {
			return domain.MultiplicationProcess{}, domain.Validation(op, domain.EntityProcess, proc.ID, "new cell name required")
		}
		if err := requireSingleLeader(tx.Snapshot(), proc); err != nil {
			return domain.MultiplicationProcess{}, err
		}
	case domain.ProcessApproved:
		if !actor.CanApprove(cell) {
			return domain.MultiplicationProcess{}, domain.PermissionDenied(op, domain.EntityProcess, proc.ID, "only administrators or approving supervisors can approve")
		}
	case domain.ProcessLeaderAssignment:
		return domain.MultiplicationProcess{}, domain.InvalidState(op, domain.EntityProcess, proc.ID, "assign the new leader with UpdateAssignments")
	case domain.ProcessCompleted:
		return domain.MultiplicationProcess{}, domain.InvalidState(op, domain.EntityProcess, proc.ID, "completion happens through ExecuteMultiplication")
	default:
		return domain.MultiplicationProcess{}, domain.InvalidState(op, domain.EntityProcess, proc.ID, fmt.Sprintf("use the dedicated operation to move to %s", to))
	}
	now := s.now()
	return tx.UpdateProcess(proc.ID, proc.Status, func(p *domain.MultiplicationProcess) error {
		p.Status = to
		if to == domain.ProcessApproved {
			approver := actor.PersonID
			p.ApprovedBy = &approver
			p.ApprovedAt = &now
		}
		return nil
	})
}

// requireSingleLeader checks the exactly-one-new-leader invariant against
// stored assignments and the process's recorded leader.
func requireSingleLeader(v TransactionView, proc domain.MultiplicationProcess) error {
	var leaders []domain.MemberAssignment
	for _, a := range v.ListAssignments(proc.ID) {
		if a.Type == domain.AssignmentNewLeader {
			leaders = append(leaders, a)
		}
	}
	if len(leaders) != 1 {
		return domain.Validation("new_leader", domain.EntityProcess, proc.ID, fmt.Sprintf("exactly one new leader required, found %d", len(leaders)))
	}
	if proc.NewLeaderID == nil || *proc.NewLeaderID != leaders[0].PersonID {
		return domain.Validation("new_leader", domain.EntityProcess, proc.ID, "new leader does not match the assignment")
	}
	return nil
}

// RejectMultiplication closes a pending process as rejected.
func (s *Service) RejectMultiplication(ctx context.Context, actorID, processID, reason string) (proc domain.MultiplicationProcess, err error) {
	ctx, op := s.begin(ctx, "reject_multiplication", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	observed, cell, err := s.findProcess(ctx, "reject_multiplication", processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	actor, err := s.actorFor(ctx, "reject_multiplication", observed.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if !actor.CanApprove(cell) {
		return domain.MultiplicationProcess{}, domain.PermissionDenied("reject_multiplication", domain.EntityProcess, processID, "only administrators or approving supervisors can reject")
	}
	if observed.Status != domain.ProcessPendingApproval {
		return domain.MultiplicationProcess{}, domain.InvalidState("reject_multiplication", domain.EntityProcess, processID,
			fmt.Sprintf("cannot reject while %s", observed.Status))
	}
	err = s.run(ctx, "reject_multiplication", func(tx Transaction) error {
		var err error
		proc, err = tx.UpdateProcess(processID, observed.Status, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessRejected
			p.StatusReason = reason
			return nil
		})
		return err
	})
	return proc, err
}

// CancelMultiplication abandons a non-terminal process.
func (s *Service) CancelMultiplication(ctx context.Context, actorID, processID, reason string) (proc domain.MultiplicationProcess, err error) {
	ctx, op := s.begin(ctx, "cancel_multiplication", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	observed, cell, err := s.findProcess(ctx, "cancel_multiplication", processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	actor, err := s.actorFor(ctx, "cancel_multiplication", observed.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if err := s.guardProcessEditor(actor, observed, cell, "cancel_multiplication"); err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if observed.Status.Terminal() {
		return domain.MultiplicationProcess{}, domain.InvalidState("cancel_multiplication", domain.EntityProcess, processID,
			fmt.Sprintf("process already %s", observed.Status))
	}
	err = s.run(ctx, "cancel_multiplication", func(tx Transaction) error {
		var err error
		proc, err = tx.UpdateProcess(processID, observed.Status, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessCancelled
			p.StatusReason = reason
			return nil
		})
		return err
	})
	return proc, err
}

// ExecuteMultiplication creates the new cell, migrates moves_new members and
// completes the process in a single transaction.
func (s *Service) ExecuteMultiplication(ctx context.Context, actorID, processID string) (result ExecutionResult, err error) {
	ctx, op := s.begin(ctx, "execute_multiplication", actorID)
	op.entityID = processID
	defer func() { err = op.end(ctx, err) }()

	observed, cell, err := s.findProcess(ctx, "execute_multiplication", processID)
	if err != nil {
		return ExecutionResult{}, err
	}
	actor, err := s.actorFor(ctx, "execute_multiplication", observed.OrganizationID, actorID, domain.EntityProcess, processID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if !actor.Privileged() && !actor.SupervisesCell(cell) {
		return ExecutionResult{}, domain.PermissionDenied("execute_multiplication", domain.EntityProcess, processID,
			"only administrators or the cell supervisor can execute")
	}
	if observed.Status != domain.ProcessApproved {
		return ExecutionResult{}, domain.InvalidState("execute_multiplication", domain.EntityProcess, processID,
			fmt.Sprintf("only approved processes can be executed, process is %s", observed.Status))
	}

	var newCell domain.Cell
	var assignments []domain.MemberAssignment
	err = s.run(ctx, "execute_multiplication", func(tx Transaction) error {
		v := tx.Snapshot()
		proc, ok := v.FindProcess(processID)
		if !ok {
			return domain.NotFound("execute_multiplication", domain.EntityProcess, processID)
		}
		if proc.Status != domain.ProcessApproved {
			return domain.Conflict("execute_multiplication", domain.EntityProcess, processID,
				fmt.Sprintf("process moved to %s", proc.Status))
		}
		if err := requireSingleLeader(v, proc); err != nil {
			return err
		}
		source, ok := v.FindCell(proc.SourceCellID)
		if !ok {
			return domain.NotFound("execute_multiplication", domain.EntityCell, proc.SourceCellID)
		}
		if !source.Active {
			return domain.InvalidState("execute_multiplication", domain.EntityCell, source.ID, "source cell is inactive")
		}
		now := s.now()
		parent := source.ID
		var err error
		newCell, err = tx.CreateCell(domain.Cell{
			OrganizationID: source.OrganizationID,
			Name:           proc.Plan.NewCellName,
			ParentCellID:   &parent,
			Generation:     source.Generation + 1,
			LeaderID:       *proc.NewLeaderID,
			LeaderSince:    now,
			SupervisorID:   source.SupervisorID,
			Active:         true,
			MeetingDay:     proc.Plan.MeetingDay,
			MeetingTime:    proc.Plan.MeetingTime,
			Location:       proc.Plan.Location,
			FoundedAt:      now,
		})
		if err != nil {
			return err
		}
		assignments = v.ListAssignments(proc.ID)
		for _, a := range assignments {
			if a.Type != domain.AssignmentMovesNew {
				continue
			}
			member, ok := v.FindMember(a.MemberID)
			if !ok || !member.Active || member.CellID != source.ID {
				s.logger.Warn("skipping assignment for departed member", "process", proc.ID, "member", a.MemberID)
				continue
			}
			if _, err := tx.UpdateMember(member.ID, func(m *domain.Member) error {
				m.Active = false
				m.LeftAt = &now
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.CreateMember(domain.Member{
				CellID:          newCell.ID,
				PersonID:        member.PersonID,
				DisplayName:     member.DisplayName,
				EngagementScore: member.EngagementScore,
				LeadershipTrack: member.LeadershipTrack,
				JoinedAt:        now,
				Active:          true,
			}); err != nil {
				return err
			}
			result.Moved++
		}
		newCellID := newCell.ID
		result.Process, err = tx.UpdateProcess(proc.ID, domain.ProcessApproved, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessCompleted
			p.NewCellID = &newCellID
			p.CompletedAt = &now
			return nil
		})
		return err
	})
	if err != nil {
		return ExecutionResult{}, err
	}
	result.NewCellID = newCell.ID
	s.logger.Info("multiplication executed", "process", processID, "new_cell", newCell.ID, "moved", result.Moved)
	s.archiveCompletion(ctx, actorID, result.Process, newCell, assignments)
	return result, nil
}

// GetProcess returns a process visible to actorID.
func (s *Service) GetProcess(ctx context.Context, actorID, processID string) (domain.MultiplicationProcess, error) {
	proc, _, err := s.findProcess(ctx, "get_process", processID)
	if err != nil {
		return domain.MultiplicationProcess{}, err
	}
	if _, err := s.actorFor(ctx, "get_process", proc.OrganizationID, actorID, domain.EntityProcess, processID); err != nil {
		return domain.MultiplicationProcess{}, err
	}
	return proc, nil
}

// ListProcesses returns the organization's processes for actorID.
func (s *Service) ListProcesses(ctx context.Context, actorID, organizationID string) ([]domain.MultiplicationProcess, error) {
	if _, err := s.identity.ResolveActor(ctx, organizationID, actorID); err != nil {
		return nil, storeErr("list_processes", err)
	}
	var out []domain.MultiplicationProcess
	err := s.view(ctx, "list_processes", func(v TransactionView) error {
		out = v.ListProcesses(organizationID)
		return nil
	})
	return out, err
}

// ListAssignments returns the stored assignments of a process.
func (s *Service) ListAssignments(ctx context.Context, processID string) ([]domain.MemberAssignment, error) {
	var out []domain.MemberAssignment
	err := s.view(ctx, "list_assignments", func(v TransactionView) error {
		if _, ok := v.FindProcess(processID); !ok {
			return domain.NotFound("list_assignments", domain.EntityProcess, processID)
		}
		out = v.ListAssignments(processID)
		return nil
	})
	return out, err
}
