package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"liderforte/pkg/domain"
)

func seedCell(t *testing.T, store *Store) domain.Cell {
	t.Helper()
	var cell domain.Cell
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		cell, err = tx.CreateCell(domain.Cell{OrganizationID: "org-1", Name: "Alpha", LeaderID: "p-lead", Active: true})
		return err
	})
	if err != nil {
		t.Fatalf("seed cell: %v", err)
	}
	return cell
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindCell("missing"); ok {
			t.Fatalf("expected missing cell lookup")
		}
		created, err := tx.CreateCell(domain.Cell{OrganizationID: "org-1", Name: "Alpha"})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if len(tx.Snapshot().ListCells("org-1")) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	snapshot := store.ExportState()
	if len(snapshot.Cells) != 1 {
		t.Fatalf("expected exported cell, got %d", len(snapshot.Cells))
	}
	store.ImportState(Snapshot{})
	_ = store.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListCells("")) != 0 {
			t.Fatalf("expected cleared state")
		}
		return nil
	})
	store.ImportState(snapshot)
	_ = store.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListCells("org-1")) != 1 {
			t.Fatalf("expected restored state")
		}
		return nil
	})
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateCell(domain.Cell{OrganizationID: "org-1", Name: "Alpha"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := len(store.ExportState().Cells); got != 0 {
		t.Fatalf("expected rollback, found %d cells", got)
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateCell(domain.Cell{OrganizationID: "org-1", Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation classification")
	}
	if len(store.ExportState().Cells) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "no"}}}, nil
}

func TestCommitHookFailureLeavesStateUntouched(t *testing.T) {
	hookErr := errors.New("disk full")
	calls := 0
	store := NewStore(nil, WithCommitHook(func(_ context.Context, snap Snapshot) error {
		calls++
		if len(snap.Cells) != 1 {
			t.Fatalf("hook should see pending state")
		}
		return hookErr
	}))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateCell(domain.Cell{OrganizationID: "org-1", Name: "Alpha"})
		return e
	})
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one hook call, got %d", calls)
	}
	if len(store.ExportState().Cells) != 0 {
		t.Fatalf("failed hook must not publish state")
	}
}

func TestCommitHookSkippedForReadOnlyTransactions(t *testing.T) {
	calls := 0
	store := NewStore(nil, WithCommitHook(func(context.Context, Snapshot) error {
		calls++
		return nil
	}))
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no hook call, got %d", calls)
	}
}

func TestCancelledContextIsRetryable(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil })
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if err := store.View(ctx, func(domain.TransactionView) error { return nil }); !domain.IsRetryable(err) {
		t.Fatalf("expected retryable view error, got %v", err)
	}
}

func TestUpdateProcessCompareAndSet(t *testing.T) {
	store := NewStore(nil)
	cell := seedCell(t, store)
	ctx := context.Background()
	var proc domain.MultiplicationProcess
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		proc, err = tx.CreateProcess(domain.MultiplicationProcess{OrganizationID: "org-1", SourceCellID: cell.ID})
		return err
	})
	if err != nil {
		t.Fatalf("create process: %v", err)
	}
	if proc.Status != domain.ProcessDraft {
		t.Fatalf("expected draft default, got %s", proc.Status)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateProcess(proc.ID, domain.ProcessMemberSelection, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessLeaderAssignment
			return nil
		})
		return err
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateProcess(proc.ID, domain.ProcessDraft, func(p *domain.MultiplicationProcess) error {
			p.Status = domain.ProcessMemberSelection
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("expected CAS success, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateProcess("missing", domain.ProcessDraft, func(*domain.MultiplicationProcess) error { return nil })
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActiveMembershipUniqueness(t *testing.T) {
	store := NewStore(nil)
	cell := seedCell(t, store)
	ctx := context.Background()
	add := func() error {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateMember(domain.Member{CellID: cell.ID, PersonID: "p-1", Active: true})
			return err
		})
		return err
	}
	if err := add(); err != nil {
		t.Fatalf("first membership: %v", err)
	}
	if err := add(); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate active membership, got %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateMember(domain.Member{CellID: "missing", PersonID: "p-2", Active: true})
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing cell, got %v", err)
	}
}

func TestAssignmentUpsertByProcessAndMember(t *testing.T) {
	store := NewStore(nil)
	cell := seedCell(t, store)
	ctx := context.Background()
	var procID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		p, err := tx.CreateProcess(domain.MultiplicationProcess{OrganizationID: "org-1", SourceCellID: cell.ID})
		if err != nil {
			return err
		}
		procID = p.ID
		if _, err := tx.UpsertAssignment(domain.MemberAssignment{ProcessID: p.ID, MemberID: "m-1", Type: domain.AssignmentMovesNew}); err != nil {
			return err
		}
		if _, err := tx.UpsertAssignment(domain.MemberAssignment{ProcessID: p.ID, MemberID: "m-1", Type: domain.AssignmentNewLeader}); err != nil {
			return err
		}
		_, err = tx.UpsertAssignment(domain.MemberAssignment{ProcessID: p.ID, MemberID: "m-2", Type: domain.AssignmentStaysSource})
		return err
	})
	if err != nil {
		t.Fatalf("seed assignments: %v", err)
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		rows := v.ListAssignments(procID)
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0].MemberID != "m-1" || rows[0].Type != domain.AssignmentNewLeader {
			t.Fatalf("expected upserted new leader row, got %+v", rows[0])
		}
		return nil
	})

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpsertAssignment(domain.MemberAssignment{ProcessID: procID, MemberID: "m-3", Type: "bogus"})
		return err
	})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		n, err := tx.DeleteProcessAssignments(procID)
		if n != 2 {
			t.Fatalf("expected 2 removed, got %d", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestReadinessSlotIsPerCell(t *testing.T) {
	store := NewStore(nil)
	cell := seedCell(t, store)
	ctx := context.Background()
	for _, score := range []float64{40, 80} {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpsertReadiness(domain.ReadinessSnapshot{CellID: cell.ID, OrganizationID: "org-1", Score: score})
			return err
		})
		if err != nil {
			t.Fatalf("upsert readiness: %v", err)
		}
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		list := v.ListReadiness("org-1")
		if len(list) != 1 || list[0].Score != 80 {
			t.Fatalf("expected single latest snapshot, got %+v", list)
		}
		return nil
	})
}

func TestViewReturnsDetachedClones(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(nil, WithClock(func() time.Time { return fixed }))
	cell := seedCell(t, store)
	if !cell.CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock timestamp, got %v", cell.CreatedAt)
	}
	sup := "p-sup"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateCell(cell.ID, func(c *domain.Cell) error {
			c.SupervisorID = &sup
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		got, _ := v.FindCell(cell.ID)
		*got.SupervisorID = "mutated"
		again, _ := v.FindCell(cell.ID)
		if *again.SupervisorID != "p-sup" {
			t.Fatalf("view leaked internal pointer")
		}
		return nil
	})
}
