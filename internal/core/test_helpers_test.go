package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"liderforte/internal/infra/persistence/memory"
	"liderforte/pkg/domain"
)

const testOrg = "org-1"

// Person ids used by the fixture organization.
const (
	adminID      = "p-admin"
	supervisorID = "p-sup"
	approverID   = "p-approver"
	leaderID     = "p-leader"
	memberID     = "p-member"
	outsiderID   = "p-outsider"
)

var fixedNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func strPtr(v string) *string { return &v }

func statusPtr(v domain.ProcessStatus) *domain.ProcessStatus { return &v }

// fixture is a seeded organization with one multiplying cell.
type fixture struct {
	svc     *Service
	cell    domain.Cell
	members []domain.Member
	// candidate is the leadership-track member expected to lead the new cell.
	candidate domain.Member
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

// seedOrg grants the fixture roles through the service.
func seedOrg(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	grants := []domain.OrgMembership{
		{OrganizationID: testOrg, PersonID: adminID, Role: domain.RoleAdmin},
		{OrganizationID: testOrg, PersonID: supervisorID, Role: domain.RoleSupervisor},
		{OrganizationID: testOrg, PersonID: approverID, Role: domain.RoleSupervisor, Approver: true},
		{OrganizationID: testOrg, PersonID: leaderID, Role: domain.RoleLeader},
		{OrganizationID: testOrg, PersonID: memberID, Role: domain.RoleMember},
	}
	for _, g := range grants {
		if _, err := svc.GrantOrgRole(ctx, adminID, g); err != nil {
			t.Fatalf("grant %s: %v", g.PersonID, err)
		}
	}
}

// seedCell creates an active cell led by leader with n members. The leader
// is one of the n members and one other member is a qualified candidate.
func seedCell(t *testing.T, svc *Service, name, leader string, n int) (domain.Cell, []domain.Member, domain.Member) {
	t.Helper()
	ctx := context.Background()
	cell, err := svc.CreateCell(ctx, adminID, domain.Cell{
		OrganizationID: testOrg,
		Name:           name,
		LeaderID:       leader,
		SupervisorID:   strPtr(supervisorID),
		FoundedAt:      time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		MeetingDay:     "thursday",
	})
	if err != nil {
		t.Fatalf("create cell: %v", err)
	}
	joined := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	var members []domain.Member
	var candidate domain.Member
	for i := 0; i < n; i++ {
		m := domain.Member{
			CellID:          cell.ID,
			PersonID:        fmt.Sprintf("%s-person-%02d", name, i),
			DisplayName:     fmt.Sprintf("Member %02d", i),
			EngagementScore: float64(30 + i),
			JoinedAt:        joined,
		}
		switch i {
		case 0:
			m.PersonID = leader
			m.EngagementScore = 95
			m.LeadershipTrack = true
		case 1:
			m.EngagementScore = 82
			m.LeadershipTrack = true
		}
		created, err := svc.AddMember(ctx, adminID, m)
		if err != nil {
			t.Fatalf("add member %d: %v", i, err)
		}
		members = append(members, created)
		if i == 1 {
			candidate = created
		}
	}
	return cell, members, candidate
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	svc := newTestService(t, opts...)
	seedOrg(t, svc)
	cell, members, candidate := seedCell(t, svc, "alpha", leaderID, 14)
	return fixture{svc: svc, cell: cell, members: members, candidate: candidate}
}

// healthyStats meets every built-in criterion.
func healthyStats() domain.CellStats {
	return domain.CellStats{
		MeetingsPerMonth:  4,
		AverageAttendance: 85,
		GrowthRate:        15,
		StabilityScore:    88,
		AsOf:              fixedNow,
	}
}

// assignmentsFor builds a full assignment list making the candidate the new
// leader and moving every member whose index is odd.
func (f fixture) assignmentsFor() []AssignmentInput {
	out := make([]AssignmentInput, 0, len(f.members))
	for i, m := range f.members {
		in := AssignmentInput{MemberID: m.ID, Type: domain.AssignmentStaysSource}
		switch {
		case m.ID == f.candidate.ID:
			in.Type = domain.AssignmentNewLeader
		case i%2 == 1:
			in.Type = domain.AssignmentMovesNew
		}
		out = append(out, in)
	}
	return out
}

// approvedProcess drives a process from start to approved.
func (f fixture) approvedProcess(t *testing.T) domain.MultiplicationProcess {
	t.Helper()
	ctx := context.Background()
	proc, err := f.svc.StartMultiplication(ctx, leaderID, f.cell.ID, domain.MultiplicationPlan{NewCellName: "Alpha II", MeetingDay: "tuesday"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.AdvanceProcess(ctx, leaderID, proc.ID, domain.ProcessMemberSelection); err != nil {
		t.Fatalf("member selection: %v", err)
	}
	if _, err := f.svc.UpdateAssignments(ctx, leaderID, proc.ID, f.assignmentsFor()); err != nil {
		t.Fatalf("assignments: %v", err)
	}
	if _, err := f.svc.AdvanceProcess(ctx, leaderID, proc.ID, domain.ProcessPlanReview); err != nil {
		t.Fatalf("plan review: %v", err)
	}
	if _, err := f.svc.AdvanceProcess(ctx, leaderID, proc.ID, domain.ProcessPendingApproval); err != nil {
		t.Fatalf("pending approval: %v", err)
	}
	approved, err := f.svc.ApproveMultiplication(ctx, adminID, proc.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return approved
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

// faultyStore wraps a persistent store and injects failures into the
// transactions it hands out.
type faultyStore struct {
	PersistentStore
	failCreateMember  bool
	failAssignmentFor string
}

var errInjected = errors.New("injected store failure")

func (s *faultyStore) RunInTransaction(ctx context.Context, fn func(Transaction) error) (domain.Result, error) {
	return s.PersistentStore.RunInTransaction(ctx, func(tx Transaction) error {
		return fn(faultyTx{Transaction: tx, store: s})
	})
}

type faultyTx struct {
	Transaction
	store *faultyStore
}

func (tx faultyTx) CreateMember(m domain.Member) (domain.Member, error) {
	if tx.store.failCreateMember {
		return domain.Member{}, domain.Unavailable("create_member", errInjected)
	}
	return tx.Transaction.CreateMember(m)
}

func (tx faultyTx) UpsertAssignment(a domain.MemberAssignment) (domain.MemberAssignment, error) {
	if tx.store.failAssignmentFor != "" && a.MemberID == tx.store.failAssignmentFor {
		return domain.MemberAssignment{}, domain.Unavailable("upsert_assignment", errInjected)
	}
	return tx.Transaction.UpsertAssignment(a)
}

// newFaultyFixture builds the standard fixture over a faultyStore.
func newFaultyFixture(t *testing.T, opts ...Option) (fixture, *faultyStore) {
	t.Helper()
	base := memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(func() time.Time { return fixedNow }))
	store := &faultyStore{PersistentStore: base}
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	svc := NewService(store, opts...)
	seedOrg(t, svc)
	cell, members, candidate := seedCell(t, svc, "alpha", leaderID, 14)
	return fixture{svc: svc, cell: cell, members: members, candidate: candidate}, store
}

type failingCriteria struct{ err error }

func (f failingCriteria) ActiveCriteria(context.Context, string) ([]domain.MultiplicationCriterion, error) {
	return nil, f.err
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (l *captureLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, level+":"+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.record("d", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record("i", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record("w", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record("e", msg) }

func (l *captureLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.calls {
		if c == entry {
			return true
		}
	}
	return false
}
