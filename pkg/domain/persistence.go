package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateCell(Cell) (Cell, error)
	UpdateCell(id string, mutator func(*Cell) error) (Cell, error)
	CreateMember(Member) (Member, error)
	UpdateMember(id string, mutator func(*Member) error) (Member, error)
	UpsertOrgMembership(OrgMembership) (OrgMembership, error)
	UpsertCriterion(MultiplicationCriterion) (MultiplicationCriterion, error)
	UpsertTemplate(DistributionTemplate) (DistributionTemplate, error)
	UpsertReadiness(ReadinessSnapshot) (ReadinessSnapshot, error)
	CreateProcess(MultiplicationProcess) (MultiplicationProcess, error)
	// UpdateProcess applies mutator only when the stored status equals
	// expected; otherwise it fails with a Conflict error.
	UpdateProcess(id string, expected ProcessStatus, mutator func(*MultiplicationProcess) error) (MultiplicationProcess, error)
	UpsertAssignment(MemberAssignment) (MemberAssignment, error)
	DeleteAssignment(id string) error
	DeleteProcessAssignments(processID string) (int, error)
}

// TransactionView provides read-only access to snapshot data for rules and readers.
type TransactionView interface {
	FindCell(id string) (Cell, bool)
	ListCells(organizationID string) []Cell
	FindMember(id string) (Member, bool)
	ListMembers(cellID string) []Member
	ListPersonMemberships(personID string) []Member
	FindOrgMembership(organizationID, personID string) (OrgMembership, bool)
	ListOrgMemberships(organizationID string) []OrgMembership
	ListCriteria(organizationID string) []MultiplicationCriterion
	FindTemplate(id string) (DistributionTemplate, bool)
	FindReadiness(cellID string) (ReadinessSnapshot, bool)
	ListReadiness(organizationID string) []ReadinessSnapshot
	FindProcess(id string) (MultiplicationProcess, bool)
	ListProcesses(organizationID string) []MultiplicationProcess
	ListCellProcesses(cellID string) []MultiplicationProcess
	ListAssignments(processID string) []MemberAssignment
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
