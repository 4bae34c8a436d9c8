// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments, and as the transactional
// engine behind the snapshotting SQL backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"liderforte/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Cell aliases domain.Cell for in-memory persistence operations.
	Cell = domain.Cell
	// Member aliases domain.Member.
	Member = domain.Member
	// OrgMembership aliases domain.OrgMembership.
	OrgMembership = domain.OrgMembership
	// Criterion aliases domain.MultiplicationCriterion.
	Criterion = domain.MultiplicationCriterion
	// Template aliases domain.DistributionTemplate.
	Template = domain.DistributionTemplate
	// Readiness aliases domain.ReadinessSnapshot.
	Readiness = domain.ReadinessSnapshot
	// Process aliases domain.MultiplicationProcess.
	Process = domain.MultiplicationProcess
	// Assignment aliases domain.MemberAssignment.
	Assignment = domain.MemberAssignment
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	cells       map[string]Cell
	members     map[string]Member
	memberships map[string]OrgMembership
	criteria    map[string]Criterion
	templates   map[string]Template
	readiness   map[string]Readiness
	processes   map[string]Process
	assignments map[string]Assignment
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Cells       map[string]Cell          `json:"cells"`
	Members     map[string]Member        `json:"members"`
	Memberships map[string]OrgMembership `json:"memberships"`
	Criteria    map[string]Criterion     `json:"criteria"`
	Templates   map[string]Template      `json:"templates"`
	Readiness   map[string]Readiness     `json:"readiness"`
	Processes   map[string]Process       `json:"processes"`
	Assignments map[string]Assignment    `json:"assignments"`
}

func newMemoryState() memoryState {
	return memoryState{
		cells:       make(map[string]Cell),
		members:     make(map[string]Member),
		memberships: make(map[string]OrgMembership),
		criteria:    make(map[string]Criterion),
		templates:   make(map[string]Template),
		readiness:   make(map[string]Readiness),
		processes:   make(map[string]Process),
		assignments: make(map[string]Assignment),
	}
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func (s memoryState) clone() memoryState {
	return memoryState{
		cells:       cloneMap(s.cells, cloneCell),
		members:     cloneMap(s.members, cloneMember),
		memberships: cloneMap(s.memberships, identity[OrgMembership]),
		criteria:    cloneMap(s.criteria, identity[Criterion]),
		templates:   cloneMap(s.templates, cloneTemplate),
		readiness:   cloneMap(s.readiness, cloneReadiness),
		processes:   cloneMap(s.processes, cloneProcess),
		assignments: cloneMap(s.assignments, identity[Assignment]),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Cells:       c.cells,
		Members:     c.members,
		Memberships: c.memberships,
		Criteria:    c.criteria,
		Templates:   c.templates,
		Readiness:   c.readiness,
		Processes:   c.processes,
		Assignments: c.assignments,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		cells:       s.Cells,
		members:     s.Members,
		memberships: s.Memberships,
		criteria:    s.Criteria,
		templates:   s.Templates,
		readiness:   s.Readiness,
		processes:   s.Processes,
		assignments: s.Assignments,
	}
	empty := newMemoryState()
	if state.cells == nil {
		state.cells = empty.cells
	}
	if state.members == nil {
		state.members = empty.members
	}
	if state.memberships == nil {
		state.memberships = empty.memberships
	}
	if state.criteria == nil {
		state.criteria = empty.criteria
	}
	if state.templates == nil {
		state.templates = empty.templates
	}
	if state.readiness == nil {
		state.readiness = empty.readiness
	}
	if state.processes == nil {
		state.processes = empty.processes
	}
	if state.assignments == nil {
		state.assignments = empty.assignments
	}
	return state.clone()
}

func identity[T any](v T) T { return v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCell(c Cell) Cell {
	cp := c
	cp.ParentCellID = clonePtr(c.ParentCellID)
	cp.SupervisorID = clonePtr(c.SupervisorID)
	cp.DeactivatedAt = clonePtr(c.DeactivatedAt)
	return cp
}

func cloneMember(m Member) Member {
	cp := m
	cp.LeftAt = clonePtr(m.LeftAt)
	return cp
}

func cloneTemplate(t Template) Template {
	cp := t
	cp.LeadershipThreshold = clonePtr(t.LeadershipThreshold)
	return cp
}

func cloneReadiness(r Readiness) Readiness {
	cp := r
	cp.Criteria = append([]domain.CriterionResult(nil), r.Criteria...)
	cp.Recommendations = append([]string(nil), r.Recommendations...)
	cp.BlockingFactors = append([]string(nil), r.BlockingFactors...)
	cp.ProjectedReadyDate = clonePtr(r.ProjectedReadyDate)
	return cp
}

func cloneProcess(p Process) Process {
	cp := p
	cp.Plan.TargetDate = clonePtr(p.Plan.TargetDate)
	cp.TemplateID = clonePtr(p.TemplateID)
	cp.NewLeaderID = clonePtr(p.NewLeaderID)
	cp.NewCellID = clonePtr(p.NewCellID)
	cp.SuggestedAt = clonePtr(p.SuggestedAt)
	cp.ApprovedBy = clonePtr(p.ApprovedBy)
	cp.ApprovedAt = clonePtr(p.ApprovedAt)
	cp.CompletedAt = clonePtr(p.CompletedAt)
	return cp
}

// CommitHook runs inside the store's critical section after rules pass and
// before the new state becomes visible. A hook error aborts the commit.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// Option customises a Store.
type Option func(*Store)

// WithCommitHook registers a hook invoked on every successful transaction.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	hook   CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetCommitHook replaces the commit hook. Durable wrappers call this once
// after hydrating state.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only if fn, the rules engine and the
// commit hook all succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, domain.Unavailable("run transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.hook != nil && len(tx.changes) > 0 {
		if err := s.hook(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("view", err)
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateCell stores a new cell within the transaction.
func (tx *transaction) CreateCell(c Cell) (Cell, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.cells[c.ID]; exists {
		return Cell{}, domain.Conflict("create_cell", domain.EntityCell, c.ID, fmt.Sprintf("cell %q already exists", c.ID))
	}
	if strings.TrimSpace(c.OrganizationID) == "" {
		return Cell{}, domain.Validation("create_cell", domain.EntityCell, c.ID, "organization id required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return Cell{}, domain.Validation("create_cell", domain.EntityCell, c.ID, "name required")
	}
	if c.FoundedAt.IsZero() {
		c.FoundedAt = tx.now
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cells[c.ID] = cloneCell(c)
	tx.recordChange(Change{Entity: domain.EntityCell, Action: domain.ActionCreate, After: cloneCell(c)})
	return cloneCell(c), nil
}

// UpdateCell mutates a cell using the provided mutator function.
func (tx *transaction) UpdateCell(id string, mutator func(*Cell) error) (Cell, error) {
	current, ok := tx.state.cells[id]
	if !ok {
		return Cell{}, domain.NotFound("update_cell", domain.EntityCell, id)
	}
	before := cloneCell(current)
	if err := mutator(&current); err != nil {
		return Cell{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cells[id] = cloneCell(current)
	tx.recordChange(Change{Entity: domain.EntityCell, Action: domain.ActionUpdate, Before: before, After: cloneCell(current)})
	return cloneCell(current), nil
}

// CreateMember stores a new membership. The (cell, person) pair must not
// already hold an active membership.
func (tx *transaction) CreateMember(m Member) (Member, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.members[m.ID]; exists {
		return Member{}, domain.Conflict("create_member", domain.EntityMember, m.ID, fmt.Sprintf("member %q already exists", m.ID))
	}
	if _, ok := tx.state.cells[m.CellID]; !ok {
		return Member{}, domain.NotFound("create_member", domain.EntityCell, m.CellID)
	}
	if strings.TrimSpace(m.PersonID) == "" {
		return Member{}, domain.Validation("create_member", domain.EntityMember, m.ID, "person id required")
	}
	if m.Active {
		for _, existing := range tx.state.members {
			if existing.Active && existing.CellID == m.CellID && existing.PersonID == m.PersonID {
				return Member{}, domain.Conflict("create_member", domain.EntityMember, existing.ID,
					fmt.Sprintf("person %s already has an active membership in cell %s", m.PersonID, m.CellID))
			}
		}
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = tx.now
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.members[m.ID] = cloneMember(m)
	tx.recordChange(Change{Entity: domain.EntityMember, Action: domain.ActionCreate, After: cloneMember(m)})
	return cloneMember(m), nil
}

// UpdateMember mutates a membership record.
func (tx *transaction) UpdateMember(id string, mutator func(*Member) error) (Member, error) {
	current, ok := tx.state.members[id]
	if !ok {
		return Member{}, domain.NotFound("update_member", domain.EntityMember, id)
	}
	before := cloneMember(current)
	if err := mutator(&current); err != nil {
		return Member{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.members[id] = cloneMember(current)
	tx.recordChange(Change{Entity: domain.EntityMember, Action: domain.ActionUpdate, Before: before, After: cloneMember(current)})
	return cloneMember(current), nil
}

// UpsertOrgMembership creates or replaces the role of a person in an organization.
func (tx *transaction) UpsertOrgMembership(m OrgMembership) (OrgMembership, error) {
	if m.OrganizationID == "" || m.PersonID == "" {
		return OrgMembership{}, domain.Validation("upsert_org_membership", domain.EntityOrgMembership, m.ID, "organization and person ids required")
	}
	for id, existing := range tx.state.memberships {
		if existing.OrganizationID == m.OrganizationID && existing.PersonID == m.PersonID {
			before := existing
			m.Base = existing.Base
			m.UpdatedAt = tx.now
			tx.state.memberships[id] = m
			tx.recordChange(Change{Entity: domain.EntityOrgMembership, Action: domain.ActionUpdate, Before: before, After: m})
			return m, nil
		}
	}
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.memberships[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityOrgMembership, Action: domain.ActionCreate, After: m})
	return m, nil
}

// UpsertCriterion creates or replaces a multiplication criterion.
func (tx *transaction) UpsertCriterion(c Criterion) (Criterion, error) {
	if err := c.Validate(); err != nil {
		return Criterion{}, err
	}
	action := domain.ActionCreate
	var before any
	if c.ID != "" {
		if existing, ok := tx.state.criteria[c.ID]; ok {
			if existing.OrganizationID != c.OrganizationID {
				return Criterion{}, domain.NotFound("upsert_criterion", domain.EntityCriterion, c.ID)
			}
			action = domain.ActionUpdate
			before = existing
			c.CreatedAt = existing.CreatedAt
		}
	} else {
		c.ID = tx.store.newID()
	}
	if action == domain.ActionCreate {
		c.CreatedAt = tx.now
	}
	c.UpdatedAt = tx.now
	tx.state.criteria[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCriterion, Action: action, Before: before, After: c})
	return c, nil
}

// UpsertTemplate creates or replaces a distribution template.
func (tx *transaction) UpsertTemplate(t Template) (Template, error) {
	if t.OrganizationID == "" || strings.TrimSpace(t.Name) == "" {
		return Template{}, domain.Validation("upsert_template", domain.EntityTemplate, t.ID, "organization id and name required")
	}
	if t.MoveRatio < 0 || t.MoveRatio >= 1 {
		return Template{}, domain.Validation("upsert_template", domain.EntityTemplate, t.ID, fmt.Sprintf("move ratio %v outside [0,1)", t.MoveRatio))
	}
	action := domain.ActionCreate
	var before any
	if existing, ok := tx.state.templates[t.ID]; ok && t.ID != "" {
		action = domain.ActionUpdate
		before = cloneTemplate(existing)
		t.CreatedAt = existing.CreatedAt
	} else {
		if t.ID == "" {
			t.ID = tx.store.newID()
		}
		t.CreatedAt = tx.now
	}
	t.UpdatedAt = tx.now
	tx.state.templates[t.ID] = cloneTemplate(t)
	tx.recordChange(Change{Entity: domain.EntityTemplate, Action: action, Before: before, After: cloneTemplate(t)})
	return cloneTemplate(t), nil
}

// UpsertReadiness replaces the single readiness slot of a cell.
func (tx *transaction) UpsertReadiness(r Readiness) (Readiness, error) {
	if _, ok := tx.state.cells[r.CellID]; !ok {
		return Readiness{}, domain.NotFound("upsert_readiness", domain.EntityCell, r.CellID)
	}
	action := domain.ActionCreate
	var before any
	if existing, ok := tx.state.readiness[r.CellID]; ok {
		action = domain.ActionUpdate
		before = cloneReadiness(existing)
	}
	tx.state.readiness[r.CellID] = cloneReadiness(r)
	tx.recordChange(Change{Entity: domain.EntityReadiness, Action: action, Before: before, After: cloneReadiness(r)})
	return cloneReadiness(r), nil
}

// CreateProcess stores a new multiplication process.
func (tx *transaction) CreateProcess(p Process) (Process, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.processes[p.ID]; exists {
		return Process{}, domain.Conflict("create_process", domain.EntityProcess, p.ID, fmt.Sprintf("process %q already exists", p.ID))
	}
	if _, ok := tx.state.cells[p.SourceCellID]; !ok {
		return Process{}, domain.NotFound("create_process", domain.EntityCell, p.SourceCellID)
	}
	if p.Status == "" {
		p.Status = domain.ProcessDraft
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.processes[p.ID] = cloneProcess(p)
	tx.recordChange(Change{Entity: domain.EntityProcess, Action: domain.ActionCreate, After: cloneProcess(p)})
	return cloneProcess(p), nil
}

// UpdateProcess mutates a process when its stored status equals expected.
func (tx *transaction) UpdateProcess(id string, expected domain.ProcessStatus, mutator func(*Process) error) (Process, error) {
	current, ok := tx.state.processes[id]
	if !ok {
		return Process{}, domain.NotFound("update_process", domain.EntityProcess, id)
	}
	if current.Status != expected {
		return Process{}, domain.Conflict("update_process", domain.EntityProcess, id,
			fmt.Sprintf("process %s is %s, expected %s", id, current.Status, expected))
	}
	before := cloneProcess(current)
	if err := mutator(&current); err != nil {
		return Process{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.processes[id] = cloneProcess(current)
	tx.recordChange(Change{Entity: domain.EntityProcess, Action: domain.ActionUpdate, Before: before, After: cloneProcess(current)})
	return cloneProcess(current), nil
}

// UpsertAssignment inserts or updates the assignment keyed by (process, member).
func (tx *transaction) UpsertAssignment(a Assignment) (Assignment, error) {
	if _, ok := tx.state.processes[a.ProcessID]; !ok {
		return Assignment{}, domain.NotFound("upsert_assignment", domain.EntityProcess, a.ProcessID)
	}
	if !a.Type.Valid() {
		return Assignment{}, domain.Validation("upsert_assignment", domain.EntityAssignment, a.MemberID, fmt.Sprintf("unknown assignment type %q", a.Type))
	}
	for id, existing := range tx.state.assignments {
		if existing.ProcessID == a.ProcessID && existing.MemberID == a.MemberID {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
			a.UpdatedAt = tx.now
			tx.state.assignments[id] = a
			tx.recordChange(Change{Entity: domain.EntityAssignment, Action: domain.ActionUpdate, Before: existing, After: a})
			return a, nil
		}
	}
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.assignments[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityAssignment, Action: domain.ActionCreate, After: a})
	return a, nil
}

// DeleteAssignment removes an assignment row.
func (tx *transaction) DeleteAssignment(id string) error {
	current, ok := tx.state.assignments[id]
	if !ok {
		return domain.NotFound("delete_assignment", domain.EntityAssignment, id)
	}
	delete(tx.state.assignments, id)
	tx.recordChange(Change{Entity: domain.EntityAssignment, Action: domain.ActionDelete, Before: current})
	return nil
}

// DeleteProcessAssignments removes every assignment of a process.
func (tx *transaction) DeleteProcessAssignments(processID string) (int, error) {
	if _, ok := tx.state.processes[processID]; !ok {
		return 0, domain.NotFound("delete_process_assignments", domain.EntityProcess, processID)
	}
	removed := 0
	for id, a := range tx.state.assignments {
		if a.ProcessID != processID {
			continue
		}
		delete(tx.state.assignments, id)
		tx.recordChange(Change{Entity: domain.EntityAssignment, Action: domain.ActionDelete, Before: a})
		removed++
	}
	return removed, nil
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) FindCell(id string) (Cell, bool) {
	c, ok := v.state.cells[id]
	if !ok {
		return Cell{}, false
	}
	return cloneCell(c), true
}

// ListCells returns the organization's cells ordered by name then id.
// An empty organization id lists every cell.
func (v transactionView) ListCells(organizationID string) []Cell {
	out := make([]Cell, 0)
	for _, c := range v.state.cells {
		if organizationID == "" || c.OrganizationID == organizationID {
			out = append(out, cloneCell(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindMember(id string) (Member, bool) {
	m, ok := v.state.members[id]
	if !ok {
		return Member{}, false
	}
	return cloneMember(m), true
}

// ListMembers returns active and inactive memberships of a cell ordered by join date.
func (v transactionView) ListMembers(cellID string) []Member {
	out := make([]Member, 0)
	for _, m := range v.state.members {
		if m.CellID == cellID {
			out = append(out, cloneMember(m))
		}
	}
	sortMembers(out)
	return out
}

func (v transactionView) ListPersonMemberships(personID string) []Member {
	out := make([]Member, 0)
	for _, m := range v.state.members {
		if m.PersonID == personID {
			out = append(out, cloneMember(m))
		}
	}
	sortMembers(out)
	return out
}

func sortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].ID < members[j].ID
	})
}

func (v transactionView) FindOrgMembership(organizationID, personID string) (OrgMembership, bool) {
	for _, m := range v.state.memberships {
		if m.OrganizationID == organizationID && m.PersonID == personID {
			return m, true
		}
	}
	return OrgMembership{}, false
}

// ListOrgMemberships returns the organization's role grants ordered by person.
func (v transactionView) ListOrgMemberships(organizationID string) []OrgMembership {
	out := make([]OrgMembership, 0)
	for _, m := range v.state.memberships {
		if m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

func (v transactionView) ListCriteria(organizationID string) []Criterion {
	out := make([]Criterion, 0)
	for _, c := range v.state.criteria {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindTemplate(id string) (Template, bool) {
	t, ok := v.state.templates[id]
	if !ok {
		return Template{}, false
	}
	return cloneTemplate(t), true
}

func (v transactionView) FindReadiness(cellID string) (Readiness, bool) {
	r, ok := v.state.readiness[cellID]
	if !ok {
		return Readiness{}, false
	}
	return cloneReadiness(r), true
}

func (v transactionView) ListReadiness(organizationID string) []Readiness {
	out := make([]Readiness, 0)
	for _, r := range v.state.readiness {
		if r.OrganizationID == organizationID {
			out = append(out, cloneReadiness(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CellID < out[j].CellID })
	return out
}

func (v transactionView) FindProcess(id string) (Process, bool) {
	p, ok := v.state.processes[id]
	if !ok {
		return Process{}, false
	}
	return cloneProcess(p), true
}

func (v transactionView) ListProcesses(organizationID string) []Process {
	return v.filterProcesses(func(p Process) bool { return p.OrganizationID == organizationID })
}

func (v transactionView) ListCellProcesses(cellID string) []Process {
	return v.filterProcesses(func(p Process) bool { return p.SourceCellID == cellID })
}

func (v transactionView) filterProcesses(keep func(Process) bool) []Process {
	out := make([]Process, 0)
	for _, p := range v.state.processes {
		if keep(p) {
			out = append(out, cloneProcess(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListAssignments returns a process's assignments ordered by member id.
func (v transactionView) ListAssignments(processID string) []Assignment {
	out := make([]Assignment, 0)
	for _, a := range v.state.assignments {
		if a.ProcessID == processID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
