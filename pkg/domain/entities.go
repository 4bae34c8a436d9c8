// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by liderforte.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCell identifies a cell (small group) record.
	EntityCell EntityType = "cell"
	// EntityMember identifies a cell membership record.
	EntityMember EntityType = "member"
	// EntityOrgMembership identifies a person's role within an organization.
	EntityOrgMembership EntityType = "org_membership"
	// EntityCriterion identifies a multiplication criterion configuration.
	EntityCriterion EntityType = "multiplication_criterion"
	// EntityReadiness identifies the latest readiness snapshot of a cell.
	EntityReadiness EntityType = "readiness_snapshot"
	// EntityProcess identifies a multiplication process.
	EntityProcess EntityType = "multiplication_process"
	// EntityAssignment identifies a member assignment within a process.
	EntityAssignment EntityType = "member_assignment"
	// EntityTemplate identifies a distribution template.
	EntityTemplate EntityType = "distribution_template"
)

// Role enumerates organization-level roles returned by identity lookups.
type Role string

// Organization roles ordered from most to least privileged.
const (
	RoleAdmin      Role = "admin"
	RolePastor     Role = "pastor"
	RoleSupervisor Role = "supervisor"
	RoleLeader     Role = "leader"
	RoleMember     Role = "member"
)

// Privileged reports whether the role administers the whole organization.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RolePastor
}

// AssignmentType classifies where a member ends up after a split.
type AssignmentType string

// Assignment types used by suggestions and manual edits.
const (
	AssignmentStaysSource AssignmentType = "stays_source"
	AssignmentMovesNew    AssignmentType = "moves_new"
	AssignmentNewLeader   AssignmentType = "new_leader"
	AssignmentUndecided   AssignmentType = "undecided"
)

// Valid reports whether the assignment type is recognised.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentStaysSource, AssignmentMovesNew, AssignmentNewLeader, AssignmentUndecided:
		return true
	}
	return false
}

// CellRole is the role a member takes in the new cell.
type CellRole string

// Roles inside the resulting cell.
const (
	CellRoleMember     CellRole = "member"
	CellRoleLeader     CellRole = "leader"
	CellRoleSupervisor CellRole = "supervisor"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CellStats carries the externally maintained facts the evaluators read.
type CellStats struct {
	MeetingsPerMonth  float64   `json:"meetings_per_month"`
	AverageAttendance float64   `json:"average_attendance"`
	GrowthRate        float64   `json:"growth_rate"`
	StabilityScore    float64   `json:"stability_score"`
	AsOf              time.Time `json:"as_of"`
}

// HasHistory reports whether stability has been measured for the cell.
func (s CellStats) HasHistory() bool {
	return s.StabilityScore > 0
}

// Cell represents a small group owned by an organization.
type Cell struct {
	Base
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	ParentCellID   *string    `json:"parent_cell_id"`
	Generation     int        `json:"generation"`
	LeaderID       string     `json:"leader_id"`
	LeaderSince    time.Time  `json:"leader_since"`
	SupervisorID   *string    `json:"supervisor_id"`
	Active         bool       `json:"active"`
	MeetingDay     string     `json:"meeting_day,omitempty"`
	MeetingTime    string     `json:"meeting_time,omitempty"`
	Location       string     `json:"location,omitempty"`
	FoundedAt      time.Time  `json:"founded_at"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	Stats          CellStats  `json:"stats"`
}

// SupervisedBy reports whether personID supervises the cell.
func (c Cell) SupervisedBy(personID string) bool {
	return c.SupervisorID != nil && *c.SupervisorID == personID
}

// Member links a person to a cell.
type Member struct {
	Base
	CellID          string     `json:"cell_id"`
	PersonID        string     `json:"person_id"`
	DisplayName     string     `json:"display_name"`
	EngagementScore float64    `json:"engagement_score"`
	LeadershipTrack bool       `json:"leadership_track"`
	JoinedAt        time.Time  `json:"joined_at"`
	Active          bool       `json:"active"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
}

// OrgMembership records a person's role within an organization.
type OrgMembership struct {
	Base
	OrganizationID string `json:"organization_id"`
	PersonID       string `json:"person_id"`
	Role           Role   `json:"role"`
	Approver       bool   `json:"approver"`
}

// DistributionTemplate supplies default ratios for member distribution.
type DistributionTemplate struct {
	Base
	OrganizationID      string   `json:"organization_id"`
	Name                string   `json:"name"`
	MoveRatio           float64  `json:"move_ratio"`
	LeadershipThreshold *float64 `json:"leadership_threshold,omitempty"`
}

// MultiplicationPlan captures the structured plan for the new cell.
type MultiplicationPlan struct {
	NewCellName string     `json:"new_cell_name"`
	MeetingDay  string     `json:"meeting_day,omitempty"`
	MeetingTime string     `json:"meeting_time,omitempty"`
	Location    string     `json:"location,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// MultiplicationProcess is the aggregate root of one split attempt.
type MultiplicationProcess struct {
	Base
	OrganizationID string             `json:"organization_id"`
	SourceCellID   string             `json:"source_cell_id"`
	InitiatorID    string             `json:"initiator_id"`
	Status         ProcessStatus      `json:"status"`
	StatusReason   string             `json:"status_reason,omitempty"`
	Plan           MultiplicationPlan `json:"plan"`
	TemplateID     *string            `json:"template_id,omitempty"`
	NewLeaderID    *string            `json:"new_leader_id,omitempty"`
	NewCellID      *string            `json:"new_cell_id,omitempty"`
	SuggestedAt    *time.Time         `json:"suggested_at,omitempty"`
	ApprovedBy     *string            `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time         `json:"approved_at,omitempty"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

// CurrentStep returns the workflow step derived from the status.
func (p MultiplicationProcess) CurrentStep() int { return p.Status.Step() }

// TotalSteps returns the fixed number of workflow steps.
func (p MultiplicationProcess) TotalSteps() int { return TotalProcessSteps }

// Progress returns completion as a percentage of the workflow.
func (p MultiplicationProcess) Progress() int { return p.Status.Progress() }

// MemberAssignment places one member within a multiplication process.
type MemberAssignment struct {
	Base
	ProcessID        string         `json:"process_id"`
	MemberID         string         `json:"member_id"`
	PersonID         string         `json:"person_id"`
	Type             AssignmentType `json:"assignment_type"`
	RoleInNewCell    CellRole       `json:"role_in_new_cell"`
	PriorityScore    float64        `json:"priority_score"`
	AutoSuggested    bool           `json:"auto_suggested"`
	ManuallyAdjusted bool           `json:"manually_adjusted"`
	Reasoning        string         `json:"reasoning,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}

// ReadinessStatus classifies a cell's multiplication readiness.
type ReadinessStatus string

// Readiness statuses ordered from least to most ready.
const (
	ReadinessNotReady  ReadinessStatus = "not_ready"
	ReadinessPreparing ReadinessStatus = "preparing"
	ReadinessReady     ReadinessStatus = "ready"
	ReadinessOptimal   ReadinessStatus = "optimal"
	ReadinessOverdue   ReadinessStatus = "overdue"
)

// ReadyForSplit reports whether the status signals the cell can split now.
func (s ReadinessStatus) ReadyForSplit() bool {
	return s == ReadinessReady || s == ReadinessOptimal || s == ReadinessOverdue
}

// Confidence expresses how corroborated a readiness result is.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// CriterionResult records one criterion's evaluation.
type CriterionResult struct {
	CriterionID string        `json:"criterion_id"`
	Name        string        `json:"name"`
	Type        CriterionType `json:"criterion_type"`
	Threshold   float64       `json:"threshold"`
	Current     float64       `json:"current"`
	Score       float64       `json:"score"`
	Met         bool          `json:"met"`
	Required    bool          `json:"required"`
	Weight      float64       `json:"weight"`
}

// ReadinessSnapshot is the latest readiness evaluation of a cell.
type ReadinessSnapshot struct {
	CellID             string            `json:"cell_id"`
	OrganizationID     string            `json:"organization_id"`
	Score              float64           `json:"score"`
	Status             ReadinessStatus   `json:"status"`
	Criteria           []CriterionResult `json:"criteria"`
	Confidence         Confidence        `json:"confidence"`
	ProjectedReadyDate *time.Time        `json:"projected_ready_date,omitempty"`
	Recommendations    []string          `json:"recommendations"`
	BlockingFactors    []string          `json:"blocking_factors"`
	Fingerprint        string            `json:"fingerprint"`
	EvaluatedAt        time.Time         `json:"evaluated_at"`
}

// Result returns the criterion result of the given type when present.
func (s ReadinessSnapshot) Result(t CriterionType) (CriterionResult, bool) {
	for _, r := range s.Criteria {
		if r.Type == t {
			return r, true
		}
	}
	return CriterionResult{}, false
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// Is lets errors.Is classify rule violations as validation failures.
func (e RuleViolationError) Is(target error) bool {
	return target == ErrValidationFailed
}
