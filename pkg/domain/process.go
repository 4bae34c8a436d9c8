package domain

// ProcessStatus enumerates the multiplication workflow states.
type ProcessStatus string

// Workflow states in forward order, followed by the failure terminals.
const (
	ProcessDraft            ProcessStatus = "draft"
	ProcessMemberSelection  ProcessStatus = "member_selection"
	ProcessLeaderAssignment ProcessStatus = "leader_assignment"
	ProcessPlanReview       ProcessStatus = "plan_review"
	ProcessPendingApproval  ProcessStatus = "pending_approval"
	ProcessApproved         ProcessStatus = "approved"
	ProcessCompleted        ProcessStatus = "completed"
	ProcessCancelled        ProcessStatus = "cancelled"
	ProcessRejected         ProcessStatus = "rejected"
)

// TotalProcessSteps is the number of workflow steps shown to users. Steps 1
// and 2 (plan details, template choice) both happen while in draft.
const TotalProcessSteps = 8

var processSteps = map[ProcessStatus]int{
	ProcessDraft:            1,
	ProcessMemberSelection:  3,
	ProcessLeaderAssignment: 4,
	ProcessPlanReview:       5,
	ProcessPendingApproval:  6,
	ProcessApproved:         7,
	ProcessCompleted:        8,
}

var processTransitions = map[ProcessStatus][]ProcessStatus{
	ProcessDraft:            {ProcessMemberSelection, ProcessCancelled},
	ProcessMemberSelection:  {ProcessLeaderAssignment, ProcessCancelled},
	ProcessLeaderAssignment: {ProcessPlanReview, ProcessCancelled},
	ProcessPlanReview:       {ProcessPendingApproval, ProcessCancelled},
	ProcessPendingApproval:  {ProcessApproved, ProcessRejected, ProcessCancelled},
	ProcessApproved:         {ProcessCompleted, ProcessCancelled},
}

// Valid reports whether the status is a known workflow state.
func (s ProcessStatus) Valid() bool {
	switch s {
	case ProcessCancelled, ProcessRejected:
		return true
	}
	_, ok := processSteps[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s ProcessStatus) Terminal() bool {
	return s == ProcessCompleted || s == ProcessCancelled || s == ProcessRejected
}

// Step returns the workflow step for the status. Cancelled and rejected
// processes report 0 since they left the forward path.
func (s ProcessStatus) Step() int {
	return processSteps[s]
}

// Progress returns the step as a percentage of TotalProcessSteps.
func (s ProcessStatus) Progress() int {
	return s.Step() * 100 / TotalProcessSteps
}

// CanTransition reports whether moving from s to next is legal. Remaining
// in the same state is always allowed.
func (s ProcessStatus) CanTransition(next ProcessStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range processTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AtLeast reports whether s is on the forward path at or beyond other.
func (s ProcessStatus) AtLeast(other ProcessStatus) bool {
	a, ok := processSteps[s]
	if !ok {
		return false
	}
	return a >= processSteps[other]
}
