package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"liderforte/pkg/domain"
)

// Readiness score bands.
const (
	optimalScore   = 90
	readyScore     = 75
	preparingScore = 40
)

// CellFacts are the metrics the readiness criteria read.
type CellFacts struct {
	MemberCount       int
	QualifiedLeaders  int
	MeetingsPerMonth  float64
	AverageAttendance float64
	GrowthRate        float64
	Stability         float64
	CellAgeMonths     int
	LeaderMonths      int
	// AsOf is the reference time for ages and projections: the stats
	// timestamp when Measured, otherwise the evaluation time.
	AsOf     time.Time
	Measured bool
	// Now is the evaluation time the overdue check compares against.
	Now time.Time
}

// metric returns the current value a criterion is compared against.
func (f CellFacts) metric(rule domain.CriterionRule) float64 {
	switch rule.(type) {
	case domain.MemberCountRule:
		return float64(f.MemberCount)
	case domain.MeetingFrequencyRule:
		return f.MeetingsPerMonth
	case domain.AverageAttendanceRule:
		return f.AverageAttendance
	case domain.PotentialLeadersRule:
		return float64(f.QualifiedLeaders)
	case domain.CellAgeRule:
		return float64(f.CellAgeMonths)
	case domain.LeaderMaturityRule:
		return float64(f.LeaderMonths)
	case domain.GrowthRateRule:
		return f.GrowthRate
	case domain.StabilityRule:
		return f.Stability
	}
	return 0
}

// EvaluateCriteria scores facts against criteria. previous is the last stored
// snapshot for the cell, if any. The returned snapshot carries a fingerprint
// of its content but no cell identity or evaluation time.
func EvaluateCriteria(criteria []domain.MultiplicationCriterion, facts CellFacts, previous *domain.ReadinessSnapshot, settings Settings) domain.ReadinessSnapshot {
	results := make([]domain.CriterionResult, 0, len(criteria))
	var weighted, totalWeight float64
	for _, c := range criteria {
		if c.Rule == nil {
			continue
		}
		threshold := c.Rule.Threshold()
		current := facts.metric(c.Rule)
		score := 100.0
		if threshold > 0 {
			score = math.Min(current/threshold, 1) * 100
		}
		score = round2(math.Max(score, 0))
		results = append(results, domain.CriterionResult{
			CriterionID: c.ID,
			Name:        c.Name,
			Type:        c.Type(),
			Threshold:   threshold,
			Current:     round2(current),
			Score:       score,
			Met:         current >= threshold,
			Required:    c.Required,
			Weight:      c.Weight,
		})
		weighted += c.Weight * score
		totalWeight += c.Weight
	}
	overall := 0.0
	if totalWeight > 0 {
		overall = round2(weighted / totalWeight)
	}

	unmetRequired := make([]domain.CriterionResult, 0)
	for _, r := range results {
		if r.Required && !r.Met {
			unmetRequired = append(unmetRequired, r)
		}
	}
	sort.SliceStable(unmetRequired, func(i, j int) bool {
		if unmetRequired[i].Weight != unmetRequired[j].Weight {
			return unmetRequired[i].Weight > unmetRequired[j].Weight
		}
		return unmetRequired[i].Name < unmetRequired[j].Name
	})
	requiredMet := len(unmetRequired) == 0

	snap := domain.ReadinessSnapshot{
		Score:           overall,
		Criteria:        results,
		Confidence:      confidence(results),
		Recommendations: readinessRecommendations(results),
		BlockingFactors: make([]string, 0, len(unmetRequired)),
	}
	for _, r := range unmetRequired {
		snap.BlockingFactors = append(snap.BlockingFactors, r.Name)
	}

	var previousProjection *time.Time
	if previous != nil && previous.ProjectedReadyDate != nil {
		p := *previous.ProjectedReadyDate
		previousProjection = &p
	}
	switch {
	case requiredMet:
		// Only a projection recorded while the cell was not ready is carried.
		snap.ProjectedReadyDate = previousProjection
	case !facts.Measured && previousProjection != nil && sameStrings(previous.BlockingFactors, snap.BlockingFactors):
		// Without a stats timestamp the base would be the evaluation clock.
		snap.ProjectedReadyDate = previousProjection
	default:
		snap.ProjectedReadyDate = projectReadyDate(unmetRequired, facts, settings)
	}

	now := facts.Now
	if now.IsZero() {
		now = facts.AsOf
	}
	switch {
	case requiredMet && previousProjection != nil && !now.Before(previousProjection.Add(settings.OverdueAfter)):
		snap.Status = domain.ReadinessOverdue
	case requiredMet && overall >= optimalScore:
		snap.Status = domain.ReadinessOptimal
	case requiredMet && overall >= readyScore:
		snap.Status = domain.ReadinessReady
	case overall >= preparingScore || nearlyMet(unmetRequired, settings.PreparingMargin):
		snap.Status = domain.ReadinessPreparing
	default:
		snap.Status = domain.ReadinessNotReady
	}
	snap.Fingerprint = fingerprint(snap)
	return snap
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nearlyMet reports whether an unmet required criterion is within margin of its threshold.
func nearlyMet(unmet []domain.CriterionResult, margin float64) bool {
	for _, r := range unmet {
		if r.Threshold > 0 && r.Current >= r.Threshold*margin {
			return true
		}
	}
	return false
}

// confidence grades the share of optional criteria that are met.
func confidence(results []domain.CriterionResult) domain.Confidence {
	optional, met := 0, 0
	for _, r := range results {
		if r.Required {
			continue
		}
		optional++
		if r.Met {
			met++
		}
	}
	if optional == 0 {
		return domain.ConfidenceMedium
	}
	switch {
	case met*3 >= optional*2:
		return domain.ConfidenceHigh
	case met*3 >= optional:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// projectReadyDate estimates when the unmet required criteria will be met.
// Any criterion that cannot be estimated yields no projection.
func projectReadyDate(unmet []domain.CriterionResult, facts CellFacts, settings Settings) *time.Time {
	if facts.AsOf.IsZero() {
		return nil
	}
	months := 0
	for _, r := range unmet {
		var need int
		switch r.Type {
		case domain.CriterionMemberCount:
			if facts.GrowthRate <= 0 || facts.MemberCount == 0 {
				return nil
			}
			perMonth := float64(facts.MemberCount) * facts.GrowthRate / 100 / 3
			need = int(math.Ceil((r.Threshold - r.Current) / perMonth))
		case domain.CriterionCellAge, domain.CriterionLeaderMaturity:
			need = int(math.Ceil(r.Threshold - r.Current))
		default:
			if settings.ProjectionHorizonMonths <= 0 {
				return nil
			}
			need = settings.ProjectionHorizonMonths
		}
		if need > months {
			months = need
		}
	}
	projected := facts.AsOf.AddDate(0, months, 0)
	return &projected
}

func readinessRecommendations(results []domain.CriterionResult) []string {
	ordered := make([]domain.CriterionResult, 0, len(results))
	for _, r := range results {
		if !r.Met {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Required != ordered[j].Required {
			return ordered[i].Required
		}
		return ordered[i].Weight > ordered[j].Weight
	})
	out := make([]string, 0, len(ordered))
	for _, r := range ordered {
		out = append(out, recommendationFor(r))
	}
	return out
}

func recommendationFor(r domain.CriterionResult) string {
	switch r.Type {
	case domain.CriterionMemberCount:
		return fmt.Sprintf("Invite new people: %.0f of %.0f members", r.Current, r.Threshold)
	case domain.CriterionPotentialLeaders:
		return fmt.Sprintf("Train apprentices: %.0f of %.0f qualified leaders", r.Current, r.Threshold)
	case domain.CriterionMeetingFrequency:
		return fmt.Sprintf("Meet more regularly: %.1f of %.1f meetings per month", r.Current, r.Threshold)
	case domain.CriterionAverageAttendance:
		return fmt.Sprintf("Improve attendance: %.0f%% against a %.0f%% target", r.Current, r.Threshold)
	case domain.CriterionCellAge:
		return fmt.Sprintf("Let the cell mature: %.0f of %.0f months", r.Current, r.Threshold)
	case domain.CriterionLeaderMaturity:
		return fmt.Sprintf("Leader experience: %.0f of %.0f months leading", r.Current, r.Threshold)
	case domain.CriterionGrowthRate:
		return fmt.Sprintf("Focus on growth: %.1f%% against a %.1f%% target", r.Current, r.Threshold)
	case domain.CriterionStability:
		return fmt.Sprintf("Strengthen stability: %.0f of %.0f", r.Current, r.Threshold)
	}
	return r.Name
}

type fingerprintContent struct {
	Score              float64                  `json:"score"`
	Status             domain.ReadinessStatus   `json:"status"`
	Criteria           []domain.CriterionResult `json:"criteria"`
	Confidence         domain.Confidence        `json:"confidence"`
	ProjectedReadyDate *time.Time               `json:"projected_ready_date"`
	Recommendations    []string                 `json:"recommendations"`
	BlockingFactors    []string                 `json:"blocking_factors"`
}

func fingerprint(s domain.ReadinessSnapshot) string {
	data, err := json.Marshal(fingerprintContent{
		Score:              s.Score,
		Status:             s.Status,
		Criteria:           s.Criteria,
		Confidence:         s.Confidence,
		ProjectedReadyDate: s.ProjectedReadyDate,
		Recommendations:    s.Recommendations,
		BlockingFactors:    s.BlockingFactors,
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// factsAsOf is the reference time for a cell's facts.
func (s *Service) factsAsOf(cell domain.Cell) time.Time {
	if !cell.Stats.AsOf.IsZero() {
		return cell.Stats.AsOf.UTC()
	}
	return s.now()
}

func (s *Service) cellFacts(v TransactionView, cell domain.Cell, settings Settings) CellFacts {
	asOf := s.factsAsOf(cell)
	members := v.ListMembers(cell.ID)
	stability := settings.StabilityPlaceholder
	if cell.Stats.HasHistory() {
		stability = cell.Stats.StabilityScore
	}
	return CellFacts{
		MemberCount:       len(activeMembers(members)),
		QualifiedLeaders:  len(QualifyCandidates(leadershipPool(cell, members), settings.LeadershipThreshold, asOf, nil)),
		MeetingsPerMonth:  cell.Stats.MeetingsPerMonth,
		AverageAttendance: cell.Stats.AverageAttendance,
		GrowthRate:        cell.Stats.GrowthRate,
		Stability:         stability,
		CellAgeMonths:     wholeMonths(cell.FoundedAt, asOf),
		LeaderMonths:      wholeMonths(cell.LeaderSince, asOf),
		AsOf:              asOf,
		Measured:          !cell.Stats.AsOf.IsZero(),
		Now:               s.now(),
	}
}

// EvaluateReadiness recomputes and stores the readiness snapshot of a cell.
// Re-evaluating unchanged facts returns the stored snapshot untouched.
func (s *Service) EvaluateReadiness(ctx context.Context, cellID string) (snap domain.ReadinessSnapshot, err error) {
	ctx, op := s.begin(ctx, "evaluate_readiness", "")
	op.entityID = cellID
	defer func() { err = op.end(ctx, err) }()

	cell, err := s.findCell(ctx, "evaluate_readiness", cellID)
	if err != nil {
		return domain.ReadinessSnapshot{}, err
	}
	if !cell.Active {
		return domain.ReadinessSnapshot{}, domain.InvalidState("evaluate_readiness", domain.EntityCell, cellID, "cell is inactive")
	}
	snap, _, err = s.evaluateCell(ctx, cell)
	return snap, err
}

func (s *Service) evaluateCell(ctx context.Context, cell domain.Cell) (domain.ReadinessSnapshot, bool, error) {
	criteria, err := s.criteria.ActiveCriteria(ctx, cell.OrganizationID)
	if err != nil {
		return domain.ReadinessSnapshot{}, false, fmt.Errorf("load criteria for organization %s: %w", cell.OrganizationID, err)
	}
	if len(criteria) == 0 {
		criteria = DefaultCriteria(cell.OrganizationID)
	}
	settings := s.settings.ForOrganization(cell.OrganizationID)

	var result domain.ReadinessSnapshot
	changed := false
	err = s.run(ctx, "evaluate_readiness", func(tx Transaction) error {
		v := tx.Snapshot()
		current, ok := v.FindCell(cell.ID)
		if !ok {
			return domain.NotFound("evaluate_readiness", domain.EntityCell, cell.ID)
		}
		var previous *domain.ReadinessSnapshot
		if stored, ok := v.FindReadiness(cell.ID); ok {
			previous = &stored
		}
		next := EvaluateCriteria(criteria, s.cellFacts(v, current, settings), previous, settings)
		if previous != nil && previous.Fingerprint == next.Fingerprint {
			result = *previous
			return nil
		}
		next.CellID = current.ID
		next.OrganizationID = current.OrganizationID
		next.EvaluatedAt = s.now()
		saved, err := tx.UpsertReadiness(next)
		if err != nil {
			return err
		}
		result = saved
		changed = true
		return nil
	})
	if err != nil {
		return domain.ReadinessSnapshot{}, false, err
	}
	s.logger.Debug("readiness evaluated", "cell", cell.ID, "score", result.Score, "status", string(result.Status), "changed", changed)
	return result, changed, nil
}

// CellOutcome is the per-cell result of a batch evaluation.
type CellOutcome struct {
	CellID   string                    `json:"cell_id"`
	Snapshot *domain.ReadinessSnapshot `json:"snapshot,omitempty"`
	Updated  bool                      `json:"updated"`
	Error    string                    `json:"error,omitempty"`
	err      error
}

// BatchReport summarises a readiness batch over one organization.
type BatchReport struct {
	OrganizationID string        `json:"organization_id"`
	Evaluated      int           `json:"evaluated"`
	Updated        int           `json:"updated"`
	Failed         int           `json:"failed"`
	Outcomes       []CellOutcome `json:"outcomes"`
}

// Err aggregates failed cells, or returns nil when every cell succeeded.
func (r BatchReport) Err() error {
	if r.Failed == 0 {
		return nil
	}
	be := &domain.BatchError{Op: "evaluate_readiness_batch"}
	for _, o := range r.Outcomes {
		if o.err != nil {
			be.Items = append(be.Items, domain.ItemError{ID: o.CellID, Err: o.err})
		}
	}
	return be
}

// EvaluateReadinessBatch evaluates every active cell of an organization. A
// failing cell is reported in its outcome and does not stop the batch; the
// returned error covers only the failure to list cells.
func (s *Service) EvaluateReadinessBatch(ctx context.Context, organizationID string) (report BatchReport, err error) {
	ctx, op := s.begin(ctx, "evaluate_readiness_batch", "")
	op.entityID = organizationID
	defer func() { err = op.end(ctx, err) }()

	var cells []domain.Cell
	if err := s.view(ctx, "evaluate_readiness_batch", func(v TransactionView) error {
		cells = v.ListCells(organizationID)
		return nil
	}); err != nil {
		return BatchReport{}, err
	}
	report = BatchReport{OrganizationID: organizationID, Outcomes: make([]CellOutcome, 0, len(cells))}
	for _, cell := range cells {
		if !cell.Active {
			continue
		}
		outcome := CellOutcome{CellID: cell.ID}
		snap, changed, evalErr := s.evaluateCell(ctx, cell)
		report.Evaluated++
		if evalErr != nil {
			outcome.err = evalErr
			outcome.Error = evalErr.Error()
			report.Failed++
			s.logger.Warn("readiness evaluation failed", "cell", cell.ID, "error", evalErr)
		} else {
			outcome.Snapshot = &snap
			outcome.Updated = changed
			if changed {
				report.Updated++
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	s.logger.Info("readiness batch finished", "organization", organizationID,
		"evaluated", report.Evaluated, "updated", report.Updated, "failed", report.Failed)
	return report, nil
}

// GetReadiness returns the stored snapshot of a cell.
func (s *Service) GetReadiness(ctx context.Context, cellID string) (domain.ReadinessSnapshot, error) {
	var snap domain.ReadinessSnapshot
	err := s.view(ctx, "get_readiness", func(v TransactionView) error {
		var ok bool
		if snap, ok = v.FindReadiness(cellID); !ok {
			return domain.NotFound("get_readiness", domain.EntityReadiness, cellID)
		}
		return nil
	})
	return snap, err
}
