package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"liderforte/pkg/domain"
)

func criterion(t *testing.T, id string, kind domain.CriterionType, threshold, weight float64, required bool) domain.MultiplicationCriterion {
	t.Helper()
	rule, err := domain.NewCriterionRule(kind, threshold)
	if err != nil {
		t.Fatalf("rule %s: %v", kind, err)
	}
	c := domain.MultiplicationCriterion{OrganizationID: testOrg, Name: string(kind), Rule: rule, Weight: weight, Required: required, Active: true}
	c.ID = id
	return c
}

func TestEvaluateCriteriaScoring(t *testing.T) {
	criteria := []domain.MultiplicationCriterion{
		criterion(t, "c1", domain.CriterionMemberCount, 12, 0.5, true),
		criterion(t, "c2", domain.CriterionAverageAttendance, 80, 0.5, false),
	}
	facts := CellFacts{MemberCount: 9, AverageAttendance: 80, AsOf: fixedNow}
	snap := EvaluateCriteria(criteria, facts, nil, DefaultSettings())

	if snap.Score != 87.5 {
		t.Fatalf("expected weighted score 87.5, got %v", snap.Score)
	}
	if snap.Status != domain.ReadinessPreparing {
		t.Fatalf("unmet required criterion caps status at preparing, got %s", snap.Status)
	}
	if len(snap.BlockingFactors) != 1 || snap.BlockingFactors[0] != string(domain.CriterionMemberCount) {
		t.Fatalf("unexpected blocking factors %v", snap.BlockingFactors)
	}
	if snap.Confidence != domain.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", snap.Confidence)
	}
	if snap.ProjectedReadyDate != nil {
		t.Fatalf("member count without growth cannot be projected, got %v", snap.ProjectedReadyDate)
	}
	if snap.Fingerprint == "" {
		t.Fatalf("expected fingerprint")
	}
}

func TestEvaluateCriteriaStatusBands(t *testing.T) {
	required := criterion(t, "req", domain.CriterionMemberCount, 10, 0.5, true)
	optional := criterion(t, "opt", domain.CriterionMeetingFrequency, 4, 1, false)
	settings := DefaultSettings()
	cases := []struct {
		name  string
		facts CellFacts
		want  domain.ReadinessStatus
	}{
		{"optimal", CellFacts{MemberCount: 10, MeetingsPerMonth: 4}, domain.ReadinessOptimal},
		{"ready", CellFacts{MemberCount: 10, MeetingsPerMonth: 3.2}, domain.ReadinessReady},
		{"preparing by score", CellFacts{MemberCount: 10, MeetingsPerMonth: 1}, domain.ReadinessPreparing},
		{"empty cell", CellFacts{}, domain.ReadinessNotReady},
		{"near required threshold", CellFacts{MemberCount: 8}, domain.ReadinessPreparing},
		{"not ready", CellFacts{MemberCount: 3}, domain.ReadinessNotReady},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.facts.AsOf = fixedNow
			got := EvaluateCriteria([]domain.MultiplicationCriterion{required, optional}, tc.facts, nil, settings)
			if got.Status != tc.want {
				t.Fatalf("want %s got %s (score %v)", tc.want, got.Status, got.Score)
			}
		})
	}
}

func TestEvaluateCriteriaOverdue(t *testing.T) {
	criteria := []domain.MultiplicationCriterion{criterion(t, "req", domain.CriterionMemberCount, 10, 1, true)}
	settings := DefaultSettings()
	staleStats := fixedNow.AddDate(0, -2, 0)
	facts := CellFacts{MemberCount: 12, AsOf: staleStats, Measured: true, Now: fixedNow}

	passed := fixedNow.Add(-time.Hour)
	snap := EvaluateCriteria(criteria, facts, &domain.ReadinessSnapshot{ProjectedReadyDate: &passed}, settings)
	if snap.Status != domain.ReadinessOverdue {
		t.Fatalf("projection reached with stale stats must be overdue, got %s", snap.Status)
	}
	if !snap.ProjectedReadyDate.Equal(passed) {
		t.Fatalf("previous projection must be kept, got %v", snap.ProjectedReadyDate)
	}

	upcoming := fixedNow.Add(time.Hour)
	snap = EvaluateCriteria(criteria, facts, &domain.ReadinessSnapshot{ProjectedReadyDate: &upcoming}, settings)
	if snap.Status != domain.ReadinessOptimal {
		t.Fatalf("before the projected date the cell is optimal, got %s", snap.Status)
	}

	snap = EvaluateCriteria(criteria, facts, nil, settings)
	if snap.Status != domain.ReadinessOptimal || snap.ProjectedReadyDate != nil {
		t.Fatalf("a cell never projected is not overdue: %s %v", snap.Status, snap.ProjectedReadyDate)
	}

	settings.OverdueAfter = 14 * 24 * time.Hour
	snap = EvaluateCriteria(criteria, facts, &domain.ReadinessSnapshot{ProjectedReadyDate: &passed}, settings)
	if snap.Status != domain.ReadinessOptimal {
		t.Fatalf("within a configured grace the cell is optimal, got %s", snap.Status)
	}
}

func TestEvaluateCriteriaKeepsUnmeasuredProjection(t *testing.T) {
	criteria := []domain.MultiplicationCriterion{criterion(t, "age", domain.CriterionCellAge, 6, 1, true)}
	settings := DefaultSettings()
	kept := fixedNow.AddDate(0, 3, 0)
	previous := &domain.ReadinessSnapshot{
		ProjectedReadyDate: &kept,
		BlockingFactors:    []string{string(domain.CriterionCellAge)},
	}
	later := fixedNow.Add(10 * time.Minute)

	snap := EvaluateCriteria(criteria, CellFacts{CellAgeMonths: 2, AsOf: later, Now: later}, previous, settings)
	if snap.ProjectedReadyDate == nil || !snap.ProjectedReadyDate.Equal(kept) {
		t.Fatalf("unchanged blocking factors keep the projection, got %v", snap.ProjectedReadyDate)
	}

	measured := CellFacts{CellAgeMonths: 2, AsOf: later, Measured: true, Now: later}
	snap = EvaluateCriteria(criteria, measured, previous, settings)
	if want := later.AddDate(0, 4, 0); snap.ProjectedReadyDate == nil || !snap.ProjectedReadyDate.Equal(want) {
		t.Fatalf("recorded stats re-project from their timestamp, want %v got %v", want, snap.ProjectedReadyDate)
	}

	previous.BlockingFactors = []string{"other"}
	snap = EvaluateCriteria(criteria, CellFacts{CellAgeMonths: 2, AsOf: later, Now: later}, previous, settings)
	if want := later.AddDate(0, 4, 0); snap.ProjectedReadyDate == nil || !snap.ProjectedReadyDate.Equal(want) {
		t.Fatalf("changed blocking factors re-project, want %v got %v", want, snap.ProjectedReadyDate)
	}
}

func TestEvaluateCriteriaProjection(t *testing.T) {
	criteria := []domain.MultiplicationCriterion{
		criterion(t, "members", domain.CriterionMemberCount, 12, 0.5, true),
		criterion(t, "age", domain.CriterionCellAge, 6, 0.5, true),
	}
	facts := CellFacts{MemberCount: 10, GrowthRate: 30, CellAgeMonths: 2, AsOf: fixedNow}
	snap := EvaluateCriteria(criteria, facts, nil, DefaultSettings())
	if snap.ProjectedReadyDate == nil {
		t.Fatalf("expected projection")
	}
	// Ten members growing 30% per quarter add one member a month: two
	// months for members, four for cell age.
	want := fixedNow.AddDate(0, 4, 0)
	if !snap.ProjectedReadyDate.Equal(want) {
		t.Fatalf("want %v got %v", want, snap.ProjectedReadyDate)
	}
	if len(snap.BlockingFactors) != 2 || snap.BlockingFactors[0] != string(domain.CriterionCellAge) {
		t.Fatalf("equal weights break ties by name, got %v", snap.BlockingFactors)
	}
}

func TestConfidenceBands(t *testing.T) {
	results := func(met ...bool) []domain.CriterionResult {
		out := []domain.CriterionResult{{Required: true}}
		for _, m := range met {
			out = append(out, domain.CriterionResult{Met: m})
		}
		return out
	}
	cases := []struct {
		in   []domain.CriterionResult
		want domain.Confidence
	}{
		{results(), domain.ConfidenceMedium},
		{results(true, true, false), domain.ConfidenceHigh},
		{results(true, false, false), domain.ConfidenceMedium},
		{results(false, false, false, true), domain.ConfidenceLow},
	}
	for i, tc := range cases {
		if got := confidence(tc.in); got != tc.want {
			t.Fatalf("case %d: want %s got %s", i, tc.want, got)
		}
	}
}

func TestEvaluateReadinessIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.UpdateCellStats(ctx, leaderID, f.cell.ID, healthyStats()); err != nil {
		t.Fatalf("stats: %v", err)
	}

	first, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first.Status != domain.ReadinessOptimal || first.Score != 100 {
		t.Fatalf("expected optimal 100, got %s %v", first.Status, first.Score)
	}

	later := fixedNow.Add(6 * time.Hour)
	f.svc.clock = ClockFunc(func() time.Time { return later })
	second, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("unchanged facts must yield an identical snapshot\nfirst:  %s\nsecond: %s", a, b)
	}

	stored, err := f.svc.GetReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("get readiness: %v", err)
	}
	if !stored.EvaluatedAt.Equal(fixedNow) {
		t.Fatalf("evaluated_at must not move, got %v", stored.EvaluatedAt)
	}
}

// tickingClock advances one second per reading.
func tickingClock(start time.Time) Clock {
	var mu sync.Mutex
	current := start
	return ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	})
}

func TestEvaluateReadinessIdempotentWithoutStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leaders, err := f.svc.UpsertCriterion(ctx, adminID, criterion(t, "", domain.CriterionPotentialLeaders, 5, 1, true))
	if err != nil {
		t.Fatalf("upsert criterion: %v", err)
	}
	f.svc.clock = tickingClock(fixedNow)

	first, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first.ProjectedReadyDate == nil || first.Status.ReadyForSplit() {
		t.Fatalf("expected a projected, unready cell: %s %v", first.Status, first.ProjectedReadyDate)
	}
	second, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if second.Fingerprint != first.Fingerprint || !second.EvaluatedAt.Equal(first.EvaluatedAt) {
		t.Fatalf("a moving clock must not rewrite the snapshot\nfirst:  %s %v\nsecond: %s %v",
			first.Fingerprint, first.ProjectedReadyDate, second.Fingerprint, second.ProjectedReadyDate)
	}

	// Meeting the criterion keeps the recorded projection; reaching it makes the cell overdue.
	projected := *first.ProjectedReadyDate
	leaders.Rule, err = domain.NewCriterionRule(domain.CriterionPotentialLeaders, 1)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	if _, err := f.svc.UpsertCriterion(ctx, adminID, leaders); err != nil {
		t.Fatalf("lower threshold: %v", err)
	}
	ready, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate ready: %v", err)
	}
	if ready.Status != domain.ReadinessOptimal || !ready.ProjectedReadyDate.Equal(projected) {
		t.Fatalf("expected optimal with the recorded projection, got %s %v", ready.Status, ready.ProjectedReadyDate)
	}
	f.svc.clock = ClockFunc(func() time.Time { return projected.AddDate(0, 0, 30) })
	overdue, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate overdue: %v", err)
	}
	if overdue.Status != domain.ReadinessOverdue {
		t.Fatalf("30 days past the projection must be overdue, got %s", overdue.Status)
	}
}

func TestEvaluateReadinessUsesConfiguredCriteria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	crit := criterion(t, "", domain.CriterionMemberCount, 20, 1, true)
	if _, err := f.svc.UpsertCriterion(ctx, leaderID, crit); err == nil {
		t.Fatalf("leaders cannot configure criteria")
	} else {
		requireKind(t, err, domain.KindPermissionDenied)
	}
	saved, err := f.svc.UpsertCriterion(ctx, adminID, crit)
	if err != nil {
		t.Fatalf("upsert criterion: %v", err)
	}
	snap, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(snap.Criteria) != 1 || snap.Criteria[0].CriterionID != saved.ID || snap.Criteria[0].Met {
		t.Fatalf("expected only the configured criterion, unmet: %+v", snap.Criteria)
	}

	if err := f.svc.DeactivateCriterion(ctx, adminID, testOrg, saved.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	snap, err = f.svc.EvaluateReadiness(ctx, f.cell.ID)
	if err != nil {
		t.Fatalf("evaluate defaults: %v", err)
	}
	if len(snap.Criteria) != len(DefaultCriteria(testOrg)) {
		t.Fatalf("expected built-in criteria after deactivation, got %d", len(snap.Criteria))
	}
	active, err := f.svc.ListCriteria(ctx, testOrg, true)
	if err != nil || len(active) != 0 {
		t.Fatalf("expected no active criteria, got %v (%v)", active, err)
	}
}

func TestEvaluateReadinessBatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCell(t, f.svc, "beta", "p-beta-leader", 5)

	report, err := f.svc.EvaluateReadinessBatch(ctx, testOrg)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if report.Evaluated != 2 || report.Updated != 2 || report.Failed != 0 || report.Err() != nil {
		t.Fatalf("unexpected report %+v", report)
	}
	report, err = f.svc.EvaluateReadinessBatch(ctx, testOrg)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if report.Updated != 0 {
		t.Fatalf("second batch over unchanged facts must not update, got %d", report.Updated)
	}

	f.svc.criteria = failingCriteria{err: domain.Unavailable("load_criteria", errors.New("criteria backend down"))}
	report, err = f.svc.EvaluateReadinessBatch(ctx, testOrg)
	if err != nil {
		t.Fatalf("batch with failing criteria still reports per cell: %v", err)
	}
	if report.Failed != 2 || report.Evaluated != 2 {
		t.Fatalf("expected both cells to fail, got %+v", report)
	}
	var batch *domain.BatchError
	if !errors.As(report.Err(), &batch) || len(batch.Items) != 2 {
		t.Fatalf("expected batch error with 2 items, got %v", report.Err())
	}
	if !domain.IsRetryable(batch.Items[0].Err) {
		t.Fatalf("criteria outage should be retryable: %v", batch.Items[0].Err)
	}
}

func TestEvaluateReadinessRejectsInactiveCell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.DeactivateCell(ctx, supervisorID, f.cell.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := f.svc.EvaluateReadiness(ctx, f.cell.ID)
	requireKind(t, err, domain.KindInvalidState)
	_, err = f.svc.GetReadiness(ctx, f.cell.ID)
	requireKind(t, err, domain.KindNotFound)
}
