package core

import (
	"context"
	"strings"
	"testing"

	"liderforte/pkg/domain"
)

func distMember(id, person string, engagement float64, track bool) domain.Member {
	return domain.Member{
		Base:            domain.Base{ID: id},
		CellID:          "c",
		PersonID:        person,
		EngagementScore: engagement,
		LeadershipTrack: track,
		JoinedAt:        fixedNow.AddDate(-1, 0, 0),
		Active:          true,
	}
}

func TestSuggestDistributionPlan(t *testing.T) {
	cell := domain.Cell{Base: domain.Base{ID: "c"}, LeaderID: "L"}
	newcomer := distMember("m-new", "n", 0, false)
	newcomer.JoinedAt = fixedNow
	gone := distMember("m-gone", "g", 99, true)
	gone.Active = false
	members := []domain.Member{
		distMember("m-lead", "L", 95, true),
		distMember("m-cand", "x", 80, true),
		newcomer,
		distMember("m-o5", "o5", 30, false),
		distMember("m-o4", "o4", 40, false),
		distMember("m-o3", "o3", 50, false),
		distMember("m-o2", "o2", 80, false),
		distMember("m-o1", "o1", 90, false),
		gone,
	}
	sugg := SuggestDistributionPlan(cell, members, DistributionParams{LeadershipThreshold: 60, MoveRatio: 0.5, AsOf: fixedNow})

	if len(sugg.Assignments) != 8 {
		t.Fatalf("inactive members are not distributed, got %d rows", len(sugg.Assignments))
	}
	if sugg.TargetNewCellSize != 4 {
		t.Fatalf("expected target size 4, got %d", sugg.TargetNewCellSize)
	}
	if sugg.NewLeader == nil || sugg.NewLeader.MemberID != "m-cand" || sugg.NewLeader.RoleInNewCell != domain.CellRoleLeader {
		t.Fatalf("unexpected new leader %+v", sugg.NewLeader)
	}
	if !strings.Contains(sugg.NewLeader.Reasoning, "12 month(s)") {
		t.Fatalf("reasoning should mention tenure: %s", sugg.NewLeader.Reasoning)
	}

	want := map[string]domain.AssignmentType{
		"m-lead": domain.AssignmentStaysSource,
		"m-cand": domain.AssignmentNewLeader,
		"m-new":  domain.AssignmentUndecided,
		"m-o1":   domain.AssignmentStaysSource,
		"m-o2":   domain.AssignmentStaysSource,
		"m-o3":   domain.AssignmentMovesNew,
		"m-o4":   domain.AssignmentMovesNew,
		"m-o5":   domain.AssignmentMovesNew,
	}
	for _, a := range sugg.Assignments {
		if want[a.MemberID] != a.Type {
			t.Fatalf("%s: want %s got %s", a.MemberID, want[a.MemberID], a.Type)
		}
		if a.Reasoning == "" {
			t.Fatalf("%s: every row needs a reason", a.MemberID)
		}
		switch a.MemberID {
		case "m-lead":
			if a.PriorityScore != 100 {
				t.Fatalf("leader priority 100, got %v", a.PriorityScore)
			}
		case "m-o3":
			// attachment 0.7*50 + 0.3*50 = 50
			if a.PriorityScore != 50 || a.RoleInNewCell != domain.CellRoleMember {
				t.Fatalf("unexpected mover row %+v", a)
			}
		case "m-o1":
			if a.PriorityScore != 78 {
				t.Fatalf("stayer priority is its attachment, got %v", a.PriorityScore)
			}
		}
	}
	// Movers come out in descending attachment after the fixed rows.
	tail := sugg.Assignments[3:]
	for i, id := range []string{"m-o1", "m-o2", "m-o3", "m-o4", "m-o5"} {
		if tail[i].MemberID != id {
			t.Fatalf("position %d: want %s got %s", i, id, tail[i].MemberID)
		}
	}
	if len(sugg.Recommendations) != 1 || !strings.HasPrefix(sugg.Recommendations[0], "Place 1 undecided") {
		t.Fatalf("unexpected recommendations %v", sugg.Recommendations)
	}
}

func TestSuggestDistributionPlanWithoutCandidates(t *testing.T) {
	cell := domain.Cell{Base: domain.Base{ID: "c"}, LeaderID: "L"}
	members := []domain.Member{
		distMember("m-lead", "L", 95, true),
		distMember("m-a", "a", 70, false),
		distMember("m-b", "b", 50, true),
		distMember("m-c", "c", 45, false),
		distMember("m-d", "d", 40, false),
	}
	sugg := SuggestDistributionPlan(cell, members, DistributionParams{LeadershipThreshold: 60, AsOf: fixedNow})
	if sugg.NewLeader != nil {
		t.Fatalf("leadership track below threshold cannot lead, got %+v", sugg.NewLeader)
	}
	// An unset ratio falls back to half: round(2.5) = 3 movers.
	if sugg.TargetNewCellSize != 3 || sugg.Counts()[domain.AssignmentMovesNew] != 3 {
		t.Fatalf("expected 3 movers, got target %d counts %v", sugg.TargetNewCellSize, sugg.Counts())
	}
	if len(sugg.Recommendations) != 1 || !strings.Contains(sugg.Recommendations[0], "develop a new leader") {
		t.Fatalf("expected leader recommendation, got %v", sugg.Recommendations)
	}
}

func TestSuggestDistributionPlanEmptyCell(t *testing.T) {
	sugg := SuggestDistributionPlan(domain.Cell{Base: domain.Base{ID: "c"}}, nil, DistributionParams{AsOf: fixedNow})
	if sugg.Assignments == nil || len(sugg.Assignments) != 0 {
		t.Fatalf("expected empty, non-nil assignments, got %#v", sugg.Assignments)
	}
	if len(sugg.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %v", sugg.Recommendations)
	}
}

func TestSuggestDistributionWithTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strict := 85.0
	tmpl := domain.DistributionTemplate{OrganizationID: testOrg, Name: "quarter", MoveRatio: 0.25, LeadershipThreshold: &strict}

	_, err := f.svc.UpsertTemplate(ctx, leaderID, tmpl)
	requireKind(t, err, domain.KindPermissionDenied)
	_, err = f.svc.UpsertTemplate(ctx, adminID, domain.DistributionTemplate{OrganizationID: testOrg, Name: "  "})
	requireKind(t, err, domain.KindValidation)
	saved, err := f.svc.UpsertTemplate(ctx, adminID, tmpl)
	if err != nil {
		t.Fatalf("upsert template: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("template id must be assigned")
	}

	proc, err := f.svc.StartMultiplication(ctx, leaderID, f.cell.ID, domain.MultiplicationPlan{NewCellName: "Alpha II"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	missing := "missing"
	_, err = f.svc.SuggestDistribution(ctx, leaderID, proc.ID, &missing)
	requireKind(t, err, domain.KindNotFound)

	sugg, err := f.svc.SuggestDistribution(ctx, leaderID, proc.ID, &saved.ID)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if sugg.NewLeader != nil {
		t.Fatalf("the template threshold excludes the 82-point candidate, got %+v", sugg.NewLeader)
	}
	// round(14 * 0.25) = 4, all of them regular members.
	counts := sugg.Counts()
	if sugg.TargetNewCellSize != 4 || counts[domain.AssignmentMovesNew] != 4 || counts[domain.AssignmentNewLeader] != 0 {
		t.Fatalf("unexpected distribution %v (target %d)", counts, sugg.TargetNewCellSize)
	}
	movers := make(map[string]bool)
	for _, a := range sugg.Assignments {
		if a.Type == domain.AssignmentMovesNew {
			movers[a.MemberID] = true
		}
	}
	for _, m := range f.members[2:6] {
		if !movers[m.ID] {
			t.Fatalf("least engaged member %s (%v) should move", m.ID, m.EngagementScore)
		}
	}

	current, err := f.svc.GetProcess(ctx, leaderID, proc.ID)
	if err != nil {
		t.Fatalf("get process: %v", err)
	}
	if current.Status != domain.ProcessMemberSelection || current.TemplateID == nil || *current.TemplateID != saved.ID {
		t.Fatalf("unexpected process after suggestion %+v", current)
	}
	rows, err := f.svc.ListAssignments(ctx, proc.ID)
	if err != nil || len(rows) != len(f.members) {
		t.Fatalf("expected %d stored rows, got %d (%v)", len(f.members), len(rows), err)
	}
	for _, r := range rows {
		if !r.AutoSuggested {
			t.Fatalf("suggested rows are flagged: %+v", r)
		}
	}
}
