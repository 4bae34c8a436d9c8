package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"liderforte/pkg/domain"
)

// fixture is the YAML document accepted by the import command. Records keep
// their ids so later records can reference them.
type fixture struct {
	Organizations []fixtureOrganization `yaml:"organizations"`
	Cells         []fixtureCell         `yaml:"cells"`
	Members       []fixtureMember       `yaml:"members"`
	Criteria      []fixtureCriterion    `yaml:"criteria"`
	Templates     []fixtureTemplate     `yaml:"templates"`
}

type fixtureOrganization struct {
	ID          string              `yaml:"id"`
	Admin       string              `yaml:"admin"`
	Memberships []fixtureMembership `yaml:"memberships"`
}

type fixtureMembership struct {
	Person   string      `yaml:"person"`
	Role     domain.Role `yaml:"role"`
	Approver bool        `yaml:"approver"`
}

type fixtureStats struct {
	MeetingsPerMonth  float64   `yaml:"meetings_per_month"`
	AverageAttendance float64   `yaml:"average_attendance"`
	GrowthRate        float64   `yaml:"growth_rate"`
	StabilityScore    float64   `yaml:"stability_score"`
	AsOf              time.Time `yaml:"as_of"`
}

type fixtureCell struct {
	ID           string       `yaml:"id"`
	Organization string       `yaml:"organization"`
	Name         string       `yaml:"name"`
	Parent       string       `yaml:"parent"`
	Leader       string       `yaml:"leader"`
	Supervisor   string       `yaml:"supervisor"`
	FoundedAt    time.Time    `yaml:"founded_at"`
	LeaderSince  time.Time    `yaml:"leader_since"`
	MeetingDay   string       `yaml:"meeting_day"`
	MeetingTime  string       `yaml:"meeting_time"`
	Location     string       `yaml:"location"`
	Stats        fixtureStats `yaml:"stats"`
}

type fixtureMember struct {
	ID              string    `yaml:"id"`
	Cell            string    `yaml:"cell"`
	Person          string    `yaml:"person"`
	Name            string    `yaml:"name"`
	Engagement      float64   `yaml:"engagement"`
	LeadershipTrack bool      `yaml:"leadership_track"`
	JoinedAt        time.Time `yaml:"joined_at"`
}

type fixtureCriterion struct {
	Organization string               `yaml:"organization"`
	Name         string               `yaml:"name"`
	Type         domain.CriterionType `yaml:"type"`
	Threshold    float64              `yaml:"threshold"`
	Weight       float64              `yaml:"weight"`
	Required     bool                 `yaml:"required"`
}

type fixtureTemplate struct {
	ID                  string   `yaml:"id"`
	Organization        string   `yaml:"organization"`
	Name                string   `yaml:"name"`
	MoveRatio           float64  `yaml:"move_ratio"`
	LeadershipThreshold *float64 `yaml:"leadership_threshold"`
}

// importSummary is printed after a successful import.
type importSummary struct {
	Organizations int `json:"organizations"`
	Memberships   int `json:"memberships"`
	Cells         int `json:"cells"`
	Members       int `json:"members"`
	Criteria      int `json:"criteria"`
	Templates     int `json:"templates"`
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixture.yaml>",
		Short: "Load organizations, cells, members and criteria from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := readFixture(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				summary, err := applyFixture(ctx, a, fx)
				if err != nil {
					return err
				}
				a.log.Info("fixture imported", "path", args[0], "cells", summary.Cells, "members", summary.Members)
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

func readFixture(path string) (fixture, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied fixture path
	if err != nil {
		return fixture{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var fx fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return fx, nil
}

// applyFixture writes the fixture through the service so every record passes
// the same validation and rules as interactive edits. Cells, members,
// criteria and templates are written by the organization's administrator.
func applyFixture(ctx context.Context, a *app, fx fixture) (importSummary, error) {
	var summary importSummary
	admins := make(map[string]string, len(fx.Organizations))
	for _, org := range fx.Organizations {
		if org.ID == "" || org.Admin == "" {
			return summary, fmt.Errorf("organization %q: id and admin required", org.ID)
		}
		if _, err := a.svc.GrantOrgRole(ctx, org.Admin, domain.OrgMembership{
			OrganizationID: org.ID, PersonID: org.Admin, Role: domain.RoleAdmin, Approver: true,
		}); err != nil {
			return summary, err
		}
		admins[org.ID] = org.Admin
		summary.Organizations++
		for _, m := range org.Memberships {
			if _, err := a.svc.GrantOrgRole(ctx, org.Admin, domain.OrgMembership{
				OrganizationID: org.ID, PersonID: m.Person, Role: m.Role, Approver: m.Approver,
			}); err != nil {
				return summary, err
			}
			summary.Memberships++
		}
	}
	adminOf := func(org string) (string, error) {
		admin, ok := admins[org]
		if !ok {
			return "", fmt.Errorf("organization %q is not declared in the fixture", org)
		}
		return admin, nil
	}

	cellOrg := make(map[string]string, len(fx.Cells))
	for _, c := range fx.Cells {
		admin, err := adminOf(c.Organization)
		if err != nil {
			return summary, err
		}
		cell := domain.Cell{
			OrganizationID: c.Organization,
			Name:           c.Name,
			LeaderID:       c.Leader,
			LeaderSince:    c.LeaderSince,
			MeetingDay:     c.MeetingDay,
			MeetingTime:    c.MeetingTime,
			Location:       c.Location,
			FoundedAt:      c.FoundedAt,
			Stats: domain.CellStats{
				MeetingsPerMonth:  c.Stats.MeetingsPerMonth,
				AverageAttendance: c.Stats.AverageAttendance,
				GrowthRate:        c.Stats.GrowthRate,
				StabilityScore:    c.Stats.StabilityScore,
				AsOf:              c.Stats.AsOf,
			},
		}
		cell.ID = c.ID
		if c.Parent != "" {
			parent := c.Parent
			cell.ParentCellID = &parent
		}
		if c.Supervisor != "" {
			supervisor := c.Supervisor
			cell.SupervisorID = &supervisor
		}
		created, err := a.svc.CreateCell(ctx, admin, cell)
		if err != nil {
			return summary, err
		}
		cellOrg[created.ID] = created.OrganizationID
		summary.Cells++
	}

	for _, m := range fx.Members {
		org, ok := cellOrg[m.Cell]
		if !ok {
			return summary, fmt.Errorf("member %q references unknown cell %q", m.ID, m.Cell)
		}
		member := domain.Member{
			CellID:          m.Cell,
			PersonID:        m.Person,
			DisplayName:     m.Name,
			EngagementScore: m.Engagement,
			LeadershipTrack: m.LeadershipTrack,
			JoinedAt:        m.JoinedAt,
		}
		member.ID = m.ID
		if _, err := a.svc.AddMember(ctx, admins[org], member); err != nil {
			return summary, err
		}
		summary.Members++
	}

	for _, c := range fx.Criteria {
		admin, err := adminOf(c.Organization)
		if err != nil {
			return summary, err
		}
		rule, err := domain.NewCriterionRule(c.Type, c.Threshold)
		if err != nil {
			return summary, fmt.Errorf("criterion %q: %w", c.Name, err)
		}
		if _, err := a.svc.UpsertCriterion(ctx, admin, domain.MultiplicationCriterion{
			OrganizationID: c.Organization,
			Name:           c.Name,
			Rule:           rule,
			Weight:         c.Weight,
			Required:       c.Required,
			Active:         true,
		}); err != nil {
			return summary, err
		}
		summary.Criteria++
	}

	for _, t := range fx.Templates {
		admin, err := adminOf(t.Organization)
		if err != nil {
			return summary, err
		}
		tmpl := domain.DistributionTemplate{
			OrganizationID:      t.Organization,
			Name:                t.Name,
			MoveRatio:           t.MoveRatio,
			LeadershipThreshold: t.LeadershipThreshold,
		}
		tmpl.ID = t.ID
		if _, err := a.svc.UpsertTemplate(ctx, admin, tmpl); err != nil {
			return summary, err
		}
		summary.Templates++
	}
	return summary, nil
}
