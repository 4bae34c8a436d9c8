package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"liderforte/internal/core"
	"liderforte/pkg/domain"
)

var _ core.Logger = (*Logger)(nil)

func TestNewWithWriterProductionJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("production", Config{}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug("hidden")
	log.Info("readiness batch finished", "organization", "org-1", "evaluated", 3)
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("production drops debug lines, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["message"] != "readiness batch finished" || entry["organization"] != "org-1" || entry["service"] != "liderforte" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
}

func TestNewWithWriterDevelopmentConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("development", Config{}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.With("cell", "c-1").Debug("operation started")
	_ = log.Sync()
	out := buf.String()
	if !strings.Contains(out, "debug") || !strings.Contains(out, "operation started") || !strings.Contains(out, `"cell": "c-1"`) {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestNewWithWriterConfigOverrides(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter("development", Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("skipped")
	log.Warn("kept")
	_ = log.Sync()
	if strings.Contains(buf.String(), "skipped") || !strings.Contains(buf.String(), `"message":"kept"`) {
		t.Fatalf("level and format overrides not applied: %q", buf.String())
	}

	if _, err := NewWithWriter("", Config{Level: "loud"}, &buf); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := NewWithWriter("", Config{Format: "xml"}, &buf); err == nil {
		t.Fatalf("expected invalid format error")
	}
}

func TestServiceLogsThroughZap(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	svc := core.NewInMemoryService(nil, core.WithLogger(Wrap(zap.New(obsCore))))
	ctx := context.Background()

	_, err := svc.CreateCell(ctx, "nobody", domain.Cell{OrganizationID: "org-1", Name: "alpha"})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	failed := logs.FilterMessage("operation failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warning, got %+v", failed)
	}
	fields := failed[0].ContextMap()
	if fields["operation"] != "create_cell" || fields["kind"] != string(domain.KindNotFound) {
		t.Fatalf("unexpected fields %v", fields)
	}

	svc = core.NewInMemoryService(nil,
		core.WithLogger(Wrap(zap.New(obsCore))),
		core.WithCriteriaSource(brokenCriteria{}))
	if _, err := svc.GrantOrgRole(ctx, "p-admin", domain.OrgMembership{OrganizationID: "org-1", PersonID: "p-admin", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	cell, err := svc.CreateCell(ctx, "p-admin", domain.Cell{OrganizationID: "org-1", Name: "alpha", LeaderID: "p-admin"})
	if err != nil {
		t.Fatalf("create cell: %v", err)
	}
	if _, err := svc.EvaluateReadiness(ctx, cell.ID); err == nil {
		t.Fatalf("expected criteria failure")
	}
	if n := logs.FilterMessage("operation failed").FilterLevelExact(zapcore.ErrorLevel).Len(); n != 1 {
		t.Fatalf("untyped failures log at error level, got %d", n)
	}
}

type brokenCriteria struct{}

func (brokenCriteria) ActiveCriteria(context.Context, string) ([]domain.MultiplicationCriterion, error) {
	return nil, errors.New("criteria table missing")
}
