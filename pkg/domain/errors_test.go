package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsAndSentinels(t *testing.T) {
	cause := errors.New("connection reset")
	cases := []struct {
		err      error
		kind     ErrorKind
		sentinel error
		message  string
	}{
		{NotFound("get_cell", EntityCell, "c1"), KindNotFound, ErrNotFound, "get_cell: cell c1 not found"},
		{PermissionDenied("approve", EntityProcess, "p1", "supervisors only"), KindPermissionDenied, ErrPermissionDenied, "approve: supervisors only"},
		{InvalidState("execute", EntityProcess, "p1", "process is draft"), KindInvalidState, ErrInvalidState, "execute: process is draft"},
		{Validation("assign", EntityAssignment, "", "one leader"), KindValidation, ErrValidationFailed, "assign: one leader"},
		{Conflict("advance", EntityProcess, "p1", "status changed"), KindConflict, ErrConflict, "advance: status changed"},
		{Unavailable("load", cause), KindUnavailable, ErrDependencyFailure, "load: dependency unavailable: connection reset"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tc.err)
			if KindOf(wrapped) != tc.kind {
				t.Fatalf("want kind %s got %s", tc.kind, KindOf(wrapped))
			}
			if !errors.Is(wrapped, tc.sentinel) {
				t.Fatalf("errors.Is must match %v", tc.sentinel)
			}
			if tc.err.Error() != tc.message {
				t.Fatalf("want message %q got %q", tc.message, tc.err.Error())
			}
			if IsRetryable(tc.err) != (tc.kind == KindUnavailable) {
				t.Fatalf("only dependency failures are retryable")
			}
		})
	}
	if !errors.Is(Unavailable("load", cause), cause) {
		t.Fatalf("the cause stays reachable")
	}
	if KindOf(nil) != "" || KindOf(errors.New("plain")) != "" {
		t.Fatalf("untyped errors have no kind")
	}
	if KindOf(fmt.Errorf("wrapped: %w", ErrConflict)) != KindConflict {
		t.Fatalf("bare sentinels are classified too")
	}
}

func TestBatchError(t *testing.T) {
	be := &BatchError{Op: "evaluate", Items: []ItemError{
		{ID: "c1", Err: NotFound("evaluate", EntityCell, "c1")},
		{ID: "c2", Err: Unavailable("evaluate", errors.New("timeout"))},
	}}
	if ids := be.FailedIDs(); len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if !errors.Is(be, ErrNotFound) || !errors.Is(be, ErrDependencyFailure) {
		t.Fatalf("item errors are reachable through the batch")
	}
	if got := be.Error(); got != "evaluate: 2 item(s) failed: c1: evaluate: cell c1 not found; c2: evaluate: dependency unavailable: timeout" {
		t.Fatalf("unexpected message %q", got)
	}
}
