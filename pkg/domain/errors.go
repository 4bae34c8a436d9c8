package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

// Error kinds. Only KindUnavailable is safe to retry blindly.
const (
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindInvalidState     ErrorKind = "invalid_state"
	KindValidation       ErrorKind = "validation_failed"
	KindConflict         ErrorKind = "conflict"
	KindUnavailable      ErrorKind = "dependency_unavailable"
)

// Sentinels for errors.Is checks against an Error of the matching kind.
var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidationFailed  = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrDependencyFailure = errors.New("dependency unavailable")
)

var sentinels = map[ErrorKind]error{
	KindNotFound:         ErrNotFound,
	KindPermissionDenied: ErrPermissionDenied,
	KindInvalidState:     ErrInvalidState,
	KindValidation:       ErrValidationFailed,
	KindConflict:         ErrConflict,
	KindUnavailable:      ErrDependencyFailure,
}

// Error is the typed failure returned by stores and service operations.
type Error struct {
	Kind    ErrorKind
	Op      string
	Entity  EntityType
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Entity != "" && e.ID != "":
		fmt.Fprintf(&b, "%s %s %s", e.Entity, e.ID, strings.ReplaceAll(string(e.Kind), "_", " "))
	default:
		b.WriteString(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// NotFound reports a missing or invisible record.
func NotFound(op string, entity EntityType, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id}
}

// PermissionDenied reports an actor lacking the required role.
func PermissionDenied(op string, entity EntityType, id, msg string) error {
	return &Error{Kind: KindPermissionDenied, Op: op, Entity: entity, ID: id, Message: msg}
}

// InvalidState reports an illegal transition for the current status.
func InvalidState(op string, entity EntityType, id, msg string) error {
	return &Error{Kind: KindInvalidState, Op: op, Entity: entity, ID: id, Message: msg}
}

// Validation reports a structural invariant violation.
func Validation(op string, entity EntityType, id, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Entity: entity, ID: id, Message: msg}
}

// Conflict reports a failed compare-and-set.
func Conflict(op string, entity EntityType, id, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Entity: entity, ID: id, Message: msg}
}

// Unavailable wraps a transient store or collaborator failure.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// KindOf returns the classification of err, or "" when err is not typed.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// IsRetryable reports whether err may be retried without re-deriving input.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// ItemError records the failure of one item in a bulk step.
type ItemError struct {
	ID  string
	Err error
}

// BatchError aggregates per-item failures of a non-atomic bulk step.
// Items not listed were committed.
type BatchError struct {
	Op    string
	Items []ItemError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("%s: %v", item.ID, item.Err))
	}
	return fmt.Sprintf("%s: %d item(s) failed: %s", e.Op, len(e.Items), strings.Join(parts, "; "))
}

// Unwrap exposes item errors to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.Err)
	}
	return out
}

// FailedIDs lists the identifiers of failed items.
func (e *BatchError) FailedIDs() []string {
	out := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.ID)
	}
	return out
}
