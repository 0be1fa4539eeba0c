package financial

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is the sentinel wrapped by NotFoundError. Store adapters must
// return an error matching errors.Is(err, ErrNotFound) when a transaction or
// account id does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError reports that a referenced transaction or account does not exist.
type NotFoundError struct {
	Kind string // "transaction", "cash account" or "debt account"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q: not found", e.Kind, e.ID) }

// Is makes NotFoundError match the ErrNotFound sentinel.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports schema or custom-rule violations. Fields maps the
// offending field name to a human readable message. The operation was not
// attempted.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// field records one violation, allocating the map on first use.
func (e *ValidationError) field(name, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = msg
}

// zero reports whether no violation was recorded.
func (e *ValidationError) zero() bool { return len(e.Fields) == 0 }

// OperationConflictError reports that an operation with the same id is
// already in flight.
type OperationConflictError struct {
	OpID string
}

func (e *OperationConflictError) Error() string {
	return fmt.Sprintf("operation %q already in flight", e.OpID)
}

// CompensationFailureError is the most severe error class: a forward step of
// a multi-entity operation failed and the compensating rollback failed too,
// so the stored state may be inconsistent and cannot self-heal. It is always
// surfaced to the caller, never swallowed, and a dead-letter record with the
// steps left unapplied is kept in the operation history for manual repair.
type CompensationFailureError struct {
	Op          string               // the ledger operation that failed
	Cause       error                // the original forward failure
	RollbackErr error                // the failure of the compensation itself
	Unapplied   []BalanceRestoration // balance restorations that could not be applied
}

func (e *CompensationFailureError) Error() string {
	return fmt.Sprintf("%s: compensation failed after %v: %v (%d balance restorations unapplied)",
		e.Op, e.Cause, e.RollbackErr, len(e.Unapplied))
}

// Unwrap exposes the original forward failure to errors.Is/As chains.
func (e *CompensationFailureError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is, or wraps, a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is, or wraps, a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
