package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError rejects an operation before any persistence write.
// No state is mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failed storage write outside an allocation pass.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialAllocationError reports a storage write that failed mid-pass.
// Obligations already written in the pass may be inconsistent with the
// conservation invariant; the caller must re-run the entire reconciliation
// from the last persisted state rather than resume.
type PartialAllocationError struct {
	EntityId int
	Op       string
	Err      error
}

func (e *PartialAllocationError) Error() string {
	return fmt.Sprintf("allocation pass aborted for entity %d during %s: %v (re-run reconciliation from persisted state)", e.EntityId, e.Op, e.Err)
}

func (e *PartialAllocationError) Unwrap() error { return e.Err }

// InvariantViolationError is a fatal internal error: the sum of obligation
// paid amounts no longer matches the sum of allocated payment amounts.
// It is surfaced, never silently corrected.
type InvariantViolationError struct {
	EntityId int
	// ObligationId is set when a single obligation's paid amount left the
	// [0, amount] range; zero for a sum mismatch across the entity.
	ObligationId   int
	TotalPaid      decimal.Decimal
	TotalAllocated decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	if e.ObligationId != 0 {
		return fmt.Sprintf("bounds invariant violated for entity %d: obligation %d paid %s outside [0, %s]",
			e.EntityId, e.ObligationId, e.TotalPaid.String(), e.TotalAllocated.String())
	}
	return fmt.Sprintf("conservation invariant violated for entity %d: obligations paid %s != payments allocated %s",
		e.EntityId, e.TotalPaid.String(), e.TotalAllocated.String())
}
