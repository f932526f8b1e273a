package reconcile

import (
	"sort"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"github.com/shopspring/decimal"
)

// AllocationResult is one payment's pass over an entity's obligation set.
type AllocationResult struct {
	// Remainder is the portion of the payment no obligation absorbed; it
	// becomes the payment's UnallocatedAmount.
	Remainder decimal.Decimal
	// Changed holds the obligations this pass mutated, in visit order.
	// Each must be persisted before the payment is finalized.
	Changed []*models.Obligation
}

// SortObligations orders an entity's obligations for allocation:
// date ascending, ties broken by obligation id ascending. The id tie-break
// keeps replay deterministic regardless of storage order.
func SortObligations(obligations []*models.Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		if obligations[i].ObligationDate.Equal(obligations[j].ObligationDate) {
			return obligations[i].ID < obligations[j].ID
		}
		return obligations[i].ObligationDate.Before(obligations[j].ObligationDate)
	})
}

// SortPayments orders payments for replay: date ascending, id ascending.
func SortPayments(payments []*models.Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].PaymentDate.Equal(payments[j].PaymentDate) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].PaymentDate.Before(payments[j].PaymentDate)
	})
}

// Allocate walks the obligations once, oldest first, absorbing the payment
// into each unpaid obligation's remaining balance until the payment runs
// out. Obligations must already be in allocation order (SortObligations).
//
// Guarantees: paid amounts never decrease, never exceed an obligation's
// amount, and the total allocated never exceeds paymentAmount. A zero
// payment is a no-op; a negative payment is rejected.
func Allocate(paymentAmount decimal.Decimal, obligations []*models.Obligation) (AllocationResult, error) {
	if paymentAmount.IsNegative() {
		return AllocationResult{}, newValidationError("payment amount %s is negative", paymentAmount.String())
	}

	remaining := paymentAmount
	result := AllocationResult{Remainder: remaining}
	if remaining.IsZero() {
		return result, nil
	}

	for _, obligation := range obligations {
		if remaining.IsZero() {
			break
		}
		if obligation.Status != models.ObligationStatusUnpaid {
			continue
		}
		unpaidAmount := obligation.UnpaidAmount()
		if !unpaidAmount.IsPositive() {
			// zero-amount obligation: treat as paid, absorb nothing
			obligation.DeriveStatus()
			continue
		}

		allocation := decimal.Min(remaining, unpaidAmount)
		obligation.PaidAmount = obligation.PaidAmount.Add(allocation)
		remaining = remaining.Sub(allocation)
		obligation.DeriveStatus()

		result.Changed = append(result.Changed, obligation)
	}

	result.Remainder = remaining
	return result, nil
}

// Replay recomputes the entire allocation state of an entity from scratch:
// every obligation is reset, then each payment is allocated in date order.
// Obligation paid amounts and payment unallocated amounts are mutated in
// place. The result is a deterministic fold over the payment sequence, so
// replaying after a payment delete/edit yields exactly the state that would
// exist had the deleted payment never been recorded (or the edited one
// always had its new amount and date).
func Replay(obligations []*models.Obligation, payments []*models.Payment) error {
	for _, obligation := range obligations {
		obligation.ResetAllocation()
	}
	SortObligations(obligations)
	SortPayments(payments)

	for _, payment := range payments {
		result, err := Allocate(payment.Amount, obligations)
		if err != nil {
			return err
		}
		payment.UnallocatedAmount = result.Remainder
	}
	return nil
}

// VerifyConservation checks the engine's core invariant: the sum of paid
// amounts across the entity's obligations equals the sum of allocated
// amounts (amount minus unallocated) across its payments, and every paid
// amount stays within [0, amount]. A violation is fatal and never corrected
// silently.
func VerifyConservation(entityId int, obligations []*models.Obligation, payments []*models.Payment) error {
	totalPaid := decimal.Zero
	for _, obligation := range obligations {
		if obligation.PaidAmount.IsNegative() || obligation.PaidAmount.GreaterThan(obligation.Amount) {
			return &InvariantViolationError{
				EntityId:       entityId,
				ObligationId:   obligation.ID,
				TotalPaid:      obligation.PaidAmount,
				TotalAllocated: obligation.Amount,
			}
		}
		totalPaid = totalPaid.Add(obligation.PaidAmount)
	}

	totalAllocated := decimal.Zero
	for _, payment := range payments {
		totalAllocated = totalAllocated.Add(payment.Amount.Sub(payment.UnallocatedAmount))
	}

	if !totalPaid.Equal(totalAllocated) {
		return &InvariantViolationError{
			EntityId:       entityId,
			TotalPaid:      totalPaid,
			TotalAllocated: totalAllocated,
		}
	}
	return nil
}
