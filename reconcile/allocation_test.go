package reconcile

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the allocation
// semantics: oldest-first greedy allocation, conservation of money between
// obligations and payments, and deterministic reset-and-replay.
//
// Full DB integration tests should be added in an environment that can run MySQL + Redis.

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func makeObligation(t *testing.T, id int, date string, amount string) *models.Obligation {
	t.Helper()
	o := &models.Obligation{
		ID:             id,
		BusinessId:     "biz-1",
		EntityId:       1,
		ObligationDate: day(t, date),
		Amount:         dec(t, amount),
		PaidAmount:     decimal.Zero,
	}
	o.DeriveStatus()
	return o
}

func makePayment(t *testing.T, id int, date string, amount string) *models.Payment {
	t.Helper()
	return &models.Payment{
		ID:          id,
		BusinessId:  "biz-1",
		EntityId:    1,
		PaymentDate: day(t, date),
		Amount:      dec(t, amount),
	}
}

func assertDecimal(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s: got %s, want %s", name, got.String(), want.String())
	}
}

func TestAllocate_PartialSecondObligation(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
		makeObligation(t, 2, "2024-01-02", "50"),
	}
	SortObligations(obligations)

	result, err := Allocate(dec(t, "120"), obligations)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	assertDecimal(t, "obligation1 paid", obligations[0].PaidAmount, dec(t, "100"))
	if obligations[0].Status != models.ObligationStatusPaid {
		t.Fatalf("obligation1 status: got %s, want Paid", obligations[0].Status)
	}
	assertDecimal(t, "obligation2 paid", obligations[1].PaidAmount, dec(t, "20"))
	if obligations[1].Status != models.ObligationStatusUnpaid {
		t.Fatalf("obligation2 status: got %s, want Unpaid", obligations[1].Status)
	}
	assertDecimal(t, "remainder", result.Remainder, decimal.Zero)

	if len(result.Changed) != 2 || result.Changed[0].ID != 1 || result.Changed[1].ID != 2 {
		t.Fatalf("changed obligations not in visit order: %+v", result.Changed)
	}
}

func TestAllocate_OverpaymentLeavesRemainder(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
		makeObligation(t, 2, "2024-01-02", "50"),
	}
	SortObligations(obligations)

	result, err := Allocate(dec(t, "200"), obligations)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	for _, o := range obligations {
		if o.Status != models.ObligationStatusPaid {
			t.Fatalf("obligation %d status: got %s, want Paid", o.ID, o.Status)
		}
		assertDecimal(t, "paid == amount", o.PaidAmount, o.Amount)
	}
	assertDecimal(t, "remainder", result.Remainder, dec(t, "50"))
}

func TestAllocate_SequentialPaymentsSettleBoth(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
		makeObligation(t, 2, "2024-01-02", "50"),
	}
	SortObligations(obligations)

	first, err := Allocate(dec(t, "60"), obligations)
	if err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	assertDecimal(t, "first remainder", first.Remainder, decimal.Zero)
	assertDecimal(t, "obligation1 after first", obligations[0].PaidAmount, dec(t, "60"))

	second, err := Allocate(dec(t, "90"), obligations)
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	assertDecimal(t, "second remainder", second.Remainder, decimal.Zero)
	assertDecimal(t, "obligation1 after second", obligations[0].PaidAmount, dec(t, "100"))
	assertDecimal(t, "obligation2 after second", obligations[1].PaidAmount, dec(t, "50"))
	for _, o := range obligations {
		if o.Status != models.ObligationStatusPaid {
			t.Fatalf("obligation %d status: got %s, want Paid", o.ID, o.Status)
		}
	}
}

func TestAllocate_NegativeAmountRejected(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
	}

	_, err := Allocate(dec(t, "-10"), obligations)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	assertDecimal(t, "obligation untouched", obligations[0].PaidAmount, decimal.Zero)
	if obligations[0].Status != models.ObligationStatusUnpaid {
		t.Fatalf("obligation status changed on rejected payment: %s", obligations[0].Status)
	}
}

func TestAllocate_ZeroPaymentIsNoOp(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
	}

	result, err := Allocate(decimal.Zero, obligations)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	assertDecimal(t, "remainder", result.Remainder, decimal.Zero)
	if len(result.Changed) != 0 {
		t.Fatalf("zero payment changed %d obligations", len(result.Changed))
	}
	assertDecimal(t, "obligation untouched", obligations[0].PaidAmount, decimal.Zero)
}

func TestAllocate_ZeroAmountObligationAbsorbsNothing(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "0"),
		makeObligation(t, 2, "2024-01-02", "50"),
	}
	SortObligations(obligations)

	result, err := Allocate(dec(t, "30"), obligations)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if obligations[0].Status != models.ObligationStatusPaid {
		t.Fatalf("zero-amount obligation: got %s, want Paid", obligations[0].Status)
	}
	assertDecimal(t, "zero-amount obligation paid", obligations[0].PaidAmount, decimal.Zero)
	assertDecimal(t, "second obligation paid", obligations[1].PaidAmount, dec(t, "30"))
	assertDecimal(t, "remainder", result.Remainder, decimal.Zero)
}

func TestAllocate_SkipsPaidObligations(t *testing.T) {
	settled := makeObligation(t, 1, "2024-01-01", "100")
	settled.PaidAmount = dec(t, "100")
	settled.DeriveStatus()
	open := makeObligation(t, 2, "2024-01-02", "50")

	obligations := []*models.Obligation{settled, open}
	SortObligations(obligations)

	result, err := Allocate(dec(t, "40"), obligations)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	assertDecimal(t, "settled obligation unchanged", settled.PaidAmount, dec(t, "100"))
	assertDecimal(t, "open obligation paid", open.PaidAmount, dec(t, "40"))
	assertDecimal(t, "remainder", result.Remainder, decimal.Zero)
}

func TestSortObligations_SameDateTieBreaksById(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 7, "2024-01-01", "50"),
		makeObligation(t, 3, "2024-01-01", "50"),
	}
	SortObligations(obligations)

	if obligations[0].ID != 3 || obligations[1].ID != 7 {
		t.Fatalf("tie-break order: got [%d %d], want [3 7]", obligations[0].ID, obligations[1].ID)
	}

	// the lower id absorbs first
	if _, err := Allocate(dec(t, "50"), obligations); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	assertDecimal(t, "lower id paid", obligations[0].PaidAmount, dec(t, "50"))
	assertDecimal(t, "higher id paid", obligations[1].PaidAmount, decimal.Zero)
}

func TestReplay_DeleteThenReplayMatchesNeverExisted(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
		makeObligation(t, 2, "2024-01-02", "50"),
	}
	p1 := makePayment(t, 1, "2024-01-03", "60")
	p2 := makePayment(t, 2, "2024-01-04", "90")

	if err := Replay(obligations, []*models.Payment{p1, p2}); err != nil {
		t.Fatalf("initial Replay: %v", err)
	}
	assertDecimal(t, "obligation1 before delete", obligations[0].PaidAmount, dec(t, "100"))
	assertDecimal(t, "obligation2 before delete", obligations[1].PaidAmount, dec(t, "50"))

	// delete the 60 payment and replay the survivor
	if err := Replay(obligations, []*models.Payment{p2}); err != nil {
		t.Fatalf("Replay after delete: %v", err)
	}

	assertDecimal(t, "obligation1 after delete", obligations[0].PaidAmount, dec(t, "90"))
	if obligations[0].Status != models.ObligationStatusUnpaid {
		t.Fatalf("obligation1 status after delete: got %s, want Unpaid", obligations[0].Status)
	}
	assertDecimal(t, "obligation2 after delete", obligations[1].PaidAmount, decimal.Zero)
	assertDecimal(t, "survivor unallocated", p2.UnallocatedAmount, decimal.Zero)

	if err := VerifyConservation(1, obligations, []*models.Payment{p2}); err != nil {
		t.Fatalf("conservation after delete+replay: %v", err)
	}
}

func TestReplay_DeterministicAcrossStorageOrder(t *testing.T) {
	build := func(obligationOrder, paymentOrder []int) ([]*models.Obligation, []*models.Payment) {
		byId := map[int]*models.Obligation{
			1: makeObligation(t, 1, "2024-01-01", "80"),
			2: makeObligation(t, 2, "2024-01-01", "40"),
			3: makeObligation(t, 3, "2024-01-05", "120"),
		}
		paymentsById := map[int]*models.Payment{
			1: makePayment(t, 1, "2024-01-02", "70"),
			2: makePayment(t, 2, "2024-01-06", "100"),
			3: makePayment(t, 3, "2024-01-06", "30"),
		}
		var obligations []*models.Obligation
		for _, id := range obligationOrder {
			obligations = append(obligations, byId[id])
		}
		var payments []*models.Payment
		for _, id := range paymentOrder {
			payments = append(payments, paymentsById[id])
		}
		return obligations, payments
	}

	aObligations, aPayments := build([]int{1, 2, 3}, []int{1, 2, 3})
	bObligations, bPayments := build([]int{3, 1, 2}, []int{2, 3, 1})

	if err := Replay(aObligations, aPayments); err != nil {
		t.Fatalf("Replay a: %v", err)
	}
	if err := Replay(bObligations, bPayments); err != nil {
		t.Fatalf("Replay b: %v", err)
	}

	paidById := func(obligations []*models.Obligation) map[int]decimal.Decimal {
		out := map[int]decimal.Decimal{}
		for _, o := range obligations {
			out[o.ID] = o.PaidAmount
		}
		return out
	}
	aPaid, bPaid := paidById(aObligations), paidById(bObligations)
	for id, want := range aPaid {
		if !bPaid[id].Equal(want) {
			t.Fatalf("obligation %d paid diverged: %s vs %s", id, want.String(), bPaid[id].String())
		}
	}

	for i := range aPayments {
		for j := range bPayments {
			if aPayments[i].ID == bPayments[j].ID {
				assertDecimal(t, "payment unallocated", bPayments[j].UnallocatedAmount, aPayments[i].UnallocatedAmount)
			}
		}
	}

	if err := VerifyConservation(1, aObligations, aPayments); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestVerifyConservation_DetectsSumMismatch(t *testing.T) {
	obligations := []*models.Obligation{
		makeObligation(t, 1, "2024-01-01", "100"),
	}
	payment := makePayment(t, 1, "2024-01-02", "100")
	if err := Replay(obligations, []*models.Payment{payment}); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	// tamper with persisted state
	obligations[0].PaidAmount = dec(t, "90")

	err := VerifyConservation(1, obligations, []*models.Payment{payment})
	var invariantErr *InvariantViolationError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
	if invariantErr.ObligationId != 0 {
		t.Fatalf("sum mismatch should not name an obligation, got %d", invariantErr.ObligationId)
	}
	assertDecimal(t, "total paid", invariantErr.TotalPaid, dec(t, "90"))
	assertDecimal(t, "total allocated", invariantErr.TotalAllocated, dec(t, "100"))
}

func TestVerifyConservation_DetectsBoundsViolation(t *testing.T) {
	obligation := makeObligation(t, 5, "2024-01-01", "100")
	obligation.PaidAmount = dec(t, "130")

	err := VerifyConservation(1, []*models.Obligation{obligation}, nil)
	var invariantErr *InvariantViolationError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
	if invariantErr.ObligationId != 5 {
		t.Fatalf("bounds violation should name obligation 5, got %d", invariantErr.ObligationId)
	}
}
