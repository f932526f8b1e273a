package reconcile

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeStore is an in-memory Store for exercising the replay path without
// MySQL. Save failures can be injected to simulate a mid-pass write error.
type fakeStore struct {
	obligations []*models.Obligation
	payments    []*models.Payment

	obligationSaves      int
	failObligationSaveAt int // fail the nth SaveObligation call, 0 = never
}

func (s *fakeStore) ListObligations(ctx context.Context, entityId int) ([]*models.Obligation, error) {
	out := make([]*models.Obligation, len(s.obligations))
	copy(out, s.obligations)
	return out, nil
}

func (s *fakeStore) ListPayments(ctx context.Context, entityId int) ([]*models.Payment, error) {
	out := make([]*models.Payment, len(s.payments))
	copy(out, s.payments)
	return out, nil
}

func (s *fakeStore) SaveObligation(ctx context.Context, obligation *models.Obligation) error {
	s.obligationSaves++
	if s.failObligationSaveAt > 0 && s.obligationSaves == s.failObligationSaveAt {
		return errors.New("simulated write failure")
	}
	return nil
}

func (s *fakeStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *fakeStore) DeletePayment(ctx context.Context, paymentId int) error {
	for i, p := range s.payments {
		if p.ID == paymentId {
			s.payments = append(s.payments[:i], s.payments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func TestReplayEntity_MatchesPureReplay(t *testing.T) {
	store := &fakeStore{
		obligations: []*models.Obligation{
			makeObligation(t, 1, "2024-01-01", "100"),
			makeObligation(t, 2, "2024-01-02", "50"),
		},
		payments: []*models.Payment{
			makePayment(t, 1, "2024-01-03", "60"),
			makePayment(t, 2, "2024-01-04", "90"),
		},
	}

	if err := replayEntity(context.Background(), store, 1); err != nil {
		t.Fatalf("replayEntity: %v", err)
	}

	assertDecimal(t, "obligation1 paid", store.obligations[0].PaidAmount, dec(t, "100"))
	assertDecimal(t, "obligation2 paid", store.obligations[1].PaidAmount, dec(t, "50"))
	assertDecimal(t, "payment1 unallocated", store.payments[0].UnallocatedAmount, decimal.Zero)
	assertDecimal(t, "payment2 unallocated", store.payments[1].UnallocatedAmount, decimal.Zero)
}

func TestReplayEntity_AfterDeleteMatchesFreshState(t *testing.T) {
	store := &fakeStore{
		obligations: []*models.Obligation{
			makeObligation(t, 1, "2024-01-01", "100"),
			makeObligation(t, 2, "2024-01-02", "50"),
		},
		payments: []*models.Payment{
			makePayment(t, 1, "2024-01-03", "60"),
			makePayment(t, 2, "2024-01-04", "90"),
		},
	}
	if err := replayEntity(context.Background(), store, 1); err != nil {
		t.Fatalf("initial replayEntity: %v", err)
	}

	if err := store.DeletePayment(context.Background(), 1); err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	if err := replayEntity(context.Background(), store, 1); err != nil {
		t.Fatalf("replayEntity after delete: %v", err)
	}

	// a store that never saw the deleted payment
	fresh := &fakeStore{
		obligations: []*models.Obligation{
			makeObligation(t, 1, "2024-01-01", "100"),
			makeObligation(t, 2, "2024-01-02", "50"),
		},
		payments: []*models.Payment{
			makePayment(t, 2, "2024-01-04", "90"),
		},
	}
	if err := replayEntity(context.Background(), fresh, 1); err != nil {
		t.Fatalf("fresh replayEntity: %v", err)
	}

	for i := range fresh.obligations {
		assertDecimal(t, "obligation paid parity", store.obligations[i].PaidAmount, fresh.obligations[i].PaidAmount)
		if store.obligations[i].Status != fresh.obligations[i].Status {
			t.Fatalf("obligation %d status diverged: %s vs %s",
				fresh.obligations[i].ID, store.obligations[i].Status, fresh.obligations[i].Status)
		}
	}
	assertDecimal(t, "survivor unallocated parity", store.payments[0].UnallocatedAmount, fresh.payments[0].UnallocatedAmount)
}

func TestReplayEntity_MidPassFailureSurfacesPartialAllocation(t *testing.T) {
	store := &fakeStore{
		obligations: []*models.Obligation{
			makeObligation(t, 1, "2024-01-01", "100"),
			makeObligation(t, 2, "2024-01-02", "50"),
		},
		payments: []*models.Payment{
			makePayment(t, 1, "2024-01-03", "120"),
		},
		failObligationSaveAt: 2,
	}

	err := replayEntity(context.Background(), store, 1)
	var partialErr *PartialAllocationError
	if !errors.As(err, &partialErr) {
		t.Fatalf("expected PartialAllocationError, got %v", err)
	}
	if partialErr.EntityId != 1 {
		t.Fatalf("entity id: got %d, want 1", partialErr.EntityId)
	}
}

func TestReplayEntity_NoPaymentsResetsEverything(t *testing.T) {
	settled := makeObligation(t, 1, "2024-01-01", "100")
	settled.PaidAmount = dec(t, "100")
	settled.DeriveStatus()

	store := &fakeStore{
		obligations: []*models.Obligation{settled},
	}
	if err := replayEntity(context.Background(), store, 1); err != nil {
		t.Fatalf("replayEntity: %v", err)
	}
	assertDecimal(t, "paid after reset", settled.PaidAmount, decimal.Zero)
	if settled.Status != models.ObligationStatusUnpaid {
		t.Fatalf("status after reset: got %s, want Unpaid", settled.Status)
	}
}
