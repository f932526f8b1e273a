package reports

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"github.com/shopspring/decimal"
)

func statementDay(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func assertStatementDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", label, got.String(), want)
	}
}

func TestBuildEntityStatement_RunningBalanceAndTotals(t *testing.T) {
	entity := &models.Entity{ID: 7, Name: "Daw Mya Mya", Type: models.EntityTypeCustomer}

	obligations := []*statementObligationRow{
		{
			ObligationDate: statementDay(1),
			RefType:        "Order",
			Reference:      "TO-1",
			Amount:         decimal.RequireFromString("100"),
			PaidAmount:     decimal.RequireFromString("100"),
		},
		{
			ObligationDate: statementDay(5),
			RefType:        "Order",
			Reference:      "TO-2",
			Amount:         decimal.RequireFromString("80"),
			PaidAmount:     decimal.RequireFromString("30"),
		},
	}
	payments := []*statementPaymentRow{
		{
			PaymentDate:       statementDay(3),
			PaymentNumber:     "PMT-1",
			Amount:            decimal.RequireFromString("100"),
			UnallocatedAmount: decimal.Zero,
		},
		{
			PaymentDate:       statementDay(6),
			PaymentNumber:     "PMT-2",
			Amount:            decimal.RequireFromString("40"),
			UnallocatedAmount: decimal.RequireFromString("10"),
		},
	}

	st := buildEntityStatement(entity, statementDay(1), statementDay(31), obligations, payments)

	if len(st.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(st.Rows))
	}
	wantOrder := []string{"TO-1", "PMT-1", "TO-2", "PMT-2"}
	for i, ref := range wantOrder {
		if st.Rows[i].Reference != ref {
			t.Fatalf("row %d reference = %s, want %s", i, st.Rows[i].Reference, ref)
		}
	}

	// +100, -100, +80, -40
	wantBalance := []string{"100", "0", "80", "40"}
	for i, b := range wantBalance {
		assertStatementDecimal(t, "row balance", st.Rows[i].Balance, b)
	}

	assertStatementDecimal(t, "TotalAmount", st.TotalAmount, "180")
	assertStatementDecimal(t, "TotalPaid", st.TotalPaid, "130")
	assertStatementDecimal(t, "RemainingBalance", st.RemainingBalance, "50")
	assertStatementDecimal(t, "TotalUnallocated", st.TotalUnallocated, "10")
}

func TestBuildEntityStatement_ObligationSortsBeforePaymentOnSameDate(t *testing.T) {
	entity := &models.Entity{ID: 2, Name: "U Aung Ko", Type: models.EntityTypePayee}

	obligations := []*statementObligationRow{
		{
			ObligationDate: statementDay(10),
			RefType:        "OrderCostLine",
			Reference:      "TO-9/cost",
			Amount:         decimal.RequireFromString("55"),
			PaidAmount:     decimal.RequireFromString("55"),
		},
	}
	payments := []*statementPaymentRow{
		{
			PaymentDate:   statementDay(10),
			PaymentNumber: "PMT-3",
			Amount:        decimal.RequireFromString("55"),
		},
	}

	st := buildEntityStatement(entity, statementDay(1), statementDay(31), obligations, payments)

	if st.Rows[0].Kind != "Obligation" || st.Rows[1].Kind != "Payment" {
		t.Fatalf("same-date order = [%s %s], want [Obligation Payment]", st.Rows[0].Kind, st.Rows[1].Kind)
	}
	assertStatementDecimal(t, "final balance", st.Rows[1].Balance, "0")
	assertStatementDecimal(t, "RemainingBalance", st.RemainingBalance, "0")
}

func TestBuildEntityStatement_EmptyRangeIsZeroed(t *testing.T) {
	entity := &models.Entity{ID: 3, Name: "Ma Thida", Type: models.EntityTypeCustomer}

	st := buildEntityStatement(entity, statementDay(1), statementDay(2), nil, nil)

	if len(st.Rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(st.Rows))
	}
	assertStatementDecimal(t, "TotalAmount", st.TotalAmount, "0")
	assertStatementDecimal(t, "RemainingBalance", st.RemainingBalance, "0")
}
