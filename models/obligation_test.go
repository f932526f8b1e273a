package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"github.com/shopspring/decimal"
)

func TestObligation_DeriveStatusBoundary(t *testing.T) {
	o := models.Obligation{
		Amount:     decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(99),
	}
	o.DeriveStatus()
	if o.Status != models.ObligationStatusUnpaid {
		t.Fatalf("99/100: got %s, want Unpaid", o.Status)
	}

	o.PaidAmount = decimal.NewFromInt(100)
	o.DeriveStatus()
	if o.Status != models.ObligationStatusPaid {
		t.Fatalf("100/100: got %s, want Paid", o.Status)
	}
}

func TestObligation_ZeroAmountIsPaid(t *testing.T) {
	o := models.Obligation{Amount: decimal.Zero, PaidAmount: decimal.Zero}
	o.DeriveStatus()
	if o.Status != models.ObligationStatusPaid {
		t.Fatalf("zero-amount obligation: got %s, want Paid", o.Status)
	}
}

func TestObligation_UnpaidAmount(t *testing.T) {
	o := models.Obligation{
		Amount:     decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(35),
	}
	if got := o.UnpaidAmount(); !got.Equal(decimal.NewFromInt(65)) {
		t.Fatalf("unpaid amount: got %s, want 65", got.String())
	}
}

func TestObligation_ResetAllocation(t *testing.T) {
	o := models.Obligation{
		Amount:     decimal.NewFromInt(100),
		PaidAmount: decimal.NewFromInt(100),
	}
	o.DeriveStatus()
	o.ResetAllocation()
	if !o.PaidAmount.IsZero() {
		t.Fatalf("paid after reset: got %s, want 0", o.PaidAmount.String())
	}
	if o.Status != models.ObligationStatusUnpaid {
		t.Fatalf("status after reset: got %s, want Unpaid", o.Status)
	}
}

func TestParseEntityType(t *testing.T) {
	if _, err := models.ParseEntityType("Customer"); err != nil {
		t.Fatalf("Customer: %v", err)
	}
	if _, err := models.ParseEntityType("Payee"); err != nil {
		t.Fatalf("Payee: %v", err)
	}
	if _, err := models.ParseEntityType("Vendor"); err == nil {
		t.Fatal("Vendor accepted, want error")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for _, m := range []string{"Cash", "KPay", "WavePay", "BankTransfer"} {
		if _, err := models.ParsePaymentMethod(m); err != nil {
			t.Fatalf("%s: %v", m, err)
		}
	}
	if _, err := models.ParsePaymentMethod("Cheque"); err == nil {
		t.Fatal("Cheque accepted, want error")
	}
}
