package reports_test

import (
	"bytes"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models/reports"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestExportStatementXLSX_RoundTrip(t *testing.T) {
	statement := &reports.EntityStatement{
		EntityId:   1,
		EntityName: "U Kyaw Kyaw",
		EntityType: "Customer",
		FromDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ToDate:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Rows: []reports.StatementRow{
			{
				Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				Kind:      "Obligation",
				Reference: "TO-1",
				Amount:    decimal.NewFromInt(100),
				Balance:   decimal.NewFromInt(100),
			},
			{
				Date:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
				Kind:      "Payment",
				Reference: "PMT-1",
				Amount:    decimal.NewFromInt(60),
				Balance:   decimal.NewFromInt(40),
			},
		},
		TotalAmount:      decimal.NewFromInt(100),
		TotalPaid:        decimal.NewFromInt(60),
		RemainingBalance: decimal.NewFromInt(40),
	}

	var buf bytes.Buffer
	if err := reports.ExportStatementXLSX(&buf, statement); err != nil {
		t.Fatalf("ExportStatementXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	got := func(cell string) string {
		t.Helper()
		v, err := f.GetCellValue("Statement", cell)
		if err != nil {
			t.Fatalf("GetCellValue %s: %v", cell, err)
		}
		return v
	}

	if got("A1") != "U Kyaw Kyaw" {
		t.Fatalf("A1: got %q, want entity name", got("A1"))
	}
	if got("A5") != "2024-01-01" {
		t.Fatalf("A5: got %q, want first row date", got("A5"))
	}
	if got("C6") != "PMT-1" {
		t.Fatalf("C6: got %q, want payment reference", got("C6"))
	}
	if got("E8") != "100" {
		t.Fatalf("E8: got %q, want total amount", got("E8"))
	}
}
