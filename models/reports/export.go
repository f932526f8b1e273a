package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportStatementXLSX writes the statement as an xlsx workbook. The caller
// sets the content-type and disposition headers.
func ExportStatementXLSX(w io.Writer, statement *EntityStatement) error {

	f := excelize.NewFile()
	sheetName := "Statement"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", statement.EntityName)
	f.SetCellValue(sheetName, "B1", statement.EntityType)
	f.SetCellValue(sheetName, "A2", statement.FromDate.Format("2006-01-02"))
	f.SetCellValue(sheetName, "B2", statement.ToDate.Format("2006-01-02"))

	// Add headers
	f.SetCellValue(sheetName, "A4", "Date")
	f.SetCellValue(sheetName, "B4", "Kind")
	f.SetCellValue(sheetName, "C4", "Reference")
	f.SetCellValue(sheetName, "D4", "Description")
	f.SetCellValue(sheetName, "E4", "Amount")
	f.SetCellValue(sheetName, "F4", "Paid")
	f.SetCellValue(sheetName, "G4", "Unallocated")
	f.SetCellValue(sheetName, "H4", "Balance")

	// Add data
	rowNo := 5
	for _, r := range statement.Rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(rowNo), r.Date.Format("2006-01-02"))
		f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), r.Kind)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), r.Reference)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), r.Description)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), r.Amount.InexactFloat64())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(rowNo), r.PaidAmount.InexactFloat64())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(rowNo), r.Unallocated.InexactFloat64())
		f.SetCellValue(sheetName, "H"+fmt.Sprint(rowNo), r.Balance.InexactFloat64())
		rowNo++
	}

	rowNo++
	f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), "Total Amount")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), statement.TotalAmount.InexactFloat64())
	rowNo++
	f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), "Total Paid")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), statement.TotalPaid.InexactFloat64())
	rowNo++
	f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), "Remaining Balance")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), statement.RemainingBalance.InexactFloat64())
	rowNo++
	f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), "Unallocated")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), statement.TotalUnallocated.InexactFloat64())

	return f.Write(w)
}
