package excel

import (
	"fmt"
	"io"

	"stockledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

const recordsSheet = "Inventory Records"

var recordsHeader = []any{
	"Date", "Product ID", "Product", "Type", "Quantity", "Before", "After",
	"Batch No", "Provenance", "Reason", "Operator",
}

// WriteInventoryRecords writes one sheet with a row per ledger line in the
// order given.
func WriteInventoryRecords(w io.Writer, records []domain.InventoryRecord) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := file.SetSheetRow(recordsSheet, "A1", &recordsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(recordsHeader))
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(recordsSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			record.CreatedAt.Format("2006-01-02 15:04:05"),
			record.ProductID,
			record.ProductName,
			string(record.Type),
			record.Quantity,
			record.BeforeStock,
			record.AfterStock,
			record.BatchNo,
			record.Provenance.String(),
			record.Reason,
			record.OperatorName,
		}
		if err := file.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("write record %s: %w", record.ID, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
