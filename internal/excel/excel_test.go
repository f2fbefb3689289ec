package excel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"stockledger/internal/domain"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestParseProductRowsXLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Product Code", "Name", "Barcode", "Purchase_Price", "Sale Price", "Min Stock", "Unit"},
		{"P-001", "Widget", "4006381333931", "12.50", "19.99", "5", "pcs"},
		{"", "", "", "", "", "", ""},
		{"P-002", "Gadget", "", "", "7", "", ""},
	})

	rows, err := ParseProductRows("catalog.xlsx", buf)
	if err != nil {
		t.Fatalf("ParseProductRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.Code != "P-001" || first.Name != "Widget" {
		t.Errorf("Expected P-001/Widget, got %s/%s", first.Code, first.Name)
	}
	if first.Barcode == nil || *first.Barcode != "4006381333931" {
		t.Errorf("Expected barcode 4006381333931, got %v", first.Barcode)
	}
	if first.PurchasePrice == nil || first.PurchasePrice.String() != "12.5" {
		t.Errorf("Expected purchase price 12.5, got %v", first.PurchasePrice)
	}
	if first.MinStock == nil || *first.MinStock != 5 {
		t.Errorf("Expected min stock 5, got %v", first.MinStock)
	}

	second := rows[1]
	if second.Row != 4 {
		t.Errorf("Expected source row 4, got %d", second.Row)
	}
	if second.Barcode != nil || second.PurchasePrice != nil || second.MinStock != nil {
		t.Errorf("Expected blank cells to stay nil, got %+v", second)
	}
	if second.SalePrice == nil || second.SalePrice.String() != "7" {
		t.Errorf("Expected sale price 7, got %v", second.SalePrice)
	}
}

func TestParseProductRowsCSV(t *testing.T) {
	data := "\ufeffcode,name,قیمت خرید,min_stock\nA1,Apple,\"۱,۲۰۰\",۳\n"
	rows, err := ParseProductRows("catalog.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseProductRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0].PurchasePrice == nil || rows[0].PurchasePrice.String() != "1200" {
		t.Errorf("Expected purchase price 1200, got %v", rows[0].PurchasePrice)
	}
	if rows[0].MinStock == nil || *rows[0].MinStock != 3 {
		t.Errorf("Expected min stock 3, got %v", rows[0].MinStock)
	}
}

func TestParseProductRowsErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "input file is empty"},
		{"missing name column", "code,price\nA,1\n", "missing required column: name"},
		{"missing code", "code,name\n,Apple\n", "row 2: code is empty"},
		{"duplicate code", "code,name\nA,Apple\nA,Apricot\n", "already used on row 2"},
		{"bad price", "code,name,sale price\nA,Apple,abc\n", "invalid sale_price"},
		{"negative price", "code,name,cost\nA,Apple,-1\n", "price cannot be negative"},
		{"fractional min stock", "code,name,alarm\nA,Apple,1.5\n", "must be an integer"},
		{"no data rows", "code,name\n,\n", "no valid data rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProductRows("catalog.csv", strings.NewReader(tt.data))
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestParseProductRowsSniffsFormat(t *testing.T) {
	rows, err := ParseProductRows("upload", strings.NewReader("code,name\nA,Apple\n"))
	if err != nil {
		t.Fatalf("ParseProductRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "A" {
		t.Errorf("Expected one row with code A, got %+v", rows)
	}
}

func TestWriteInventoryRecords(t *testing.T) {
	at := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	records := []domain.InventoryRecord{
		{
			ID: "r1", ProductID: "p1", ProductName: "Widget", Type: domain.RecordIn,
			Quantity: 20, BeforeStock: 0, AfterStock: 20, BatchNo: "W-20240105-1030-07",
			Provenance: domain.PurchaseProvenance("o1", "PO-20240105-001"),
			Reason:     "purchase receipt - order PO-20240105-001", OperatorName: "System", CreatedAt: at,
		},
		{
			ID: "r2", ProductID: "p1", ProductName: "Widget", Type: domain.RecordAdjust,
			Quantity: -3, BeforeStock: 20, AfterStock: 17, Provenance: domain.AdjustmentProvenance(),
			Reason: "damage", OperatorName: "System", CreatedAt: at,
		},
	}

	var buf bytes.Buffer
	if err := WriteInventoryRecords(&buf, records); err != nil {
		t.Fatalf("WriteInventoryRecords: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(recordsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Date" {
		t.Errorf("Expected header Date, got %s", rows[0][0])
	}
	if rows[1][4] != "20" || rows[2][4] != "-3" {
		t.Errorf("Expected quantities 20 and -3, got %s and %s", rows[1][4], rows[2][4])
	}
	if rows[1][8] != "purchase:PO-20240105-001" {
		t.Errorf("Expected provenance purchase:PO-20240105-001, got %s", rows[1][8])
	}
	if rows[2][9] != "damage" {
		t.Errorf("Expected reason damage, got %s", rows[2][9])
	}
}
