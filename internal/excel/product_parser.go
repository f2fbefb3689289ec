package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"code":           "code",
	"product code":   "code",
	"sku":            "code",
	"کد":             "code",
	"کد کالا":        "code",
	"barcode":        "barcode",
	"bar code":       "barcode",
	"ean":            "barcode",
	"بارکد":          "barcode",
	"name":           "name",
	"product name":   "name",
	"product":        "name",
	"نام محصول":      "name",
	"نام کالا":       "name",
	"category":       "category",
	"دسته بندی":      "category",
	"specification":  "specification",
	"spec":           "specification",
	"مشخصات":         "specification",
	"unit":           "unit",
	"واحد":           "unit",
	"purchase price": "purchase_price",
	"buy price":      "purchase_price",
	"cost":           "purchase_price",
	"قیمت خرید":      "purchase_price",
	"قيمت خريد":      "purchase_price",
	"sale price":     "sale_price",
	"sell price":     "sale_price",
	"sales price":    "sale_price",
	"price":          "sale_price",
	"قیمت فروش":      "sale_price",
	"قيمت فروش":      "sale_price",
	"min stock":      "min_stock",
	"minimum stock":  "min_stock",
	"alarm":          "min_stock",
	"آلارم":          "min_stock",
	"حداقل موجودی":   "min_stock",
}

var (
	persianDigitsReplacer = strings.NewReplacer(
		"۰", "0",
		"۱", "1",
		"۲", "2",
		"۳", "3",
		"۴", "4",
		"۵", "5",
		"۶", "6",
		"۷", "7",
		"۸", "8",
		"۹", "9",
	)
	arabicDigitsReplacer = strings.NewReplacer(
		"٠", "0",
		"١", "1",
		"٢", "2",
		"٣", "3",
		"٤", "4",
		"٥", "5",
		"٦", "6",
		"٧", "7",
		"٨", "8",
		"٩", "9",
	)
)

// ParseProductRows reads a product catalog from an xlsx or csv file. The
// format follows the file extension; unknown extensions try xlsx, then csv.
// Only code and name columns are required.
func ParseProductRows(fileName string, reader io.Reader) ([]domain.ProductImportRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(fileName)))
	switch ext {
	case ".csv":
		rows, err := parseCSVRows(data)
		if err != nil {
			return nil, err
		}
		return parseProductTable(rows)
	case ".xlsx", ".xlsm":
		rows, err := parseExcelRows(data)
		if err != nil {
			return nil, err
		}
		return parseProductTable(rows)
	default:
		if rows, err := parseExcelRows(data); err == nil {
			if items, err := parseProductTable(rows); err == nil {
				return items, nil
			}
		}
		if rows, err := parseCSVRows(data); err == nil {
			if items, err := parseProductTable(rows); err == nil {
				return items, nil
			}
		}
		return nil, fmt.Errorf("unsupported or invalid product file format")
	}
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseProductTable(rows [][]string) ([]domain.ProductImportRow, error) {
	colMap := mapColumns(rows[0])
	for _, required := range []string{"code", "name"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.ProductImportRow, 0, len(rows)-1)
	seen := make(map[string]int)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		line := index + 1
		code := cleanText(readCell(cells, colMap["code"]))
		name := cleanText(readCell(cells, colMap["name"]))
		if code == "" && name == "" {
			continue
		}
		if code == "" {
			return nil, fmt.Errorf("row %d: code is empty", line)
		}
		if name == "" {
			return nil, fmt.Errorf("row %d: name is empty", line)
		}
		if first, dup := seen[code]; dup {
			return nil, fmt.Errorf("row %d: code %s already used on row %d", line, code, first)
		}
		seen[code] = line

		row := domain.ProductImportRow{Row: line, Code: code, Name: name}
		row.Barcode = optionalText(cells, colMap, "barcode")
		row.Category = optionalText(cells, colMap, "category")
		row.Specification = optionalText(cells, colMap, "specification")
		row.Unit = optionalText(cells, colMap, "unit")

		var err error
		if row.PurchasePrice, err = optionalPrice(cells, colMap, "purchase_price"); err != nil {
			return nil, fmt.Errorf("row %d invalid purchase_price: %w", line, err)
		}
		if row.SalePrice, err = optionalPrice(cells, colMap, "sale_price"); err != nil {
			return nil, fmt.Errorf("row %d invalid sale_price: %w", line, err)
		}
		if raw := readOptionalCell(cells, colMap, "min_stock"); strings.TrimSpace(raw) != "" {
			value, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid min_stock: %w", line, err)
			}
			if value < 0 {
				return nil, fmt.Errorf("row %d invalid min_stock: cannot be negative", line)
			}
			row.MinStock = &value
		}
		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.ReplaceAll(value, "-", " ")
	return strings.Join(strings.Fields(value), " ")
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readOptionalCell(cells []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return readCell(cells, idx)
}

func optionalText(cells []string, colMap map[string]int, key string) *string {
	if _, ok := colMap[key]; !ok {
		return nil
	}
	value := cleanText(readOptionalCell(cells, colMap, key))
	if value == "" {
		return nil
	}
	return &value
}

func optionalPrice(cells []string, colMap map[string]int, key string) (*decimal.Decimal, error) {
	raw := normalizeNumericValue(readOptionalCell(cells, colMap, key))
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("not a number")
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative")
	}
	return &value, nil
}

func parseInt(raw string) (int, error) {
	value := normalizeNumericValue(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func normalizeNumericValue(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = persianDigitsReplacer.Replace(value)
	value = arabicDigitsReplacer.Replace(value)
	value = strings.ReplaceAll(value, "٬", "")
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, "،", "")
	value = strings.ReplaceAll(value, "٫", ".")
	return strings.TrimSpace(value)
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
