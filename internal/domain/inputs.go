package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Code          string          `json:"code"`
	Barcode       *string         `json:"barcode,omitempty"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	MinStock      int             `json:"min_stock"`
	Status        Status          `json:"status"`
}

// ProductPatch deliberately has no stock field: stock only moves through
// receive, ship and adjust.
type ProductPatch struct {
	Code          *string          `json:"code"`
	Barcode       *string          `json:"barcode"`
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	Specification *string          `json:"specification"`
	Unit          *string          `json:"unit"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	MinStock      *int             `json:"min_stock"`
	Status        *Status          `json:"status"`
}

type SupplierInput struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Contact string  `json:"contact"`
	Phone   string  `json:"phone"`
	Address string  `json:"address"`
	Email   *string `json:"email,omitempty"`
	Status  Status  `json:"status"`
}

type SupplierPatch struct {
	Code    *string `json:"code"`
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Email   *string `json:"email"`
	Status  *Status `json:"status"`
}

type CustomerInput struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Contact string          `json:"contact"`
	Phone   string          `json:"phone"`
	Address string          `json:"address"`
	Email   *string         `json:"email,omitempty"`
	Credit  decimal.Decimal `json:"credit"`
	Status  Status          `json:"status"`
}

type CustomerPatch struct {
	Code    *string          `json:"code"`
	Name    *string          `json:"name"`
	Contact *string          `json:"contact"`
	Phone   *string          `json:"phone"`
	Address *string          `json:"address"`
	Email   *string          `json:"email"`
	Credit  *decimal.Decimal `json:"credit"`
	Status  *Status          `json:"status"`
}

type OrderLineInput struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type PurchaseOrderInput struct {
	OrderNo      string           `json:"order_no"`
	SupplierID   string           `json:"supplier_id"`
	OrderDate    *time.Time       `json:"order_date"`
	ExpectedDate *time.Time       `json:"expected_date"`
	Status       OrderStatus      `json:"status"`
	Items        []OrderLineInput `json:"items"`
}

type PurchaseOrderPatch struct {
	SupplierID   *string           `json:"supplier_id"`
	OrderDate    *time.Time        `json:"order_date"`
	ExpectedDate *time.Time        `json:"expected_date"`
	Status       *OrderStatus      `json:"status"`
	Items        *[]OrderLineInput `json:"items"`
}

type SaleOrderInput struct {
	OrderNo      string           `json:"order_no"`
	CustomerID   string           `json:"customer_id"`
	OrderDate    *time.Time       `json:"order_date"`
	DeliveryDate *time.Time       `json:"delivery_date"`
	Status       OrderStatus      `json:"status"`
	Items        []OrderLineInput `json:"items"`
}

type SaleOrderPatch struct {
	CustomerID   *string           `json:"customer_id"`
	OrderDate    *time.Time        `json:"order_date"`
	DeliveryDate *time.Time        `json:"delivery_date"`
	Status       *OrderStatus      `json:"status"`
	Items        *[]OrderLineInput `json:"items"`
}

// StockLine is one entry of a receive or ship request.
type StockLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ReceiveCommand struct {
	OrderID        string      `json:"-"`
	Lines          []StockLine `json:"items"`
	IdempotencyKey string      `json:"-"`
	Operator       *Operator   `json:"operator"`
}

type ShipCommand struct {
	OrderID        string      `json:"-"`
	Lines          []StockLine `json:"items"`
	IdempotencyKey string      `json:"-"`
	Operator       *Operator   `json:"operator"`
}

// AdjustCommand corrects stock by a signed delta. UnitCost prices the batch
// created for a positive delta; the product's purchase price is used when nil.
// A positive delta with a SupplierID is a manual receipt outside any purchase
// order and its batch carries manual provenance.
type AdjustCommand struct {
	ProductID      string           `json:"product_id"`
	Delta          int              `json:"delta"`
	Reason         string           `json:"reason"`
	UnitCost       *decimal.Decimal `json:"unit_cost"`
	SupplierID     string           `json:"supplier_id"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	IdempotencyKey string           `json:"-"`
	Operator       *Operator        `json:"operator"`
}

// ProductImportRow is one parsed spreadsheet row. Nil fields were absent or
// blank in the file and leave the stored value alone on update.
type ProductImportRow struct {
	Row           int
	Code          string
	Barcode       *string
	Name          string
	Category      *string
	Specification *string
	Unit          *string
	PurchasePrice *decimal.Decimal
	SalePrice     *decimal.Decimal
	MinStock      *int
}
