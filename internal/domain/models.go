package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

type Product struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Barcode       *string         `json:"barcode,omitempty"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Specification string          `json:"specification"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
	MinStock      int             `json:"min_stock"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

type Supplier struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Email     *string   `json:"email,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer carries a credit limit that is informational only; orders are not
// checked against it.
type Customer struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Contact   string          `json:"contact"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address"`
	Email     *string         `json:"email,omitempty"`
	Credit    decimal.Decimal `json:"credit"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type PurchaseOrder struct {
	ID             string          `json:"id"`
	OrderNo        string          `json:"order_no"`
	SupplierID     string          `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	OrderDate      time.Time       `json:"order_date"`
	ExpectedDate   *time.Time      `json:"expected_date,omitempty"`
	Status         OrderStatus     `json:"status"`
	Items          []PurchaseItem  `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PurchaseItem.Amount is fixed at quantity*price when the line is created and
// is never recomputed from ReceivedQuantity.
type PurchaseItem struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	ReceivedQuantity int             `json:"received_quantity"`
	Amount           decimal.Decimal `json:"amount"`
}

func (i PurchaseItem) Outstanding() int {
	return i.Quantity - i.ReceivedQuantity
}

func (o PurchaseOrder) FullyReceived() bool {
	for _, item := range o.Items {
		if item.ReceivedQuantity < item.Quantity {
			return false
		}
	}
	return true
}

func (o PurchaseOrder) HasReceipts() bool {
	for _, item := range o.Items {
		if item.ReceivedQuantity > 0 {
			return true
		}
	}
	return false
}

type SaleOrder struct {
	ID            string          `json:"id"`
	OrderNo       string          `json:"order_no"`
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	OrderDate     time.Time       `json:"order_date"`
	DeliveryDate  *time.Time      `json:"delivery_date,omitempty"`
	Status        OrderStatus     `json:"status"`
	Items         []SaleItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ShippedAmount decimal.Decimal `json:"shipped_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type SaleItem struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	Quantity        int               `json:"quantity"`
	Price           decimal.Decimal   `json:"price"`
	ShippedQuantity int               `json:"shipped_quantity"`
	Batches         []BatchAllocation `json:"batches,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
}

func (i SaleItem) Outstanding() int {
	return i.Quantity - i.ShippedQuantity
}

func (o SaleOrder) FullyShipped() bool {
	for _, item := range o.Items {
		if item.ShippedQuantity < item.Quantity {
			return false
		}
	}
	return true
}

func (o SaleOrder) HasShipments() bool {
	for _, item := range o.Items {
		if item.ShippedQuantity > 0 {
			return true
		}
	}
	return false
}

// BatchAllocation is one FIFO step: Quantity units taken from a batch. A
// backordered remainder carries an empty BatchID and BackorderBatchNo.
type BatchAllocation struct {
	BatchID  string `json:"batch_id"`
	BatchNo  string `json:"batch_no"`
	Quantity int    `json:"quantity"`
}

const BackorderBatchNo = "BACKORDER"

type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchExhausted BatchStatus = "exhausted"
	BatchExpired   BatchStatus = "expired"
)

type InventoryBatch struct {
	ID                string          `json:"id"`
	BatchNo           string          `json:"batch_no"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	SupplierID        string          `json:"supplier_id,omitempty"`
	SupplierName      string          `json:"supplier_name,omitempty"`
	Provenance        Provenance      `json:"provenance"`
	ProductionDate    *time.Time      `json:"production_date,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Status            BatchStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (b InventoryBatch) Available() bool {
	return b.Status == BatchActive && b.RemainingQuantity > 0
}

// Value is the remaining quantity priced at the batch's receipt cost.
func (b InventoryBatch) Value() decimal.Decimal {
	return b.PurchasePrice.Mul(decimal.NewFromInt(int64(b.RemainingQuantity)))
}

type RecordType string

const (
	RecordIn     RecordType = "in"
	RecordOut    RecordType = "out"
	RecordAdjust RecordType = "adjust"
)

// InventoryRecord is an append-only audit line. AfterStock-BeforeStock always
// equals Quantity.
type InventoryRecord struct {
	ID           string     `json:"id"`
	ProductID    string     `json:"product_id"`
	ProductName  string     `json:"product_name"`
	Type         RecordType `json:"type"`
	Quantity     int        `json:"quantity"`
	BeforeStock  int        `json:"before_stock"`
	AfterStock   int        `json:"after_stock"`
	Reason       string     `json:"reason"`
	BatchNo      string     `json:"batch_no,omitempty"`
	Provenance   Provenance `json:"provenance"`
	OperatorID   string     `json:"operator_id"`
	OperatorName string     `json:"operator_name"`
	CreatedAt    time.Time  `json:"created_at"`
}

type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// BatchMovement records one change to a batch; RemainingQuantity is the
// batch's remaining quantity after the movement.
type BatchMovement struct {
	ID                string       `json:"id"`
	BatchID           string       `json:"batch_id"`
	BatchNo           string       `json:"batch_no"`
	ProductID         string       `json:"product_id"`
	Type              MovementType `json:"type"`
	Quantity          int          `json:"quantity"`
	RemainingQuantity int          `json:"remaining_quantity"`
	Provenance        Provenance   `json:"provenance"`
	CreatedAt         time.Time    `json:"created_at"`
}

type Operator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DashboardStats struct {
	TotalProducts    int             `json:"total_products"`
	LowStockProducts int             `json:"low_stock_products"`
	TotalSuppliers   int             `json:"total_suppliers"`
	TotalCustomers   int             `json:"total_customers"`
	PendingPurchases int             `json:"pending_purchases"`
	PendingSales     int             `json:"pending_sales"`
	InventoryValue   decimal.Decimal `json:"inventory_value"`
}

type ProductValuation struct {
	ProductID   string          `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Stock       int             `json:"stock"`
	Value       decimal.Decimal `json:"value"`
}

type StockAudit struct {
	ProductID      string `json:"product_id"`
	ProductCode    string `json:"product_code"`
	Stock          int    `json:"stock"`
	BatchRemaining int    `json:"batch_remaining"`
	Consistent     bool   `json:"consistent"`
}
