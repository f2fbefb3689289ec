package repository

import (
	"context"
	"time"

	"stockledger/internal/domain"
)

var ErrNotFound = domain.ErrNotFound

type ProductFilter struct {
	Search   string
	Category string
	Status   domain.Status
	LowStock bool
	Limit    int
	Offset   int
}

type PartyFilter struct {
	Search string
	Status domain.Status
	Limit  int
	Offset int
}

type OrderFilter struct {
	Status      domain.OrderStatus
	PartyID     string
	PendingOnly bool
	Limit       int
	Offset      int
}

type BatchFilter struct {
	ProductID     string
	Status        domain.BatchStatus
	AvailableOnly bool
	Limit         int
	Offset        int
}

type RecordFilter struct {
	ProductID string
	Type      domain.RecordType
	OrderID   string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type MovementFilter struct {
	ProductID string
	BatchID   string
	OrderID   string
	Limit     int
	Offset    int
}

// StoredCommand is the persisted outcome of a keyed stock command.
type StoredCommand struct {
	Key       string
	Kind      string
	TargetID  string
	Result    []byte
	CreatedAt time.Time
}

type Catalog interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	FindProductByCode(ctx context.Context, code string) (domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ProductReferenced(ctx context.Context, id string) (bool, error)
}

type Parties interface {
	ListSuppliers(ctx context.Context, filter PartyFilter) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (domain.Supplier, error)
	FindSupplierByCode(ctx context.Context, code string) (domain.Supplier, error)
	InsertSupplier(ctx context.Context, supplier domain.Supplier) error
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error

	ListCustomers(ctx context.Context, filter PartyFilter) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	FindCustomerByCode(ctx context.Context, code string) (domain.Customer, error)
	InsertCustomer(ctx context.Context, customer domain.Customer) error
	UpdateCustomer(ctx context.Context, customer domain.Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}

// Orders stores order headers together with their items; Update replaces the
// whole item list.
type Orders interface {
	ListPurchaseOrders(ctx context.Context, filter OrderFilter) ([]domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error)
	FindPurchaseOrderByNo(ctx context.Context, orderNo string) (domain.PurchaseOrder, error)
	InsertPurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error
	UpdatePurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error
	DeletePurchaseOrder(ctx context.Context, id string) error

	ListSaleOrders(ctx context.Context, filter OrderFilter) ([]domain.SaleOrder, error)
	GetSaleOrder(ctx context.Context, id string) (domain.SaleOrder, error)
	FindSaleOrderByNo(ctx context.Context, orderNo string) (domain.SaleOrder, error)
	InsertSaleOrder(ctx context.Context, order domain.SaleOrder) error
	UpdateSaleOrder(ctx context.Context, order domain.SaleOrder) error
	DeleteSaleOrder(ctx context.Context, id string) error

	PartyReferenced(ctx context.Context, partyID string) (bool, error)
}

// Batches lists in FIFO order: creation time, then insertion order.
type Batches interface {
	ListBatches(ctx context.Context, filter BatchFilter) ([]domain.InventoryBatch, error)
	GetBatch(ctx context.Context, id string) (domain.InventoryBatch, error)
	FindBatchByNo(ctx context.Context, batchNo string) (domain.InventoryBatch, error)
	InsertBatch(ctx context.Context, batch domain.InventoryBatch) error
	UpdateBatch(ctx context.Context, batch domain.InventoryBatch) error
}

// Movements is append-only: there is no update or delete.
type Movements interface {
	AppendRecord(ctx context.Context, record domain.InventoryRecord) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]domain.InventoryRecord, error)
	AppendMovement(ctx context.Context, movement domain.BatchMovement) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]domain.BatchMovement, error)
}

type Commands interface {
	GetCommand(ctx context.Context, key string) (StoredCommand, error)
	PutCommand(ctx context.Context, cmd StoredCommand) error
}

type Tx interface {
	Catalog
	Parties
	Orders
	Batches
	Movements
	Commands
}

// Store runs fn inside a transaction. Update commits when fn returns nil and
// rolls back every write otherwise. View never observes a partially applied
// Update.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Page applies offset and limit to an already filtered slice.
func Page[T any](items []T, limit, offset int) []T {
	limit = NormalizeLimit(limit)
	offset = NormalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
