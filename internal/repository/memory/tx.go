package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"
	"stockledger/internal/repository"
)

type tx struct {
	state    *state
	readOnly bool
}

var _ repository.Tx = (*tx)(nil)

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func contains(value, search string) bool {
	return strings.Contains(strings.ToLower(value), search)
}

func normalizedSearch(search string) string {
	return strings.ToLower(strings.TrimSpace(search))
}

// Catalog

func (t *tx) ListProducts(_ context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	search := normalizedSearch(filter.Search)
	out := []domain.Product{}
	t.state.products.each(func(p domain.Product) bool {
		if search != "" {
			barcode := ""
			if p.Barcode != nil {
				barcode = *p.Barcode
			}
			if !contains(p.Name, search) && !contains(p.Code, search) && !contains(barcode, search) {
				return true
			}
		}
		if filter.Category != "" && p.Category != filter.Category {
			return true
		}
		if filter.Status != "" && p.Status != filter.Status {
			return true
		}
		if filter.LowStock && !p.LowStock() {
			return true
		}
		out = append(out, p)
		return true
	})
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := t.state.products.get(id)
	if !ok {
		return domain.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *tx) FindProductByCode(_ context.Context, code string) (domain.Product, error) {
	p, ok := t.state.products.find(func(p domain.Product) bool { return p.Code == code })
	if !ok {
		return domain.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *tx) FindProductByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	p, ok := t.state.products.find(func(p domain.Product) bool {
		return p.Barcode != nil && *p.Barcode == barcode
	})
	if !ok {
		return domain.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *tx) productClash(p domain.Product) error {
	_, clash := t.state.products.find(func(existing domain.Product) bool {
		if existing.ID == p.ID {
			return false
		}
		if existing.Code == p.Code {
			return true
		}
		return p.Barcode != nil && existing.Barcode != nil && *existing.Barcode == *p.Barcode
	})
	if clash {
		return fmt.Errorf("product code %q or barcode: %w", p.Code, domain.ErrConflict)
	}
	return nil
}

func (t *tx) InsertProduct(_ context.Context, p domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.state.products.has(p.ID) {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrConflict)
	}
	if err := t.productClash(p); err != nil {
		return err
	}
	t.state.products.put(p.ID, p)
	return nil
}

func (t *tx) UpdateProduct(_ context.Context, p domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.products.has(p.ID) {
		return repository.ErrNotFound
	}
	if err := t.productClash(p); err != nil {
		return err
	}
	t.state.products.put(p.ID, p)
	return nil
}

func (t *tx) DeleteProduct(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.products.remove(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) ProductReferenced(_ context.Context, id string) (bool, error) {
	if _, ok := t.state.batches.find(func(b domain.InventoryBatch) bool { return b.ProductID == id }); ok {
		return true, nil
	}
	if slices.ContainsFunc(t.state.records, func(r domain.InventoryRecord) bool { return r.ProductID == id }) {
		return true, nil
	}
	if _, ok := t.state.purchases.find(func(o domain.PurchaseOrder) bool {
		return slices.ContainsFunc(o.Items, func(i domain.PurchaseItem) bool { return i.ProductID == id })
	}); ok {
		return true, nil
	}
	_, ok := t.state.sales.find(func(o domain.SaleOrder) bool {
		return slices.ContainsFunc(o.Items, func(i domain.SaleItem) bool { return i.ProductID == id })
	})
	return ok, nil
}

// Parties

func partyMatches(search, code, name, contact string, status, want domain.Status) bool {
	if want != "" && status != want {
		return false
	}
	if search == "" {
		return true
	}
	return contains(name, search) || contains(code, search) || contains(contact, search)
}

func (t *tx) ListSuppliers(_ context.Context, filter repository.PartyFilter) ([]domain.Supplier, error) {
	search := normalizedSearch(filter.Search)
	out := []domain.Supplier{}
	t.state.suppliers.each(func(s domain.Supplier) bool {
		if partyMatches(search, s.Code, s.Name, s.Contact, s.Status, filter.Status) {
			out = append(out, s)
		}
		return true
	})
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetSupplier(_ context.Context, id string) (domain.Supplier, error) {
	s, ok := t.state.suppliers.get(id)
	if !ok {
		return domain.Supplier{}, repository.ErrNotFound
	}
	return s, nil
}

func (t *tx) FindSupplierByCode(_ context.Context, code string) (domain.Supplier, error) {
	s, ok := t.state.suppliers.find(func(s domain.Supplier) bool { return s.Code == code })
	if !ok {
		return domain.Supplier{}, repository.ErrNotFound
	}
	return s, nil
}

func (t *tx) putSupplier(s domain.Supplier, insert bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	if insert == t.state.suppliers.has(s.ID) {
		if insert {
			return fmt.Errorf("supplier %s: %w", s.ID, domain.ErrConflict)
		}
		return repository.ErrNotFound
	}
	if _, clash := t.state.suppliers.find(func(e domain.Supplier) bool { return e.ID != s.ID && e.Code == s.Code }); clash {
		return fmt.Errorf("supplier code %q: %w", s.Code, domain.ErrConflict)
	}
	t.state.suppliers.put(s.ID, s)
	return nil
}

func (t *tx) InsertSupplier(_ context.Context, s domain.Supplier) error { return t.putSupplier(s, true) }

func (t *tx) UpdateSupplier(_ context.Context, s domain.Supplier) error { return t.putSupplier(s, false) }

func (t *tx) DeleteSupplier(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.suppliers.remove(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) ListCustomers(_ context.Context, filter repository.PartyFilter) ([]domain.Customer, error) {
	search := normalizedSearch(filter.Search)
	out := []domain.Customer{}
	t.state.customers.each(func(c domain.Customer) bool {
		if partyMatches(search, c.Code, c.Name, c.Contact, c.Status, filter.Status) {
			out = append(out, c)
		}
		return true
	})
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	c, ok := t.state.customers.get(id)
	if !ok {
		return domain.Customer{}, repository.ErrNotFound
	}
	return c, nil
}

func (t *tx) FindCustomerByCode(_ context.Context, code string) (domain.Customer, error) {
	c, ok := t.state.customers.find(func(c domain.Customer) bool { return c.Code == code })
	if !ok {
		return domain.Customer{}, repository.ErrNotFound
	}
	return c, nil
}

func (t *tx) putCustomer(c domain.Customer, insert bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	if insert == t.state.customers.has(c.ID) {
		if insert {
			return fmt.Errorf("customer %s: %w", c.ID, domain.ErrConflict)
		}
		return repository.ErrNotFound
	}
	if _, clash := t.state.customers.find(func(e domain.Customer) bool { return e.ID != c.ID && e.Code == c.Code }); clash {
		return fmt.Errorf("customer code %q: %w", c.Code, domain.ErrConflict)
	}
	t.state.customers.put(c.ID, c)
	return nil
}

func (t *tx) InsertCustomer(_ context.Context, c domain.Customer) error { return t.putCustomer(c, true) }

func (t *tx) UpdateCustomer(_ context.Context, c domain.Customer) error { return t.putCustomer(c, false) }

func (t *tx) DeleteCustomer(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.customers.remove(id) {
		return repository.ErrNotFound
	}
	return nil
}

// Orders

func orderMatches(filter repository.OrderFilter, status domain.OrderStatus, partyID string) bool {
	if filter.Status != "" && status != filter.Status {
		return false
	}
	if filter.PendingOnly && !status.Pending() {
		return false
	}
	return filter.PartyID == "" || partyID == filter.PartyID
}

func (t *tx) ListPurchaseOrders(_ context.Context, filter repository.OrderFilter) ([]domain.PurchaseOrder, error) {
	out := []domain.PurchaseOrder{}
	t.state.purchases.each(func(o domain.PurchaseOrder) bool {
		if orderMatches(filter, o.Status, o.SupplierID) {
			out = append(out, clonePurchase(o))
		}
		return true
	})
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetPurchaseOrder(_ context.Context, id string) (domain.PurchaseOrder, error) {
	o, ok := t.state.purchases.get(id)
	if !ok {
		return domain.PurchaseOrder{}, repository.ErrNotFound
	}
	return clonePurchase(o), nil
}

func (t *tx) FindPurchaseOrderByNo(_ context.Context, orderNo string) (domain.PurchaseOrder, error) {
	o, ok := t.state.purchases.find(func(o domain.PurchaseOrder) bool { return o.OrderNo == orderNo })
	if !ok {
		return domain.PurchaseOrder{}, repository.ErrNotFound
	}
	return clonePurchase(o), nil
}

func (t *tx) putPurchase(o domain.PurchaseOrder, insert bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	if insert == t.state.purchases.has(o.ID) {
		if insert {
			return fmt.Errorf("purchase order %s: %w", o.ID, domain.ErrConflict)
		}
		return repository.ErrNotFound
	}
	if _, clash := t.state.purchases.find(func(e domain.PurchaseOrder) bool { return e.ID != o.ID && e.OrderNo == o.OrderNo }); clash {
		return fmt.Errorf("purchase order no %q: %w", o.OrderNo, domain.ErrConflict)
	}
	t.state.purchases.put(o.ID, clonePurchase(o))
	return nil
}

func (t *tx) InsertPurchaseOrder(_ context.Context, o domain.PurchaseOrder) error {
	return t.putPurchase(o, true)
}

func (t *tx) UpdatePurchaseOrder(_ context.Context, o domain.PurchaseOrder) error {
	return t.putPurchase(o, false)
}

func (t *tx) DeletePurchaseOrder(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.purchases.remove(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) ListSaleOrders(_ context.Context, filter repository.OrderFilter) ([]domain.SaleOrder, error) {
	out := []domain.SaleOrder{}
	t.state.sales.each(func(o domain.SaleOrder) bool {
		if orderMatches(filter, o.Status, o.CustomerID) {
			out = append(out, cloneSale(o))
		}
		return true
	})
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetSaleOrder(_ context.Context, id string) (domain.SaleOrder, error) {
	o, ok := t.state.sales.get(id)
	if !ok {
		return domain.SaleOrder{}, repository.ErrNotFound
	}
	return cloneSale(o), nil
}

func (t *tx) FindSaleOrderByNo(_ context.Context, orderNo string) (domain.SaleOrder, error) {
	o, ok := t.state.sales.find(func(o domain.SaleOrder) bool { return o.OrderNo == orderNo })
	if !ok {
		return domain.SaleOrder{}, repository.ErrNotFound
	}
	return cloneSale(o), nil
}

func (t *tx) putSale(o domain.SaleOrder, insert bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	if insert == t.state.sales.has(o.ID) {
		if insert {
			return fmt.Errorf("sale order %s: %w", o.ID, domain.ErrConflict)
		}
		return repository.ErrNotFound
	}
	if _, clash := t.state.sales.find(func(e domain.SaleOrder) bool { return e.ID != o.ID && e.OrderNo == o.OrderNo }); clash {
		return fmt.Errorf("sale order no %q: %w", o.OrderNo, domain.ErrConflict)
	}
	t.state.sales.put(o.ID, cloneSale(o))
	return nil
}

func (t *tx) InsertSaleOrder(_ context.Context, o domain.SaleOrder) error { return t.putSale(o, true) }

func (t *tx) UpdateSaleOrder(_ context.Context, o domain.SaleOrder) error { return t.putSale(o, false) }

func (t *tx) DeleteSaleOrder(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if !t.state.sales.remove(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) PartyReferenced(_ context.Context, partyID string) (bool, error) {
	if _, ok := t.state.purchases.find(func(o domain.PurchaseOrder) bool { return o.SupplierID == partyID }); ok {
		return true, nil
	}
	_, ok := t.state.sales.find(func(o domain.SaleOrder) bool { return o.CustomerID == partyID })
	return ok, nil
}

// Batches

func (t *tx) ListBatches(_ context.Context, filter repository.BatchFilter) ([]domain.InventoryBatch, error) {
	out := []domain.InventoryBatch{}
	t.state.batches.each(func(b domain.InventoryBatch) bool {
		if filter.ProductID != "" && b.ProductID != filter.ProductID {
			return true
		}
		if filter.Status != "" && b.Status != filter.Status {
			return true
		}
		if filter.AvailableOnly && !b.Available() {
			return true
		}
		out = append(out, b)
		return true
	})
	ledger.SortFIFO(out)
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) GetBatch(_ context.Context, id string) (domain.InventoryBatch, error) {
	b, ok := t.state.batches.get(id)
	if !ok {
		return domain.InventoryBatch{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *tx) FindBatchByNo(_ context.Context, batchNo string) (domain.InventoryBatch, error) {
	b, ok := t.state.batches.find(func(b domain.InventoryBatch) bool { return b.BatchNo == batchNo })
	if !ok {
		return domain.InventoryBatch{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *tx) InsertBatch(_ context.Context, b domain.InventoryBatch) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.state.batches.has(b.ID) {
		return fmt.Errorf("batch %s: %w", b.ID, domain.ErrConflict)
	}
	if _, clash := t.state.batches.find(func(e domain.InventoryBatch) bool { return e.BatchNo == b.BatchNo }); clash {
		return fmt.Errorf("batch no %q: %w", b.BatchNo, domain.ErrConflict)
	}
	t.state.batches.put(b.ID, b)
	return nil
}

// UpdateBatch only moves remaining quantity and status; the rest of a batch
// is immutable once created.
func (t *tx) UpdateBatch(_ context.Context, b domain.InventoryBatch) error {
	if err := t.writable(); err != nil {
		return err
	}
	current, ok := t.state.batches.get(b.ID)
	if !ok {
		return repository.ErrNotFound
	}
	current.RemainingQuantity = b.RemainingQuantity
	current.Status = b.Status
	t.state.batches.put(b.ID, current)
	return nil
}

// Movements

func (t *tx) AppendRecord(_ context.Context, r domain.InventoryRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.state.records = append(t.state.records, r)
	return nil
}

func (t *tx) ListRecords(_ context.Context, filter repository.RecordFilter) ([]domain.InventoryRecord, error) {
	out := []domain.InventoryRecord{}
	for i := len(t.state.records) - 1; i >= 0; i-- {
		r := t.state.records[i]
		if filter.ProductID != "" && r.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.OrderID != "" && r.Provenance.OrderID != filter.OrderID {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

func (t *tx) AppendMovement(_ context.Context, m domain.BatchMovement) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.state.movements = append(t.state.movements, m)
	return nil
}

func (t *tx) ListMovements(_ context.Context, filter repository.MovementFilter) ([]domain.BatchMovement, error) {
	out := []domain.BatchMovement{}
	for i := len(t.state.movements) - 1; i >= 0; i-- {
		m := t.state.movements[i]
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.BatchID != "" && m.BatchID != filter.BatchID {
			continue
		}
		if filter.OrderID != "" && m.Provenance.OrderID != filter.OrderID {
			continue
		}
		out = append(out, m)
	}
	return repository.Page(out, filter.Limit, filter.Offset), nil
}

// Commands

func (t *tx) GetCommand(_ context.Context, key string) (repository.StoredCommand, error) {
	cmd, ok := t.state.commands[key]
	if !ok {
		return repository.StoredCommand{}, repository.ErrNotFound
	}
	return cmd, nil
}

func (t *tx) PutCommand(_ context.Context, cmd repository.StoredCommand) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.commands[cmd.Key]; ok {
		return fmt.Errorf("command %q: %w", cmd.Key, domain.ErrConflict)
	}
	t.state.commands[cmd.Key] = cmd
	return nil
}
