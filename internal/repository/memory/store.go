package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"stockledger/internal/domain"
	"stockledger/internal/repository"
)

var errReadOnly = errors.New("write in read-only transaction")

type state struct {
	products  table[domain.Product]
	suppliers table[domain.Supplier]
	customers table[domain.Customer]
	purchases table[domain.PurchaseOrder]
	sales     table[domain.SaleOrder]
	batches   table[domain.InventoryBatch]
	records   []domain.InventoryRecord
	movements []domain.BatchMovement
	commands  map[string]repository.StoredCommand
}

func newState() *state {
	return &state{
		products:  newTable[domain.Product](),
		suppliers: newTable[domain.Supplier](),
		customers: newTable[domain.Customer](),
		purchases: newTable[domain.PurchaseOrder](),
		sales:     newTable[domain.SaleOrder](),
		batches:   newTable[domain.InventoryBatch](),
		commands:  map[string]repository.StoredCommand{},
	}
}

// clone returns a working copy for one Update. Ledger slices are clipped so
// appends in the copy never write into the committed backing arrays.
func (s *state) clone() *state {
	commands := make(map[string]repository.StoredCommand, len(s.commands))
	for key, cmd := range s.commands {
		commands[key] = cmd
	}
	return &state{
		products:  s.products.clone(nil),
		suppliers: s.suppliers.clone(nil),
		customers: s.customers.clone(nil),
		purchases: s.purchases.clone(clonePurchase),
		sales:     s.sales.clone(cloneSale),
		batches:   s.batches.clone(nil),
		records:   slices.Clip(s.records),
		movements: slices.Clip(s.movements),
		commands:  commands,
	}
}

// Store keeps the whole ledger in memory. Update works on a copy of the state
// under the write lock and swaps it in on success, so a failed command leaves
// no trace and readers only ever see committed state.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: s.state, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Close() {}

func clonePurchase(order domain.PurchaseOrder) domain.PurchaseOrder {
	order.Items = slices.Clone(order.Items)
	return order
}

func cloneSale(order domain.SaleOrder) domain.SaleOrder {
	items := make([]domain.SaleItem, len(order.Items))
	for i, item := range order.Items {
		item.Batches = slices.Clone(item.Batches)
		items[i] = item
	}
	order.Items = items
	return order
}
