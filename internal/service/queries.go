package service

import (
	"context"
	"fmt"
	"io"

	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		batches, err = tx.ListBatches(ctx, filter)
		return err
	})
	return batches, err
}

// AvailableBatches lists the batches a shipment of the product would draw
// from, in the order it would draw them.
func (s *Service) AvailableBatches(ctx context.Context, productID string) ([]domain.InventoryBatch, error) {
	var batches []domain.InventoryBatch
	err := s.store.View(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProduct(ctx, productID); err != nil {
			return err
		}
		all, err := productBatches(ctx, tx, productID, true)
		if err != nil {
			return err
		}
		batches = ledger.AvailableFIFO(all)
		return nil
	})
	return batches, err
}

func (s *Service) ListRecords(ctx context.Context, filter repository.RecordFilter) ([]domain.InventoryRecord, error) {
	var records []domain.InventoryRecord
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		records, err = tx.ListRecords(ctx, filter)
		return err
	})
	return records, err
}

func (s *Service) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]domain.BatchMovement, error) {
	var movements []domain.BatchMovement
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		movements, err = tx.ListMovements(ctx, filter)
		return err
	})
	return movements, err
}

// ExportRecords writes every record matching filter to w as xlsx. Limit and
// offset in the filter are ignored.
func (s *Service) ExportRecords(ctx context.Context, filter repository.RecordFilter, w io.Writer) error {
	var records []domain.InventoryRecord
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		records, err = collect(func(limit, offset int) ([]domain.InventoryRecord, error) {
			f := filter
			f.Limit, f.Offset = limit, offset
			return tx.ListRecords(ctx, f)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	return excel.WriteInventoryRecords(w, records)
}

type snapshot struct {
	products []domain.Product
	batches  map[string][]domain.InventoryBatch
}

// loadSnapshot reads every product and its batches inside one read
// transaction so derived views never mix states.
func loadSnapshot(ctx context.Context, tx repository.Tx) (snapshot, error) {
	products, err := collect(func(limit, offset int) ([]domain.Product, error) {
		return tx.ListProducts(ctx, repository.ProductFilter{Limit: limit, Offset: offset})
	})
	if err != nil {
		return snapshot{}, fmt.Errorf("list products: %w", err)
	}
	batches, err := collect(func(limit, offset int) ([]domain.InventoryBatch, error) {
		return tx.ListBatches(ctx, repository.BatchFilter{Limit: limit, Offset: offset})
	})
	if err != nil {
		return snapshot{}, fmt.Errorf("list batches: %w", err)
	}
	byProduct := make(map[string][]domain.InventoryBatch)
	for _, batch := range batches {
		byProduct[batch.ProductID] = append(byProduct[batch.ProductID], batch)
	}
	return snapshot{products: products, batches: byProduct}, nil
}

// Valuation prices each product's remaining batch quantities at their
// receipt cost.
func (s *Service) Valuation(ctx context.Context) ([]domain.ProductValuation, decimal.Decimal, error) {
	var (
		out   []domain.ProductValuation
		total = decimal.Zero
	)
	err := s.store.View(ctx, func(tx repository.Tx) error {
		snap, err := loadSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		out = make([]domain.ProductValuation, 0, len(snap.products))
		for _, product := range snap.products {
			value := decimal.Zero
			for _, batch := range snap.batches[product.ID] {
				value = value.Add(batch.Value())
			}
			total = total.Add(value)
			out = append(out, domain.ProductValuation{
				ProductID:   product.ID,
				ProductCode: product.Code,
				ProductName: product.Name,
				Stock:       product.Stock,
				Value:       value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("inventory valuation: %w", err)
	}
	return out, total, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := s.store.View(ctx, func(tx repository.Tx) error {
		snap, err := loadSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		stats.TotalProducts = len(snap.products)
		stats.InventoryValue = decimal.Zero
		for _, product := range snap.products {
			if product.LowStock() {
				stats.LowStockProducts++
			}
			for _, batch := range snap.batches[product.ID] {
				stats.InventoryValue = stats.InventoryValue.Add(batch.Value())
			}
		}

		suppliers, err := collect(func(limit, offset int) ([]domain.Supplier, error) {
			return tx.ListSuppliers(ctx, repository.PartyFilter{Limit: limit, Offset: offset})
		})
		if err != nil {
			return err
		}
		customers, err := collect(func(limit, offset int) ([]domain.Customer, error) {
			return tx.ListCustomers(ctx, repository.PartyFilter{Limit: limit, Offset: offset})
		})
		if err != nil {
			return err
		}
		purchases, err := collect(func(limit, offset int) ([]domain.PurchaseOrder, error) {
			return tx.ListPurchaseOrders(ctx, repository.OrderFilter{PendingOnly: true, Limit: limit, Offset: offset})
		})
		if err != nil {
			return err
		}
		sales, err := collect(func(limit, offset int) ([]domain.SaleOrder, error) {
			return tx.ListSaleOrders(ctx, repository.OrderFilter{PendingOnly: true, Limit: limit, Offset: offset})
		})
		if err != nil {
			return err
		}
		stats.TotalSuppliers = len(suppliers)
		stats.TotalCustomers = len(customers)
		stats.PendingPurchases = len(purchases)
		stats.PendingSales = len(sales)
		return nil
	})
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard: %w", err)
	}
	return stats, nil
}

// Audit compares each product's stock with the remaining quantity of all its
// batches. Expired batches count: their units are still on hand.
func (s *Service) Audit(ctx context.Context) ([]domain.StockAudit, error) {
	var out []domain.StockAudit
	err := s.store.View(ctx, func(tx repository.Tx) error {
		snap, err := loadSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		out = make([]domain.StockAudit, 0, len(snap.products))
		for _, product := range snap.products {
			remaining := 0
			for _, batch := range snap.batches[product.ID] {
				remaining += batch.RemainingQuantity
			}
			out = append(out, domain.StockAudit{
				ProductID:      product.ID,
				ProductCode:    product.Code,
				Stock:          product.Stock,
				BatchRemaining: remaining,
				Consistent:     product.Stock == remaining,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stock audit: %w", err)
	}
	return out, nil
}

// ExpireBatches marks active batches past their expiry date as expired and
// returns them. Stock is unchanged; FIFO simply stops drawing from them.
func (s *Service) ExpireBatches(ctx context.Context) ([]domain.InventoryBatch, error) {
	now := s.clock()
	var keys []string
	err := s.store.View(ctx, func(tx repository.Tx) error {
		batches, err := activeBatches(ctx, tx)
		if err != nil {
			return err
		}
		for i := range batches {
			if ledger.Expire(&batches[i], now) {
				keys = append(keys, lock.ProductKey(batches[i].ProductID))
			}
		}
		return nil
	})
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("acquire locks: %w", err)
	}
	defer unlock()

	var expired []domain.InventoryBatch
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		batches, err := activeBatches(ctx, tx)
		if err != nil {
			return err
		}
		for i := range batches {
			batch := batches[i]
			if !ledger.Expire(&batch, now) {
				continue
			}
			if err := tx.UpdateBatch(ctx, batch); err != nil {
				return fmt.Errorf("expire batch %s: %w", batch.BatchNo, err)
			}
			expired = append(expired, batch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.logger.Info("batches expired", zap.Int("count", len(expired)))
	}
	return expired, nil
}

func activeBatches(ctx context.Context, tx repository.Tx) ([]domain.InventoryBatch, error) {
	return collect(func(limit, offset int) ([]domain.InventoryBatch, error) {
		return tx.ListBatches(ctx, repository.BatchFilter{Status: domain.BatchActive, Limit: limit, Offset: offset})
	})
}
