package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"stockledger/internal/db"
	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("Failed to open pool: %v", err)
	}
	if err := db.RunMigrations(ctx, pool, zap.NewNop()); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}
	store := New(pool)
	t.Cleanup(store.Close)
	return store
}

func TestStore_ProductBatchRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	suffix := uuid.NewString()[:8]

	product := domain.Product{
		ID:            uuid.NewString(),
		Code:          "IT-" + suffix,
		Name:          "Integration widget",
		PurchasePrice: decimal.RequireFromString("12.50"),
		SalePrice:     decimal.RequireFromString("20"),
		Status:        domain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	batch := domain.InventoryBatch{
		ID:                uuid.NewString(),
		BatchNo:           product.Code + "-B1",
		ProductID:         product.ID,
		ProductName:       product.Name,
		Quantity:          10,
		RemainingQuantity: 10,
		PurchasePrice:     product.PurchasePrice,
		Provenance:        domain.AdjustmentProvenance(),
		Status:            domain.BatchActive,
		CreatedAt:         now,
	}

	err := store.Update(ctx, func(tx repository.Tx) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		product.Stock = 10
		return tx.UpdateProduct(ctx, product)
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err = store.View(ctx, func(tx repository.Tx) error {
		got, err := tx.FindProductByCode(ctx, product.Code)
		if err != nil {
			return err
		}
		if got.Stock != 10 || !got.PurchasePrice.Equal(product.PurchasePrice) {
			t.Errorf("Unexpected product %+v", got)
		}
		batches, err := tx.ListBatches(ctx, repository.BatchFilter{ProductID: product.ID, AvailableOnly: true})
		if err != nil {
			return err
		}
		if len(batches) != 1 || batches[0].Provenance.Kind != domain.ProvenanceAdjustment {
			t.Errorf("Unexpected batches %+v", batches)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	err = store.Update(ctx, func(tx repository.Tx) error {
		dup := product
		dup.ID = uuid.NewString()
		return tx.InsertProduct(ctx, dup)
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected conflict on duplicate code, got %v", err)
	}
}

func TestStore_MissingRowsAreNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.View(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProduct(ctx, uuid.NewString()); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
		if _, err := tx.GetSaleOrder(ctx, uuid.NewString()); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Expected not found, got %v", err)
		}
		return nil
	})
}
