package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
)

func (s *Service) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	var products []domain.Product
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		products, err = tx.ListProducts(ctx, filter)
		return err
	})
	return products, err
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		return err
	})
	return product, err
}

func (s *Service) LowStock(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	return s.ListProducts(ctx, repository.ProductFilter{LowStock: true, Limit: limit, Offset: offset})
}

func validatePrices(purchase, sale decimal.Decimal) error {
	if purchase.IsNegative() || sale.IsNegative() {
		return validationf("prices cannot be negative")
	}
	return nil
}

// CreateProduct always starts at zero stock. An opening balance is booked
// with a positive Adjust so it gets a batch.
func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" {
		return domain.Product{}, validationf("code is required")
	}
	if name == "" {
		return domain.Product{}, validationf("name is required")
	}
	if err := validatePrices(input.PurchasePrice, input.SalePrice); err != nil {
		return domain.Product{}, err
	}
	if input.MinStock < 0 {
		return domain.Product{}, validationf("min_stock cannot be negative")
	}
	status := input.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return domain.Product{}, validationf("invalid status %q", status)
	}

	now := s.clock()
	product := domain.Product{
		ID:            s.newID(),
		Code:          code,
		Barcode:       normalizeNullable(input.Barcode),
		Name:          name,
		Category:      strings.TrimSpace(input.Category),
		Specification: strings.TrimSpace(input.Specification),
		Unit:          strings.TrimSpace(input.Unit),
		PurchasePrice: input.PurchasePrice,
		SalePrice:     input.SalePrice,
		MinStock:      input.MinStock,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		return tx.InsertProduct(ctx, product)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product %s: %w", code, err)
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var product domain.Product
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := applyProductPatch(&product, patch); err != nil {
			return err
		}
		product.UpdatedAt = s.clock()
		return tx.UpdateProduct(ctx, product)
	})
	return product, err
}

func applyProductPatch(p *domain.Product, patch domain.ProductPatch) error {
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			return validationf("code cannot be empty")
		}
		p.Code = code
	}
	if patch.Barcode != nil {
		p.Barcode = normalizeNullable(patch.Barcode)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return validationf("name cannot be empty")
		}
		p.Name = name
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Specification != nil {
		p.Specification = strings.TrimSpace(*patch.Specification)
	}
	if patch.Unit != nil {
		p.Unit = strings.TrimSpace(*patch.Unit)
	}
	if patch.PurchasePrice != nil {
		p.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SalePrice != nil {
		p.SalePrice = *patch.SalePrice
	}
	if err := validatePrices(p.PurchasePrice, p.SalePrice); err != nil {
		return err
	}
	if patch.MinStock != nil {
		if *patch.MinStock < 0 {
			return validationf("min_stock cannot be negative")
		}
		p.MinStock = *patch.MinStock
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return validationf("invalid status %q", *patch.Status)
		}
		p.Status = *patch.Status
	}
	return nil
}

// DeleteProduct hard-deletes only products the ledger never saw. Anything
// with batches, records or order lines must be deactivated instead.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProduct(ctx, id); err != nil {
			return err
		}
		referenced, err := tx.ProductReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("delete product %s: %w", id, domain.ErrProductInUse)
		}
		return tx.DeleteProduct(ctx, id)
	})
}

func (s *Service) ToggleProductStatus(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		product, err = tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		product.Status = product.Status.Toggle()
		product.UpdatedAt = s.clock()
		return tx.UpdateProduct(ctx, product)
	})
	return product, err
}

// ResolveBarcode maps a scanned string to a product. A barcode match wins
// over a product code match.
func (s *Service) ResolveBarcode(ctx context.Context, scanned string) (domain.Product, error) {
	scanned = strings.TrimSpace(scanned)
	if scanned == "" {
		return domain.Product{}, validationf("barcode is required")
	}
	var product domain.Product
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		product, err = tx.FindProductByBarcode(ctx, scanned)
		if errors.Is(err, repository.ErrNotFound) {
			product, err = tx.FindProductByCode(ctx, scanned)
		}
		return err
	})
	return product, err
}

// adjustStock is the only writer of Product.Stock. The caller decides the
// new value; it returns the stock before the change.
func adjustStock(ctx context.Context, tx repository.Tx, product *domain.Product, newStock int, at time.Time) (int, error) {
	if newStock < 0 {
		return product.Stock, fmt.Errorf("product %s stock %d -> %d: %w", product.Code, product.Stock, newStock, domain.ErrNegativeStock)
	}
	before := product.Stock
	product.Stock = newStock
	product.UpdatedAt = at
	if err := tx.UpdateProduct(ctx, *product); err != nil {
		return before, fmt.Errorf("update stock for %s: %w", product.Code, err)
	}
	return before, nil
}
