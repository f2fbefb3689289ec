package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ImportSummary struct {
	Rows    int `json:"rows"`
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportProducts upserts a catalog spreadsheet by product code. Stock is never
// touched: new products start at zero and existing ones keep their stock. The
// whole file commits or nothing does.
func (s *Service) ImportProducts(ctx context.Context, fileName string, reader io.Reader) (ImportSummary, error) {
	rows, err := excel.ParseProductRows(fileName, reader)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("parse %s: %w", fileName, errors.Join(domain.ErrValidation, err))
	}

	summary := ImportSummary{Rows: len(rows)}
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		now := s.clock()
		for _, row := range rows {
			existing, err := tx.FindProductByCode(ctx, row.Code)
			switch {
			case err == nil:
				applyImportRow(&existing, row)
				existing.UpdatedAt = now
				if err := tx.UpdateProduct(ctx, existing); err != nil {
					return fmt.Errorf("row %d: update %s: %w", row.Row, row.Code, err)
				}
				summary.Updated++
			case errors.Is(err, repository.ErrNotFound):
				product := domain.Product{
					ID:            s.newID(),
					Code:          row.Code,
					PurchasePrice: decimal.Zero,
					SalePrice:     decimal.Zero,
					Status:        domain.StatusActive,
					CreatedAt:     now,
				}
				applyImportRow(&product, row)
				product.UpdatedAt = now
				if err := tx.InsertProduct(ctx, product); err != nil {
					return fmt.Errorf("row %d: insert %s: %w", row.Row, row.Code, err)
				}
				summary.Created++
			default:
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, fmt.Errorf("import products: %w", err)
	}
	s.logger.Info("products imported",
		zap.String("file", fileName),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
	)
	return summary, nil
}

func applyImportRow(p *domain.Product, row domain.ProductImportRow) {
	p.Name = row.Name
	if row.Barcode != nil {
		p.Barcode = row.Barcode
	}
	if row.Category != nil {
		p.Category = *row.Category
	}
	if row.Specification != nil {
		p.Specification = *row.Specification
	}
	if row.Unit != nil {
		p.Unit = *row.Unit
	}
	if row.PurchasePrice != nil {
		p.PurchasePrice = *row.PurchasePrice
	}
	if row.SalePrice != nil {
		p.SalePrice = *row.SalePrice
	}
	if row.MinStock != nil {
		p.MinStock = *row.MinStock
	}
}
