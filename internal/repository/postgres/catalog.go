package postgres

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/jackc/pgx/v5"
)

const productColumns = `
	id,
	code,
	barcode,
	name,
	category,
	specification,
	unit,
	purchase_price,
	sale_price,
	stock,
	min_stock,
	status,
	created_at,
	updated_at
`

func (r *txRepo) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	limit := repository.NormalizeLimit(filter.Limit)
	offset := repository.NormalizeOffset(filter.Offset)

	rows, err := r.tx.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1::text = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%' OR COALESCE(barcode, '') ILIKE '%' || $1 || '%')
			AND ($2::text = '' OR category = $2)
			AND ($3::text = '' OR status = $3)
			AND (NOT $4::boolean OR stock <= min_stock)
		ORDER BY seq ASC
		LIMIT $5 OFFSET $6
	`, strings.TrimSpace(filter.Search), filter.Category, string(filter.Status), filter.LowStock, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, min(limit, 64))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *txRepo) getProductBy(ctx context.Context, column, value string) (domain.Product, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE `+column+` = $1`+r.forUpdate(), value)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, notFound(err, "get product by "+column)
	}
	return p, nil
}

func (r *txRepo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return r.getProductBy(ctx, "id", id)
}

func (r *txRepo) FindProductByCode(ctx context.Context, code string) (domain.Product, error) {
	return r.getProductBy(ctx, "code", code)
}

func (r *txRepo) FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	return r.getProductBy(ctx, "barcode", barcode)
}

func (r *txRepo) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO products (
			id, code, barcode, name, category, specification, unit,
			purchase_price, sale_price, stock, min_stock, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.Code, p.Barcode, p.Name, p.Category, p.Specification, p.Unit,
		p.PurchasePrice, p.SalePrice, p.Stock, p.MinStock, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return writeErr(err, "insert product")
	}
	return nil
}

func (r *txRepo) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE products
		SET
			code = $2,
			barcode = $3,
			name = $4,
			category = $5,
			specification = $6,
			unit = $7,
			purchase_price = $8,
			sale_price = $9,
			stock = $10,
			min_stock = $11,
			status = $12,
			updated_at = $13
		WHERE id = $1
	`, p.ID, p.Code, p.Barcode, p.Name, p.Category, p.Specification, p.Unit,
		p.PurchasePrice, p.SalePrice, p.Stock, p.MinStock, string(p.Status), p.UpdatedAt)
	if err != nil {
		return writeErr(err, "update product")
	}
	return affected(tag)
}

func (r *txRepo) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete product")
	}
	return affected(tag)
}

func (r *txRepo) ProductReferenced(ctx context.Context, id string) (bool, error) {
	var referenced bool
	if err := r.tx.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM inventory_batches WHERE product_id = $1)
			OR EXISTS(SELECT 1 FROM inventory_records WHERE product_id = $1)
			OR EXISTS(SELECT 1 FROM purchase_order_items WHERE product_id = $1)
			OR EXISTS(SELECT 1 FROM sale_order_items WHERE product_id = $1)
	`, id).Scan(&referenced); err != nil {
		return false, fmt.Errorf("check product references: %w", err)
	}
	return referenced, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p      domain.Product
		status string
	)
	if err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Barcode,
		&p.Name,
		&p.Category,
		&p.Specification,
		&p.Unit,
		&p.PurchasePrice,
		&p.SalePrice,
		&p.Stock,
		&p.MinStock,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	p.Status = domain.Status(status)
	return p, nil
}
