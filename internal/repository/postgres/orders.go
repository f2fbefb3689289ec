package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/jackc/pgx/v5"
)

const purchaseColumns = `
	id, order_no, supplier_id, supplier_name, order_date, expected_date,
	status, total_amount, received_amount, created_at, updated_at
`

const saleColumns = `
	id, order_no, customer_id, customer_name, order_date, delivery_date,
	status, total_amount, shipped_amount, created_at, updated_at
`

const orderWhere = `
	WHERE ($1::text = '' OR status = $1)
		AND ($2::text = '' OR %s = $2)
		AND (NOT $3::boolean OR status IN ('pending', 'confirmed'))
	ORDER BY seq ASC
	LIMIT $4 OFFSET $5
`

func (r *txRepo) ListPurchaseOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.PurchaseOrder, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders`+fmt.Sprintf(orderWhere, "supplier_id"),
		string(filter.Status), filter.PartyID, filter.PendingOnly,
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PurchaseOrder, error) {
		return scanPurchaseOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan purchase orders: %w", err)
	}
	if len(orders) == 0 {
		return []domain.PurchaseOrder{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.purchaseItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *txRepo) getPurchaseBy(ctx context.Context, column, value string) (domain.PurchaseOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE `+column+` = $1`+r.forUpdate(), value)
	order, err := scanPurchaseOrder(row)
	if err != nil {
		return domain.PurchaseOrder{}, notFound(err, "get purchase order")
	}
	items, err := r.purchaseItems(ctx, []string{order.ID})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *txRepo) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	return r.getPurchaseBy(ctx, "id", id)
}

func (r *txRepo) FindPurchaseOrderByNo(ctx context.Context, orderNo string) (domain.PurchaseOrder, error) {
	return r.getPurchaseBy(ctx, "order_no", orderNo)
}

func (r *txRepo) purchaseItems(ctx context.Context, orderIDs []string) (map[string][]domain.PurchaseItem, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT order_id, id, product_id, product_name, quantity, price, received_quantity, amount
		FROM purchase_order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.PurchaseItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			item    domain.PurchaseItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price, &item.ReceivedQuantity, &item.Amount); err != nil {
			return nil, fmt.Errorf("scan purchase item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase items: %w", err)
	}
	return items, nil
}

func (r *txRepo) InsertPurchaseOrder(ctx context.Context, o domain.PurchaseOrder) error {
	if _, err := r.tx.Exec(ctx, `
		INSERT INTO purchase_orders (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.OrderNo, o.SupplierID, o.SupplierName, o.OrderDate, o.ExpectedDate,
		string(o.Status), o.TotalAmount, o.ReceivedAmount, o.CreatedAt, o.UpdatedAt); err != nil {
		return writeErr(err, "insert purchase order")
	}
	return r.writePurchaseItems(ctx, o)
}

func (r *txRepo) UpdatePurchaseOrder(ctx context.Context, o domain.PurchaseOrder) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET
			supplier_id = $2,
			supplier_name = $3,
			order_date = $4,
			expected_date = $5,
			status = $6,
			total_amount = $7,
			received_amount = $8,
			updated_at = $9
		WHERE id = $1
	`, o.ID, o.SupplierID, o.SupplierName, o.OrderDate, o.ExpectedDate,
		string(o.Status), o.TotalAmount, o.ReceivedAmount, o.UpdatedAt)
	if err != nil {
		return writeErr(err, "update purchase order")
	}
	if err := affected(tag); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id = $1`, o.ID); err != nil {
		return writeErr(err, "replace purchase items")
	}
	return r.writePurchaseItems(ctx, o)
}

func (r *txRepo) writePurchaseItems(ctx context.Context, o domain.PurchaseOrder) error {
	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`
			INSERT INTO purchase_order_items (
				id, order_id, position, product_id, product_name, quantity, price, received_quantity, amount
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, item.ID, o.ID, i, item.ProductID, item.ProductName, item.Quantity, item.Price, item.ReceivedQuantity, item.Amount)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return writeErr(err, "insert purchase items")
	}
	return nil
}

func (r *txRepo) DeletePurchaseOrder(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete purchase order")
	}
	return affected(tag)
}

func (r *txRepo) ListSaleOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.SaleOrder, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+saleColumns+` FROM sale_orders`+fmt.Sprintf(orderWhere, "customer_id"),
		string(filter.Status), filter.PartyID, filter.PendingOnly,
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list sale orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SaleOrder, error) {
		return scanSaleOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan sale orders: %w", err)
	}
	if len(orders) == 0 {
		return []domain.SaleOrder{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.saleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *txRepo) getSaleBy(ctx context.Context, column, value string) (domain.SaleOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sale_orders WHERE `+column+` = $1`+r.forUpdate(), value)
	order, err := scanSaleOrder(row)
	if err != nil {
		return domain.SaleOrder{}, notFound(err, "get sale order")
	}
	items, err := r.saleItems(ctx, []string{order.ID})
	if err != nil {
		return domain.SaleOrder{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *txRepo) GetSaleOrder(ctx context.Context, id string) (domain.SaleOrder, error) {
	return r.getSaleBy(ctx, "id", id)
}

func (r *txRepo) FindSaleOrderByNo(ctx context.Context, orderNo string) (domain.SaleOrder, error) {
	return r.getSaleBy(ctx, "order_no", orderNo)
}

func (r *txRepo) saleItems(ctx context.Context, orderIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT order_id, id, product_id, product_name, quantity, price, shipped_quantity, batches, amount
		FROM sale_order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.SaleItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			batches []byte
			item    domain.SaleItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price, &item.ShippedQuantity, &batches, &item.Amount); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		if err := json.Unmarshal(batches, &item.Batches); err != nil {
			return nil, fmt.Errorf("decode sale item batches: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}
	return items, nil
}

func (r *txRepo) InsertSaleOrder(ctx context.Context, o domain.SaleOrder) error {
	if _, err := r.tx.Exec(ctx, `
		INSERT INTO sale_orders (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.OrderNo, o.CustomerID, o.CustomerName, o.OrderDate, o.DeliveryDate,
		string(o.Status), o.TotalAmount, o.ShippedAmount, o.CreatedAt, o.UpdatedAt); err != nil {
		return writeErr(err, "insert sale order")
	}
	return r.writeSaleItems(ctx, o)
}

func (r *txRepo) UpdateSaleOrder(ctx context.Context, o domain.SaleOrder) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE sale_orders
		SET
			customer_id = $2,
			customer_name = $3,
			order_date = $4,
			delivery_date = $5,
			status = $6,
			total_amount = $7,
			shipped_amount = $8,
			updated_at = $9
		WHERE id = $1
	`, o.ID, o.CustomerID, o.CustomerName, o.OrderDate, o.DeliveryDate,
		string(o.Status), o.TotalAmount, o.ShippedAmount, o.UpdatedAt)
	if err != nil {
		return writeErr(err, "update sale order")
	}
	if err := affected(tag); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_order_items WHERE order_id = $1`, o.ID); err != nil {
		return writeErr(err, "replace sale items")
	}
	return r.writeSaleItems(ctx, o)
}

func (r *txRepo) writeSaleItems(ctx context.Context, o domain.SaleOrder) error {
	batch := &pgx.Batch{}
	for i, item := range o.Items {
		allocations := item.Batches
		if allocations == nil {
			allocations = []domain.BatchAllocation{}
		}
		encoded, err := json.Marshal(allocations)
		if err != nil {
			return fmt.Errorf("encode sale item batches: %w", err)
		}
		batch.Queue(`
			INSERT INTO sale_order_items (
				id, order_id, position, product_id, product_name, quantity, price, shipped_quantity, batches, amount
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		`, item.ID, o.ID, i, item.ProductID, item.ProductName, item.Quantity, item.Price, item.ShippedQuantity, string(encoded), item.Amount)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return writeErr(err, "insert sale items")
	}
	return nil
}

func (r *txRepo) DeleteSaleOrder(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM sale_orders WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete sale order")
	}
	return affected(tag)
}

func (r *txRepo) PartyReferenced(ctx context.Context, partyID string) (bool, error) {
	var referenced bool
	if err := r.tx.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM purchase_orders WHERE supplier_id = $1)
			OR EXISTS(SELECT 1 FROM sale_orders WHERE customer_id = $1)
	`, partyID).Scan(&referenced); err != nil {
		return false, fmt.Errorf("check party references: %w", err)
	}
	return referenced, nil
}

func scanPurchaseOrder(row pgx.Row) (domain.PurchaseOrder, error) {
	var (
		o      domain.PurchaseOrder
		status string
	)
	if err := row.Scan(&o.ID, &o.OrderNo, &o.SupplierID, &o.SupplierName, &o.OrderDate, &o.ExpectedDate,
		&status, &o.TotalAmount, &o.ReceivedAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.PurchaseOrder{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanSaleOrder(row pgx.Row) (domain.SaleOrder, error) {
	var (
		o      domain.SaleOrder
		status string
	)
	if err := row.Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.CustomerName, &o.OrderDate, &o.DeliveryDate,
		&status, &o.TotalAmount, &o.ShippedAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.SaleOrder{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}
