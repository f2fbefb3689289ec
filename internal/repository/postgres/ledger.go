package postgres

import (
	"context"
	"fmt"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/jackc/pgx/v5"
)

const batchColumns = `
	id, batch_no, product_id, product_name, quantity, remaining_quantity, purchase_price,
	supplier_id, supplier_name, provenance_kind, order_id, order_no,
	production_date, expiry_date, status, created_at
`

func (r *txRepo) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]domain.InventoryBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM inventory_batches
		WHERE ($1::text = '' OR product_id = $1)
			AND ($2::text = '' OR status = $2)
			AND (NOT $3::boolean OR (status = 'active' AND remaining_quantity > 0))
		ORDER BY created_at ASC, seq ASC
		LIMIT $4 OFFSET $5`
	// Row locks only make sense for a single product's FIFO walk.
	if r.lock && filter.ProductID != "" {
		query += " FOR UPDATE"
	}
	rows, err := r.tx.Query(ctx, query, filter.ProductID, string(filter.Status), filter.AvailableOnly,
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InventoryBatch, error) {
		return scanBatch(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan batches: %w", err)
	}
	return batches, nil
}

func (r *txRepo) GetBatch(ctx context.Context, id string) (domain.InventoryBatch, error) {
	b, err := scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1`+r.forUpdate(), id))
	if err != nil {
		return domain.InventoryBatch{}, notFound(err, "get batch")
	}
	return b, nil
}

func (r *txRepo) FindBatchByNo(ctx context.Context, batchNo string) (domain.InventoryBatch, error) {
	b, err := scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE batch_no = $1`, batchNo))
	if err != nil {
		return domain.InventoryBatch{}, notFound(err, "find batch")
	}
	return b, nil
}

func (r *txRepo) InsertBatch(ctx context.Context, b domain.InventoryBatch) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO inventory_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, b.ID, b.BatchNo, b.ProductID, b.ProductName, b.Quantity, b.RemainingQuantity, b.PurchasePrice,
		b.SupplierID, b.SupplierName, string(b.Provenance.Kind), b.Provenance.OrderID, b.Provenance.OrderNo,
		b.ProductionDate, b.ExpiryDate, string(b.Status), b.CreatedAt)
	if err != nil {
		return writeErr(err, "insert batch")
	}
	return nil
}

func (r *txRepo) UpdateBatch(ctx context.Context, b domain.InventoryBatch) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE inventory_batches
		SET remaining_quantity = $2, status = $3
		WHERE id = $1
	`, b.ID, b.RemainingQuantity, string(b.Status))
	if err != nil {
		return writeErr(err, "update batch")
	}
	return affected(tag)
}

func (r *txRepo) AppendRecord(ctx context.Context, rec domain.InventoryRecord) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO inventory_records (
			id, product_id, product_name, record_type, quantity, before_stock, after_stock,
			reason, batch_no, provenance_kind, order_id, order_no, operator_id, operator_name, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, rec.ID, rec.ProductID, rec.ProductName, string(rec.Type), rec.Quantity, rec.BeforeStock, rec.AfterStock,
		rec.Reason, rec.BatchNo, string(rec.Provenance.Kind), rec.Provenance.OrderID, rec.Provenance.OrderNo,
		rec.OperatorID, rec.OperatorName, rec.CreatedAt)
	if err != nil {
		return writeErr(err, "append inventory record")
	}
	return nil
}

func (r *txRepo) ListRecords(ctx context.Context, filter repository.RecordFilter) ([]domain.InventoryRecord, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT
			id, product_id, product_name, record_type, quantity, before_stock, after_stock,
			reason, batch_no, provenance_kind, order_id, order_no, operator_id, operator_name, created_at
		FROM inventory_records
		WHERE ($1::text = '' OR product_id = $1)
			AND ($2::text = '' OR record_type = $2)
			AND ($3::text = '' OR order_id = $3)
			AND ($4::timestamptz IS NULL OR created_at >= $4)
			AND ($5::timestamptz IS NULL OR created_at <= $5)
		ORDER BY seq DESC
		LIMIT $6 OFFSET $7
	`, filter.ProductID, string(filter.Type), filter.OrderID, filter.From, filter.To,
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list inventory records: %w", err)
	}
	defer rows.Close()

	records := []domain.InventoryRecord{}
	for rows.Next() {
		var rec domain.InventoryRecord
		var recordType, kind, orderID, orderNo string
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.ProductName, &recordType, &rec.Quantity,
			&rec.BeforeStock, &rec.AfterStock, &rec.Reason, &rec.BatchNo, &kind, &orderID, &orderNo,
			&rec.OperatorID, &rec.OperatorName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory record: %w", err)
		}
		rec.Type = domain.RecordType(recordType)
		rec.Provenance = scanProvenance(kind, orderID, orderNo)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory records: %w", err)
	}
	return records, nil
}

func (r *txRepo) AppendMovement(ctx context.Context, m domain.BatchMovement) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO batch_movements (
			id, batch_id, batch_no, product_id, movement_type, quantity, remaining_quantity,
			provenance_kind, order_id, order_no, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, m.ID, m.BatchID, m.BatchNo, m.ProductID, string(m.Type), m.Quantity, m.RemainingQuantity,
		string(m.Provenance.Kind), m.Provenance.OrderID, m.Provenance.OrderNo, m.CreatedAt)
	if err != nil {
		return writeErr(err, "append batch movement")
	}
	return nil
}

func (r *txRepo) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]domain.BatchMovement, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT
			id, batch_id, batch_no, product_id, movement_type, quantity, remaining_quantity,
			provenance_kind, order_id, order_no, created_at
		FROM batch_movements
		WHERE ($1::text = '' OR product_id = $1)
			AND ($2::text = '' OR batch_id = $2)
			AND ($3::text = '' OR order_id = $3)
		ORDER BY seq DESC
		LIMIT $4 OFFSET $5
	`, filter.ProductID, filter.BatchID, filter.OrderID,
		repository.NormalizeLimit(filter.Limit), repository.NormalizeOffset(filter.Offset))
	if err != nil {
		return nil, fmt.Errorf("list batch movements: %w", err)
	}
	defer rows.Close()

	movements := []domain.BatchMovement{}
	for rows.Next() {
		var m domain.BatchMovement
		var movementType, kind, orderID, orderNo string
		if err := rows.Scan(&m.ID, &m.BatchID, &m.BatchNo, &m.ProductID, &movementType, &m.Quantity,
			&m.RemainingQuantity, &kind, &orderID, &orderNo, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch movement: %w", err)
		}
		m.Type = domain.MovementType(movementType)
		m.Provenance = scanProvenance(kind, orderID, orderNo)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch movements: %w", err)
	}
	return movements, nil
}

func (r *txRepo) GetCommand(ctx context.Context, key string) (repository.StoredCommand, error) {
	var cmd repository.StoredCommand
	err := r.tx.QueryRow(ctx, `
		SELECT key, kind, target_id, result, created_at
		FROM idempotency_keys
		WHERE key = $1
	`, key).Scan(&cmd.Key, &cmd.Kind, &cmd.TargetID, &cmd.Result, &cmd.CreatedAt)
	if err != nil {
		return repository.StoredCommand{}, notFound(err, "get command")
	}
	return cmd, nil
}

func (r *txRepo) PutCommand(ctx context.Context, cmd repository.StoredCommand) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, kind, target_id, result, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, cmd.Key, cmd.Kind, cmd.TargetID, string(cmd.Result), cmd.CreatedAt)
	if err != nil {
		return writeErr(err, "store command")
	}
	return nil
}

func scanBatch(row pgx.Row) (domain.InventoryBatch, error) {
	var b domain.InventoryBatch
	var kind, orderID, orderNo, status string
	if err := row.Scan(&b.ID, &b.BatchNo, &b.ProductID, &b.ProductName, &b.Quantity, &b.RemainingQuantity,
		&b.PurchasePrice, &b.SupplierID, &b.SupplierName, &kind, &orderID, &orderNo,
		&b.ProductionDate, &b.ExpiryDate, &status, &b.CreatedAt); err != nil {
		return domain.InventoryBatch{}, err
	}
	b.Provenance = scanProvenance(kind, orderID, orderNo)
	b.Status = domain.BatchStatus(status)
	return b, nil
}
