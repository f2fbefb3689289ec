package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/events"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/repository"

	"go.uber.org/zap"
)

const (
	kindReceive = "receive"
	kindShip    = "ship"
	kindAdjust  = "adjust"
)

type ReceiveResult struct {
	Order     domain.PurchaseOrder     `json:"order"`
	Batches   []domain.InventoryBatch  `json:"batches"`
	Records   []domain.InventoryRecord `json:"records"`
	Movements []domain.BatchMovement   `json:"movements"`
	Replayed  bool                     `json:"replayed"`
}

type ShipResult struct {
	Order     domain.SaleOrder         `json:"order"`
	Records   []domain.InventoryRecord `json:"records"`
	Movements []domain.BatchMovement   `json:"movements"`
	Replayed  bool                     `json:"replayed"`
}

type AdjustResult struct {
	Product   domain.Product         `json:"product"`
	Record    domain.InventoryRecord `json:"record"`
	Batch     *domain.InventoryBatch `json:"batch,omitempty"`
	Movements []domain.BatchMovement `json:"movements"`
	Replayed  bool                   `json:"replayed"`
}

// ReceivePurchase books received quantities against a purchase order. Every
// line gets its own batch costed at the order price. All lines commit together
// or not at all.
func (s *Service) ReceivePurchase(ctx context.Context, cmd domain.ReceiveCommand) (ReceiveResult, error) {
	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return ReceiveResult{}, fmt.Errorf("receive purchase order %s: %w", cmd.OrderID, err)
	}
	operator := s.operatorFor(cmd.Operator)
	c := command{
		kind:   kindReceive,
		key:    cmd.IdempotencyKey,
		target: cmd.OrderID,
		locks:  lockKeys(cmd.OrderID, lines),
	}
	result, replayed, err := runCommand(ctx, s, c, func(tx repository.Tx) (ReceiveResult, error) {
		return s.receive(ctx, tx, cmd.OrderID, lines, operator)
	}, func(r ReceiveResult) { s.publish(ctx, r.Records) })
	if err != nil {
		s.logger.Warn("receive rejected", zap.String("order_id", cmd.OrderID), zap.Error(err))
		return ReceiveResult{}, fmt.Errorf("receive purchase order %s: %w", cmd.OrderID, err)
	}
	result.Replayed = replayed
	if !replayed {
		for _, record := range result.Records {
			s.logger.Info("stock received",
				zap.String("product_id", record.ProductID),
				zap.String("order_no", result.Order.OrderNo),
				zap.Int("quantity", record.Quantity),
				zap.Int("before", record.BeforeStock),
				zap.Int("after", record.AfterStock),
			)
		}
	}
	return result, nil
}

func (s *Service) receive(ctx context.Context, tx repository.Tx, orderID string, lines []domain.StockLine, operator domain.Operator) (ReceiveResult, error) {
	order, err := tx.GetPurchaseOrder(ctx, orderID)
	if err != nil {
		return ReceiveResult{}, err
	}
	if order.Status.Terminal() {
		return ReceiveResult{}, fmt.Errorf("order %s is %s: %w", order.OrderNo, order.Status, domain.ErrOrderClosed)
	}

	index := make(map[string]int, len(order.Items))
	for i, item := range order.Items {
		index[item.ProductID] = i
	}
	for _, line := range lines {
		i, ok := index[line.ProductID]
		if !ok {
			return ReceiveResult{}, fmt.Errorf("product %s is not on order %s: %w", line.ProductID, order.OrderNo, domain.ErrNotFound)
		}
		item := order.Items[i]
		if line.Quantity > item.Outstanding() {
			return ReceiveResult{}, fmt.Errorf("receiving %d of %s exceeds outstanding %d: %w",
				line.Quantity, item.ProductName, item.Outstanding(), domain.ErrInvalidQuantity)
		}
	}

	now := s.clock()
	provenance := domain.PurchaseProvenance(order.ID, order.OrderNo)
	result := ReceiveResult{}
	for _, line := range lines {
		item := &order.Items[index[line.ProductID]]
		product, err := tx.GetProduct(ctx, line.ProductID)
		if err != nil {
			return ReceiveResult{}, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if product.Stock > math.MaxInt-line.Quantity {
			return ReceiveResult{}, fmt.Errorf("receiving %d of %s overflows stock %d: %w",
				line.Quantity, product.Code, product.Stock, domain.ErrInvalidQuantity)
		}
		before, err := adjustStock(ctx, tx, &product, product.Stock+line.Quantity, now)
		if err != nil {
			return ReceiveResult{}, err
		}
		batch, err := s.createBatch(ctx, tx, ledger.NewBatchParams{
			Product:      product,
			Quantity:     line.Quantity,
			UnitCost:     item.Price,
			SupplierID:   order.SupplierID,
			SupplierName: order.SupplierName,
			Provenance:   provenance,
			CreatedAt:    now,
		})
		if err != nil {
			return ReceiveResult{}, err
		}
		item.ReceivedQuantity += line.Quantity

		record := s.newRecord(product, domain.RecordIn, line.Quantity, before, batch.BatchNo,
			fmt.Sprintf("purchase receipt - order %s", order.OrderNo), provenance, operator, now)
		if err := tx.AppendRecord(ctx, record); err != nil {
			return ReceiveResult{}, fmt.Errorf("append record: %w", err)
		}
		movement := s.newMovement(batch, domain.MovementIn, line.Quantity, provenance, now)
		if err := tx.AppendMovement(ctx, movement); err != nil {
			return ReceiveResult{}, fmt.Errorf("append movement: %w", err)
		}
		result.Batches = append(result.Batches, batch)
		result.Records = append(result.Records, record)
		result.Movements = append(result.Movements, movement)
	}

	order.ReceivedAmount = receivedAmount(order.Items)
	if order.FullyReceived() {
		order.Status = domain.OrderReceived
	} else {
		order.Status = domain.OrderConfirmed
	}
	order.UpdatedAt = now
	if err := tx.UpdatePurchaseOrder(ctx, order); err != nil {
		return ReceiveResult{}, fmt.Errorf("update order %s: %w", order.OrderNo, err)
	}
	result.Order = order
	return result, nil
}

// ShipSale books shipped quantities against a sale order and consumes
// batches oldest first. A shortfall in batch stock is handled by the
// configured ShortfallPolicy.
func (s *Service) ShipSale(ctx context.Context, cmd domain.ShipCommand) (ShipResult, error) {
	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return ShipResult{}, fmt.Errorf("ship sale order %s: %w", cmd.OrderID, err)
	}
	operator := s.operatorFor(cmd.Operator)
	c := command{
		kind:   kindShip,
		key:    cmd.IdempotencyKey,
		target: cmd.OrderID,
		locks:  lockKeys(cmd.OrderID, lines),
	}
	result, replayed, err := runCommand(ctx, s, c, func(tx repository.Tx) (ShipResult, error) {
		return s.ship(ctx, tx, cmd.OrderID, lines, operator)
	}, func(r ShipResult) { s.publish(ctx, r.Records) })
	if err != nil {
		s.logger.Warn("shipment rejected", zap.String("order_id", cmd.OrderID), zap.Error(err))
		return ShipResult{}, fmt.Errorf("ship sale order %s: %w", cmd.OrderID, err)
	}
	result.Replayed = replayed
	if !replayed {
		for _, record := range result.Records {
			s.logger.Info("stock shipped",
				zap.String("product_id", record.ProductID),
				zap.String("order_no", result.Order.OrderNo),
				zap.Int("quantity", record.Quantity),
				zap.Int("before", record.BeforeStock),
				zap.Int("after", record.AfterStock),
				zap.String("batches", record.BatchNo),
			)
		}
	}
	return result, nil
}

func (s *Service) ship(ctx context.Context, tx repository.Tx, orderID string, lines []domain.StockLine, operator domain.Operator) (ShipResult, error) {
	order, err := tx.GetSaleOrder(ctx, orderID)
	if err != nil {
		return ShipResult{}, err
	}
	if order.Status.Terminal() {
		return ShipResult{}, fmt.Errorf("order %s is %s: %w", order.OrderNo, order.Status, domain.ErrOrderClosed)
	}

	index := make(map[string]int, len(order.Items))
	for i, item := range order.Items {
		index[item.ProductID] = i
	}
	for _, line := range lines {
		i, ok := index[line.ProductID]
		if !ok {
			return ShipResult{}, fmt.Errorf("product %s is not on order %s: %w", line.ProductID, order.OrderNo, domain.ErrNotFound)
		}
		item := order.Items[i]
		if line.Quantity > item.Outstanding() {
			return ShipResult{}, fmt.Errorf("shipping %d of %s exceeds outstanding %d: %w",
				line.Quantity, item.ProductName, item.Outstanding(), domain.ErrInvalidQuantity)
		}
	}

	now := s.clock()
	provenance := domain.SaleProvenance(order.ID, order.OrderNo)
	result := ShipResult{}
	for _, line := range lines {
		item := &order.Items[index[line.ProductID]]
		product, err := tx.GetProduct(ctx, line.ProductID)
		if err != nil {
			return ShipResult{}, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		if product.Stock < line.Quantity {
			return ShipResult{}, fmt.Errorf("%s has %d on hand, %d requested: %w",
				product.Code, product.Stock, line.Quantity, domain.ErrInsufficientStock)
		}
		// backorder falls back to expired batches, so it needs all of them
		batches, err := productBatches(ctx, tx, product.ID, s.shortfall != ledger.ShortfallBackorder)
		if err != nil {
			return ShipResult{}, err
		}
		alloc := ledger.AllocateShipment(batches, line.Quantity, s.shortfall)
		if alloc.Shortfall > 0 && s.shortfall == ledger.ShortfallReject {
			return ShipResult{}, fmt.Errorf("%s batches cover %d of %d: %w",
				product.Code, alloc.Allocated, line.Quantity, domain.ErrInsufficientBatchStock)
		}
		movements, err := s.consume(ctx, tx, alloc, provenance, now)
		if err != nil {
			return ShipResult{}, err
		}

		allocations := alloc.BatchAllocations()
		batchNos := alloc.BatchNos()
		if alloc.Shortfall > 0 {
			allocations = append(allocations, domain.BatchAllocation{BatchNo: domain.BackorderBatchNo, Quantity: alloc.Shortfall})
			batchNos = append(batchNos, domain.BackorderBatchNo)
			s.logger.Warn("shipment backordered",
				zap.String("product_id", product.ID),
				zap.String("order_no", order.OrderNo),
				zap.Int("shortfall", alloc.Shortfall),
			)
		}
		item.ShippedQuantity += line.Quantity
		item.Batches = append(item.Batches, allocations...)

		before, err := adjustStock(ctx, tx, &product, product.Stock-line.Quantity, now)
		if err != nil {
			return ShipResult{}, err
		}
		record := s.newRecord(product, domain.RecordOut, -line.Quantity, before, strings.Join(batchNos, ", "),
			fmt.Sprintf("sale shipment - order %s", order.OrderNo), provenance, operator, now)
		if err := tx.AppendRecord(ctx, record); err != nil {
			return ShipResult{}, fmt.Errorf("append record: %w", err)
		}
		result.Records = append(result.Records, record)
		result.Movements = append(result.Movements, movements...)
	}

	order.ShippedAmount = shippedAmount(order.Items)
	if order.FullyShipped() {
		order.Status = domain.OrderCompleted
	} else {
		order.Status = domain.OrderShipped
	}
	order.UpdatedAt = now
	if err := tx.UpdateSaleOrder(ctx, order); err != nil {
		return ShipResult{}, fmt.Errorf("update order %s: %w", order.OrderNo, err)
	}
	result.Order = order
	return result, nil
}

// Adjust corrects a product's stock by a signed delta. A positive delta opens
// a new batch; a negative one drains batches per the configured DrainPolicy.
func (s *Service) Adjust(ctx context.Context, cmd domain.AdjustCommand) (AdjustResult, error) {
	cmd.ProductID = strings.TrimSpace(cmd.ProductID)
	if cmd.ProductID == "" {
		return AdjustResult{}, validationf("product_id is required")
	}
	if cmd.Delta == 0 || cmd.Delta == math.MinInt {
		return AdjustResult{}, fmt.Errorf("adjust %s by %d: %w", cmd.ProductID, cmd.Delta, domain.ErrInvalidQuantity)
	}
	if cmd.UnitCost != nil && cmd.UnitCost.IsNegative() {
		return AdjustResult{}, validationf("unit_cost cannot be negative")
	}
	operator := s.operatorFor(cmd.Operator)
	c := command{
		kind:   kindAdjust,
		key:    cmd.IdempotencyKey,
		target: cmd.ProductID,
		locks:  []string{lock.ProductKey(cmd.ProductID)},
	}
	result, replayed, err := runCommand(ctx, s, c, func(tx repository.Tx) (AdjustResult, error) {
		return s.adjust(ctx, tx, cmd, operator)
	}, func(r AdjustResult) { s.publish(ctx, []domain.InventoryRecord{r.Record}) })
	if err != nil {
		s.logger.Warn("adjustment rejected",
			zap.String("product_id", cmd.ProductID),
			zap.Int("delta", cmd.Delta),
			zap.Error(err),
		)
		return AdjustResult{}, fmt.Errorf("adjust product %s: %w", cmd.ProductID, err)
	}
	result.Replayed = replayed
	if !replayed {
		s.logger.Info("stock adjusted",
			zap.String("product_id", result.Product.ID),
			zap.Int("quantity", result.Record.Quantity),
			zap.Int("before", result.Record.BeforeStock),
			zap.Int("after", result.Record.AfterStock),
			zap.String("reason", result.Record.Reason),
		)
	}
	return result, nil
}

func (s *Service) adjust(ctx context.Context, tx repository.Tx, cmd domain.AdjustCommand, operator domain.Operator) (AdjustResult, error) {
	product, err := tx.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return AdjustResult{}, err
	}
	now := s.clock()
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "manual adjustment"
	}
	provenance := domain.AdjustmentProvenance()
	result := AdjustResult{}

	var supplier domain.Supplier
	if cmd.Delta > 0 && strings.TrimSpace(cmd.SupplierID) != "" {
		supplier, err = tx.GetSupplier(ctx, strings.TrimSpace(cmd.SupplierID))
		if err != nil {
			return AdjustResult{}, fmt.Errorf("supplier %s: %w", cmd.SupplierID, err)
		}
		provenance = domain.ManualProvenance()
	}

	if cmd.Delta > 0 && product.Stock > math.MaxInt-cmd.Delta {
		return AdjustResult{}, fmt.Errorf("adjusting %s by %d overflows stock %d: %w",
			product.Code, cmd.Delta, product.Stock, domain.ErrInvalidQuantity)
	}
	before, err := adjustStock(ctx, tx, &product, product.Stock+cmd.Delta, now)
	if err != nil {
		return AdjustResult{}, err
	}

	var batchNos []string
	if cmd.Delta > 0 {
		cost := product.PurchasePrice
		if cmd.UnitCost != nil {
			cost = *cmd.UnitCost
		}
		batch, err := s.createBatch(ctx, tx, ledger.NewBatchParams{
			Product:      product,
			Quantity:     cmd.Delta,
			UnitCost:     cost,
			SupplierID:   supplier.ID,
			SupplierName: supplier.Name,
			Provenance:   provenance,
			ExpiryDate:   cmd.ExpiryDate,
			CreatedAt:    now,
		})
		if err != nil {
			return AdjustResult{}, err
		}
		movement := s.newMovement(batch, domain.MovementIn, cmd.Delta, provenance, now)
		if err := tx.AppendMovement(ctx, movement); err != nil {
			return AdjustResult{}, fmt.Errorf("append movement: %w", err)
		}
		result.Batch = &batch
		result.Movements = append(result.Movements, movement)
		batchNos = append(batchNos, batch.BatchNo)
	} else {
		batches, err := productBatches(ctx, tx, product.ID, false)
		if err != nil {
			return AdjustResult{}, err
		}
		alloc := ledger.Drain(batches, -cmd.Delta, s.drain)
		movements, err := s.consume(ctx, tx, alloc, provenance, now)
		if err != nil {
			return AdjustResult{}, err
		}
		if alloc.Shortfall > 0 {
			s.logger.Warn("adjustment left batches out of balance",
				zap.String("product_id", product.ID),
				zap.String("drain_policy", string(s.drain)),
				zap.Int("undrained", alloc.Shortfall),
			)
		}
		result.Movements = append(result.Movements, movements...)
		batchNos = alloc.BatchNos()
	}

	record := s.newRecord(product, domain.RecordAdjust, cmd.Delta, before, strings.Join(batchNos, ", "),
		reason, provenance, operator, now)
	if err := tx.AppendRecord(ctx, record); err != nil {
		return AdjustResult{}, fmt.Errorf("append record: %w", err)
	}
	result.Product = product
	result.Record = record
	return result, nil
}

// consume persists the post-allocation state of every batch touched and
// writes one outgoing movement per batch.
func (s *Service) consume(ctx context.Context, tx repository.Tx, alloc ledger.Allocation, provenance domain.Provenance, now time.Time) ([]domain.BatchMovement, error) {
	movements := make([]domain.BatchMovement, 0, len(alloc.Steps))
	for _, step := range alloc.Steps {
		if err := tx.UpdateBatch(ctx, step.Batch); err != nil {
			return nil, fmt.Errorf("update batch %s: %w", step.Batch.BatchNo, err)
		}
		movement := s.newMovement(step.Batch, domain.MovementOut, step.Quantity, provenance, now)
		if err := tx.AppendMovement(ctx, movement); err != nil {
			return nil, fmt.Errorf("append movement: %w", err)
		}
		movements = append(movements, movement)
	}
	return movements, nil
}

func (s *Service) createBatch(ctx context.Context, tx repository.Tx, params ledger.NewBatchParams) (domain.InventoryBatch, error) {
	batchNo, err := uniqueCode(
		func() string { return ledger.BatchNo(params.Product.Code, params.CreatedAt, s.rnd) },
		func(no string) error {
			_, err := tx.FindBatchByNo(ctx, no)
			return err
		},
	)
	if err != nil {
		return domain.InventoryBatch{}, err
	}
	params.ID = s.newID()
	params.BatchNo = batchNo
	batch, err := ledger.NewBatch(params)
	if err != nil {
		return domain.InventoryBatch{}, err
	}
	if err := tx.InsertBatch(ctx, batch); err != nil {
		return domain.InventoryBatch{}, fmt.Errorf("insert batch %s: %w", batchNo, err)
	}
	return batch, nil
}

func (s *Service) newRecord(product domain.Product, typ domain.RecordType, quantity, before int, batchNo, reason string,
	provenance domain.Provenance, operator domain.Operator, now time.Time) domain.InventoryRecord {
	return domain.InventoryRecord{
		ID:           s.newID(),
		ProductID:    product.ID,
		ProductName:  product.Name,
		Type:         typ,
		Quantity:     quantity,
		BeforeStock:  before,
		AfterStock:   before + quantity,
		Reason:       reason,
		BatchNo:      batchNo,
		Provenance:   provenance,
		OperatorID:   operator.ID,
		OperatorName: operator.Name,
		CreatedAt:    now,
	}
}

func (s *Service) newMovement(batch domain.InventoryBatch, typ domain.MovementType, quantity int, provenance domain.Provenance, now time.Time) domain.BatchMovement {
	return domain.BatchMovement{
		ID:                s.newID(),
		BatchID:           batch.ID,
		BatchNo:           batch.BatchNo,
		ProductID:         batch.ProductID,
		Type:              typ,
		Quantity:          quantity,
		RemainingQuantity: batch.RemainingQuantity,
		Provenance:        provenance,
		CreatedAt:         now,
	}
}

func (s *Service) publish(ctx context.Context, records []domain.InventoryRecord) {
	if len(records) == 0 {
		return
	}
	batch := make([]events.Event, 0, len(records))
	for _, record := range records {
		batch = append(batch, events.RecordCreated(s.newID(), record))
	}
	if err := s.publisher.Publish(ctx, batch...); err != nil {
		s.logger.Error("publish ledger events", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func productBatches(ctx context.Context, tx repository.Tx, productID string, availableOnly bool) ([]domain.InventoryBatch, error) {
	batches, err := collect(func(limit, offset int) ([]domain.InventoryBatch, error) {
		return tx.ListBatches(ctx, repository.BatchFilter{
			ProductID:     productID,
			AvailableOnly: availableOnly,
			Limit:         limit,
			Offset:        offset,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list batches for %s: %w", productID, err)
	}
	return batches, nil
}

// normalizeLines merges repeated products and drops zero lines, the way the
// receive and ship forms submit every order line.
func normalizeLines(lines []domain.StockLine) ([]domain.StockLine, error) {
	totals := make(map[string]int, len(lines))
	var order []string
	for _, line := range lines {
		if line.Quantity < 0 {
			return nil, fmt.Errorf("quantity %d for %s: %w", line.Quantity, line.ProductID, domain.ErrInvalidQuantity)
		}
		if line.Quantity == 0 {
			continue
		}
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, validationf("product_id is required")
		}
		total, seen := totals[id]
		if !seen {
			order = append(order, id)
		}
		if total > math.MaxInt-line.Quantity {
			return nil, fmt.Errorf("quantities for %s overflow: %w", id, domain.ErrInvalidQuantity)
		}
		totals[id] = total + line.Quantity
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no positive quantities: %w", domain.ErrInvalidQuantity)
	}
	out := make([]domain.StockLine, 0, len(order))
	for _, id := range order {
		out = append(out, domain.StockLine{ProductID: id, Quantity: totals[id]})
	}
	return out, nil
}

func lockKeys(orderID string, lines []domain.StockLine) []string {
	keys := make([]string, 0, len(lines)+1)
	keys = append(keys, lock.OrderKey(orderID))
	for _, line := range lines {
		keys = append(keys, lock.ProductKey(line.ProductID))
	}
	return keys
}

type command struct {
	kind   string
	key    string
	target string
	locks  []string
}

func (c command) storeKey() string {
	key := strings.TrimSpace(c.key)
	if key == "" {
		return ""
	}
	return c.kind + ":" + key
}

// runCommand applies a stock command under its locks in one transaction. With
// an idempotency key the first result is stored next to the writes and later
// calls with the same key return it instead of applying again. committed runs
// after a fresh commit while the locks are still held, so per-product
// side effects follow commit order.
func runCommand[R any](ctx context.Context, s *Service, c command, apply func(tx repository.Tx) (R, error), committed func(R)) (R, bool, error) {
	var zero R
	unlock, err := s.locker.Lock(ctx, c.locks...)
	if err != nil {
		return zero, false, fmt.Errorf("acquire locks: %w", err)
	}
	defer unlock()

	key := c.storeKey()
	var result R
	replayed := false
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if key != "" {
			stored, err := tx.GetCommand(ctx, key)
			switch {
			case err == nil:
				replayed = true
				result, err = decodeStored[R](stored, c)
				return err
			case !errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("load idempotency key: %w", err)
			}
		}
		var err error
		result, err = apply(tx)
		if err != nil || key == "" {
			return err
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode %s result: %w", c.kind, err)
		}
		return tx.PutCommand(ctx, repository.StoredCommand{
			Key:       key,
			Kind:      c.kind,
			TargetID:  c.target,
			Result:    payload,
			CreatedAt: s.clock(),
		})
	})
	if err != nil && key != "" && !replayed && errors.Is(err, domain.ErrConflict) {
		// Another process committed the same key between our read and write.
		var stored repository.StoredCommand
		viewErr := s.store.View(ctx, func(tx repository.Tx) error {
			var err error
			stored, err = tx.GetCommand(ctx, key)
			return err
		})
		if viewErr == nil {
			result, err = decodeStored[R](stored, c)
			return result, err == nil, err
		}
	}
	if err != nil {
		return zero, false, err
	}
	if !replayed && committed != nil {
		committed(result)
	}
	return result, replayed, nil
}

func decodeStored[R any](stored repository.StoredCommand, c command) (R, error) {
	var result R
	if stored.Kind != c.kind || stored.TargetID != c.target {
		return result, fmt.Errorf("key %q was used for %s %s: %w", c.key, stored.Kind, stored.TargetID, domain.ErrDuplicateCommand)
	}
	if err := json.Unmarshal(stored.Result, &result); err != nil {
		return result, fmt.Errorf("decode stored %s result: %w", c.kind, err)
	}
	return result, nil
}
