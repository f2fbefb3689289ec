package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/events"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
)

func TestReceiveShipAdjustScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 5)
	supplier := f.supplier(t)
	customer := f.customer(t)

	po := f.purchaseOrder(t, supplier.ID, line(p.ID, 20, 100))
	received, err := f.svc.ReceivePurchase(ctx, domain.ReceiveCommand{
		OrderID: po.ID,
		Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 20}},
	})
	if err != nil {
		t.Fatalf("ReceivePurchase: %v", err)
	}
	if received.Order.Status != domain.OrderReceived {
		t.Errorf("Expected status received, got %s", received.Order.Status)
	}
	if !received.Order.ReceivedAmount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected received amount 2000, got %s", received.Order.ReceivedAmount)
	}
	if got := f.reload(t, p.ID).Stock; got != 20 {
		t.Fatalf("Expected stock 20, got %d", got)
	}
	batches := f.batches(t, p.ID)
	if len(batches) != 1 || batches[0].RemainingQuantity != 20 {
		t.Fatalf("Expected one batch with 20 remaining, got %+v", batches)
	}
	if batches[0].Provenance != domain.PurchaseProvenance(po.ID, po.OrderNo) {
		t.Errorf("Expected purchase provenance, got %+v", batches[0].Provenance)
	}
	if !batches[0].PurchasePrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected batch cost 100, got %s", batches[0].PurchasePrice)
	}
	records := f.records(t, p.ID)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if r := records[0]; r.Type != domain.RecordIn || r.Quantity != 20 || r.BeforeStock != 0 || r.AfterStock != 20 {
		t.Errorf("Expected in +20 0->20, got %s %+d %d->%d", r.Type, r.Quantity, r.BeforeStock, r.AfterStock)
	}
	movements := f.movements(t, p.ID)
	if len(movements) != 1 || movements[0].Type != domain.MovementIn || movements[0].Quantity != 20 || movements[0].RemainingQuantity != 20 {
		t.Errorf("Expected movement in 20 remaining 20, got %+v", movements)
	}

	so := f.saleOrder(t, customer.ID, line(p.ID, 15, 150))
	shipped, err := f.svc.ShipSale(ctx, domain.ShipCommand{
		OrderID: so.ID,
		Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 15}},
	})
	if err != nil {
		t.Fatalf("ShipSale: %v", err)
	}
	if shipped.Order.Status != domain.OrderCompleted {
		t.Errorf("Expected status completed, got %s", shipped.Order.Status)
	}
	if got := f.reload(t, p.ID).Stock; got != 5 {
		t.Fatalf("Expected stock 5, got %d", got)
	}
	batches = f.batches(t, p.ID)
	if batches[0].RemainingQuantity != 5 || batches[0].Status != domain.BatchActive {
		t.Errorf("Expected batch active with 5 remaining, got %d %s", batches[0].RemainingQuantity, batches[0].Status)
	}
	out := shipped.Records[0]
	if out.Type != domain.RecordOut || out.Quantity != -15 || out.BeforeStock != 20 || out.AfterStock != 5 {
		t.Errorf("Expected out -15 20->5, got %s %+d %d->%d", out.Type, out.Quantity, out.BeforeStock, out.AfterStock)
	}
	if out.BatchNo != batches[0].BatchNo {
		t.Errorf("Expected record batch %s, got %s", batches[0].BatchNo, out.BatchNo)
	}
	if len(shipped.Movements) != 1 || shipped.Movements[0].Quantity != 15 || shipped.Movements[0].RemainingQuantity != 5 {
		t.Errorf("Expected movement out 15 remaining 5, got %+v", shipped.Movements)
	}
	allocs := shipped.Order.Items[0].Batches
	if len(allocs) != 1 || allocs[0].BatchID != batches[0].ID || allocs[0].Quantity != 15 {
		t.Errorf("Expected one allocation of 15 from %s, got %+v", batches[0].ID, allocs)
	}

	adjusted, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: -3, Reason: "damage"})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if r := adjusted.Record; r.Type != domain.RecordAdjust || r.Quantity != -3 || r.BeforeStock != 5 || r.AfterStock != 2 {
		t.Errorf("Expected adjust -3 5->2, got %s %+d %d->%d", r.Type, r.Quantity, r.BeforeStock, r.AfterStock)
	}
	if adjusted.Record.Reason != "damage" {
		t.Errorf("Expected reason damage, got %s", adjusted.Record.Reason)
	}
	if got := remainingSum(f.batches(t, p.ID)); got != 2 {
		t.Errorf("Expected batches to be drained to 2, got %d", got)
	}

	audit, err := f.svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	for _, a := range audit {
		if !a.Consistent {
			t.Errorf("Expected %s consistent, stock %d vs batches %d", a.ProductCode, a.Stock, a.BatchRemaining)
		}
	}
	if got := len(f.publisher.Events()); got != 3 {
		t.Errorf("Expected 3 published events, got %d", got)
	}
}

func TestAdjustWithoutDrainLeavesBatchesOutOfBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithDrainPolicy(ledger.DrainNone))
	p := f.stocked(t, "P", 5)

	if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: -3, Reason: "damage"}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if got := f.reload(t, p.ID).Stock; got != 2 {
		t.Errorf("Expected stock 2, got %d", got)
	}
	if got := remainingSum(f.batches(t, p.ID)); got != 5 {
		t.Errorf("Expected batches untouched at 5, got %d", got)
	}
	audit, err := f.svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(audit) != 1 || audit[0].Consistent {
		t.Errorf("Expected the audit to flag the gap, got %+v", audit)
	}
}

func TestAdjustNewestDrainsLatestBatchFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithDrainPolicy(ledger.DrainNewest))
	p := f.product(t, "P", 0)
	for _, qty := range []int{4, 6} {
		if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: qty}); err != nil {
			t.Fatalf("Adjust(+%d): %v", qty, err)
		}
	}
	res, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: -7})
	if err != nil {
		t.Fatalf("Adjust(-7): %v", err)
	}
	if len(res.Movements) != 2 || res.Movements[0].Quantity != 6 || res.Movements[1].Quantity != 1 {
		t.Errorf("Expected drains of 6 then 1, got %+v", res.Movements)
	}
	batches := f.batches(t, p.ID)
	if batches[0].RemainingQuantity != 3 || batches[1].Status != domain.BatchExhausted {
		t.Errorf("Expected oldest at 3 and newest exhausted, got %+v", batches)
	}
}

func TestAdjustPositiveCreatesBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 0)
	supplier := f.supplier(t)

	cost := decimal.NewFromInt(42)
	res, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: 10, UnitCost: &cost, SupplierID: supplier.ID})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Batch == nil {
		t.Fatal("Expected a batch for a positive adjustment")
	}
	if res.Batch.Provenance.Kind != domain.ProvenanceManual || res.Batch.SupplierName != supplier.Name {
		t.Errorf("Expected manual provenance from %s, got %+v", supplier.Name, res.Batch)
	}
	if !res.Batch.PurchasePrice.Equal(cost) {
		t.Errorf("Expected batch cost 42, got %s", res.Batch.PurchasePrice)
	}
	if res.Record.Reason != "manual adjustment" {
		t.Errorf("Expected default reason, got %q", res.Record.Reason)
	}

	res, err = f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: 2})
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Batch.Provenance.Kind != domain.ProvenanceAdjustment {
		t.Errorf("Expected adjustment provenance, got %s", res.Batch.Provenance.Kind)
	}
	if !res.Batch.PurchasePrice.Equal(p.PurchasePrice) {
		t.Errorf("Expected product purchase price as cost, got %s", res.Batch.PurchasePrice)
	}
}

func TestAdjustRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 5)
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		cmd  domain.AdjustCommand
		want error
	}{
		{"zero delta", domain.AdjustCommand{ProductID: p.ID}, domain.ErrInvalidQuantity},
		{"below zero", domain.AdjustCommand{ProductID: p.ID, Delta: -6}, domain.ErrNegativeStock},
		{"unknown product", domain.AdjustCommand{ProductID: "missing", Delta: 1}, domain.ErrNotFound},
		{"missing product", domain.AdjustCommand{Delta: 1}, domain.ErrValidation},
		{"negative cost", domain.AdjustCommand{ProductID: p.ID, Delta: 1, UnitCost: &negative}, domain.ErrValidation},
		{"unknown supplier", domain.AdjustCommand{ProductID: p.ID, Delta: 1, SupplierID: "missing"}, domain.ErrNotFound},
		{"stock overflow", domain.AdjustCommand{ProductID: p.ID, Delta: math.MaxInt}, domain.ErrInvalidQuantity},
		{"min int delta", domain.AdjustCommand{ProductID: p.ID, Delta: math.MinInt}, domain.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Adjust(ctx, tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if got := f.reload(t, p.ID).Stock; got != 5 {
		t.Errorf("Expected stock untouched at 5, got %d", got)
	}
	if got := len(f.records(t, p.ID)); got != 1 {
		t.Errorf("Expected only the receipt record, got %d", got)
	}
}

func TestReceiveWithoutKeyIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 0)
	po := f.purchaseOrder(t, f.supplier(t).ID, line(p.ID, 20, 100))
	cmd := domain.ReceiveCommand{OrderID: po.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: 5}}}

	first, err := f.svc.ReceivePurchase(ctx, cmd)
	if err != nil {
		t.Fatalf("first ReceivePurchase: %v", err)
	}
	second, err := f.svc.ReceivePurchase(ctx, cmd)
	if err != nil {
		t.Fatalf("second ReceivePurchase: %v", err)
	}
	if second.Replayed {
		t.Error("Expected the second call to apply again")
	}
	if !second.Order.ReceivedAmount.Equal(first.Order.ReceivedAmount.Mul(decimal.NewFromInt(2))) {
		t.Errorf("Expected received amount to double, got %s then %s", first.Order.ReceivedAmount, second.Order.ReceivedAmount)
	}
	if got := f.reload(t, p.ID).Stock; got != 10 {
		t.Errorf("Expected stock 10, got %d", got)
	}
	if got := len(f.batches(t, p.ID)); got != 2 {
		t.Errorf("Expected 2 batches, got %d", got)
	}
	if second.Order.Status != domain.OrderConfirmed {
		t.Errorf("Expected partial receipt to stay confirmed, got %s", second.Order.Status)
	}
}

func TestIdempotencyKeyReplaysFirstResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 0)
	supplier := f.supplier(t)
	po := f.purchaseOrder(t, supplier.ID, line(p.ID, 20, 100))
	cmd := domain.ReceiveCommand{
		OrderID:        po.ID,
		Lines:          []domain.StockLine{{ProductID: p.ID, Quantity: 5}},
		IdempotencyKey: "req-1",
	}

	first, err := f.svc.ReceivePurchase(ctx, cmd)
	if err != nil {
		t.Fatalf("first ReceivePurchase: %v", err)
	}
	second, err := f.svc.ReceivePurchase(ctx, cmd)
	if err != nil {
		t.Fatalf("second ReceivePurchase: %v", err)
	}
	if !second.Replayed {
		t.Error("Expected the second call to be a replay")
	}
	if second.Records[0].ID != first.Records[0].ID {
		t.Errorf("Expected the stored record %s, got %s", first.Records[0].ID, second.Records[0].ID)
	}
	if got := f.reload(t, p.ID).Stock; got != 5 {
		t.Errorf("Expected stock 5, got %d", got)
	}
	if got := len(f.publisher.Events()); got != 1 {
		t.Errorf("Expected 1 published event, got %d", got)
	}

	other := f.purchaseOrder(t, supplier.ID, line(p.ID, 5, 100))
	cmd.OrderID = other.ID
	if _, err := f.svc.ReceivePurchase(ctx, cmd); !errors.Is(err, domain.ErrDuplicateCommand) {
		t.Errorf("Expected ErrDuplicateCommand, got %v", err)
	}

	// the same key string is independent per command kind
	if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: 1, IdempotencyKey: "req-1"}); err != nil {
		t.Errorf("Expected adjust with a reused receive key to apply, got %v", err)
	}
}

func TestReceiveStatusTransition(t *testing.T) {
	tests := []struct {
		name     string
		quantity [2]int
		want     domain.OrderStatus
	}{
		{"everything received", [2]int{10, 5}, domain.OrderReceived},
		{"partial receipt", [2]int{10, 0}, domain.OrderConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.product(t, "A", 0)
			b := f.product(t, "B", 0)
			po := f.purchaseOrder(t, f.supplier(t).ID, line(a.ID, 10, 10), line(b.ID, 5, 20))

			res, err := f.svc.ReceivePurchase(context.Background(), domain.ReceiveCommand{
				OrderID: po.ID,
				Lines: []domain.StockLine{
					{ProductID: a.ID, Quantity: tt.quantity[0]},
					{ProductID: b.ID, Quantity: tt.quantity[1]},
				},
			})
			if err != nil {
				t.Fatalf("ReceivePurchase: %v", err)
			}
			if res.Order.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, res.Order.Status)
			}
			for _, item := range res.Order.Items {
				if item.ReceivedQuantity < 0 || item.ReceivedQuantity > item.Quantity {
					t.Errorf("Expected 0 <= received <= %d, got %d", item.Quantity, item.ReceivedQuantity)
				}
			}
		})
	}
}

func TestShipFIFOAcrossBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 0)
	po := f.purchaseOrder(t, f.supplier(t).ID, line(p.ID, 15, 100))
	for _, qty := range []int{5, 10} {
		if _, err := f.svc.ReceivePurchase(ctx, domain.ReceiveCommand{
			OrderID: po.ID,
			Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: qty}},
		}); err != nil {
			t.Fatalf("ReceivePurchase(%d): %v", qty, err)
		}
	}
	batches := f.batches(t, p.ID)

	so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 7, 150))
	res, err := f.svc.ShipSale(ctx, domain.ShipCommand{
		OrderID: so.ID,
		Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 7}},
	})
	if err != nil {
		t.Fatalf("ShipSale: %v", err)
	}
	allocs := res.Order.Items[0].Batches
	if len(allocs) != 2 {
		t.Fatalf("Expected 2 allocations, got %+v", allocs)
	}
	if allocs[0].BatchID != batches[0].ID || allocs[0].Quantity != 5 {
		t.Errorf("Expected 5 from %s first, got %+v", batches[0].BatchNo, allocs[0])
	}
	if allocs[1].BatchID != batches[1].ID || allocs[1].Quantity != 2 {
		t.Errorf("Expected 2 from %s second, got %+v", batches[1].BatchNo, allocs[1])
	}
	want := batches[0].BatchNo + ", " + batches[1].BatchNo
	if res.Records[0].BatchNo != want {
		t.Errorf("Expected batch list %q, got %q", want, res.Records[0].BatchNo)
	}

	after := f.batches(t, p.ID)
	if after[0].Status != domain.BatchExhausted || after[0].RemainingQuantity != 0 {
		t.Errorf("Expected first batch exhausted, got %+v", after[0])
	}
	if after[1].RemainingQuantity != 8 {
		t.Errorf("Expected second batch at 8, got %d", after[1].RemainingQuantity)
	}
	if res.Order.Status != domain.OrderCompleted {
		t.Errorf("Expected completed, got %s", res.Order.Status)
	}
}

func expiredStock(t *testing.T, f fixture, qty int) domain.Product {
	t.Helper()
	ctx := context.Background()
	p := f.product(t, "P", 0)
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: qty, ExpiryDate: &past}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	expired, err := f.svc.ExpireBatches(ctx)
	if err != nil {
		t.Fatalf("ExpireBatches: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("Expected 1 expired batch, got %d", len(expired))
	}
	return p
}

func TestShipShortfallPolicies(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		f := newFixture(t)
		p := expiredStock(t, f, 10)
		so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 4, 10))
		_, err := f.svc.ShipSale(context.Background(), domain.ShipCommand{
			OrderID: so.ID,
			Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 4}},
		})
		if !errors.Is(err, domain.ErrInsufficientBatchStock) {
			t.Fatalf("Expected ErrInsufficientBatchStock, got %v", err)
		}
		if got := f.reload(t, p.ID).Stock; got != 10 {
			t.Errorf("Expected stock untouched at 10, got %d", got)
		}
		order, err := f.svc.GetSaleOrder(context.Background(), so.ID)
		if err != nil {
			t.Fatalf("GetSaleOrder: %v", err)
		}
		if order.Items[0].ShippedQuantity != 0 || order.Status != domain.OrderConfirmed {
			t.Errorf("Expected order untouched, got shipped %d status %s", order.Items[0].ShippedQuantity, order.Status)
		}
	})

	t.Run("backorder ships expired stock", func(t *testing.T) {
		f := newFixture(t, WithShortfallPolicy(ledger.ShortfallBackorder))
		p := expiredStock(t, f, 10)
		so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 4, 10))
		res, err := f.svc.ShipSale(context.Background(), domain.ShipCommand{
			OrderID: so.ID,
			Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 4}},
		})
		if err != nil {
			t.Fatalf("ShipSale: %v", err)
		}
		allocs := res.Order.Items[0].Batches
		if len(allocs) != 1 || allocs[0].BatchNo == domain.BackorderBatchNo || allocs[0].Quantity != 4 {
			t.Errorf("Expected 4 taken from the expired batch, got %+v", allocs)
		}
		if len(res.Movements) != 1 {
			t.Errorf("Expected one batch movement, got %d", len(res.Movements))
		}
		if got := f.reload(t, p.ID).Stock; got != 6 {
			t.Errorf("Expected stock 6, got %d", got)
		}
		if got := remainingSum(f.batches(t, p.ID)); got != 6 {
			t.Errorf("Expected 6 left in batches, got %d", got)
		}
		expectConsistent(t, f)
	})

	t.Run("backorder beyond batches", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, WithShortfallPolicy(ledger.ShortfallBackorder))
		p := f.product(t, "P", 0)
		// stock carried over without any batch behind it
		p.Stock = 10
		if err := f.store.Update(ctx, func(tx repository.Tx) error { return tx.UpdateProduct(ctx, p) }); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
		so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 4, 10))
		res, err := f.svc.ShipSale(ctx, domain.ShipCommand{
			OrderID: so.ID,
			Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 4}},
		})
		if err != nil {
			t.Fatalf("ShipSale: %v", err)
		}
		allocs := res.Order.Items[0].Batches
		if len(allocs) != 1 || allocs[0].BatchNo != domain.BackorderBatchNo || allocs[0].Quantity != 4 || allocs[0].BatchID != "" {
			t.Errorf("Expected one backorder allocation of 4, got %+v", allocs)
		}
		if res.Records[0].BatchNo != domain.BackorderBatchNo {
			t.Errorf("Expected record batch %s, got %s", domain.BackorderBatchNo, res.Records[0].BatchNo)
		}
		if got := f.reload(t, p.ID).Stock; got != 6 {
			t.Errorf("Expected stock 6, got %d", got)
		}
		if len(res.Movements) != 0 {
			t.Errorf("Expected no batch movements, got %d", len(res.Movements))
		}
	})
}

func expectConsistent(t *testing.T, f fixture) {
	t.Helper()
	audit, err := f.svc.Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	for _, row := range audit {
		if !row.Consistent {
			t.Errorf("Expected %s consistent, got stock %d vs batches %d", row.ProductCode, row.Stock, row.BatchRemaining)
		}
	}
}

func TestStockCommandsRejectOverflowingQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 10)
	po := f.purchaseOrder(t, f.supplier(t).ID, line(p.ID, 5, 1))
	so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 5, 1))
	if _, err := f.svc.ReceivePurchase(ctx, domain.ReceiveCommand{OrderID: po.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: 1}}}); err != nil {
		t.Fatalf("ReceivePurchase: %v", err)
	}
	if _, err := f.svc.ShipSale(ctx, domain.ShipCommand{OrderID: so.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: 1}}}); err != nil {
		t.Fatalf("ShipSale: %v", err)
	}

	huge := []domain.StockLine{{ProductID: p.ID, Quantity: math.MaxInt}}
	split := []domain.StockLine{{ProductID: p.ID, Quantity: math.MaxInt}, {ProductID: p.ID, Quantity: math.MaxInt}}
	for name, lines := range map[string][]domain.StockLine{"single": huge, "split": split} {
		t.Run("ship "+name, func(t *testing.T) {
			_, err := f.svc.ShipSale(ctx, domain.ShipCommand{OrderID: so.ID, Lines: lines})
			if !errors.Is(err, domain.ErrInvalidQuantity) {
				t.Errorf("Expected ErrInvalidQuantity, got %v", err)
			}
		})
		t.Run("receive "+name, func(t *testing.T) {
			_, err := f.svc.ReceivePurchase(ctx, domain.ReceiveCommand{OrderID: po.ID, Lines: lines})
			if !errors.Is(err, domain.ErrInvalidQuantity) {
				t.Errorf("Expected ErrInvalidQuantity, got %v", err)
			}
		})
	}

	if got := f.reload(t, p.ID).Stock; got != 10 {
		t.Errorf("Expected stock 10, got %d", got)
	}
	order, err := f.svc.GetSaleOrder(ctx, so.ID)
	if err != nil {
		t.Fatalf("GetSaleOrder: %v", err)
	}
	if order.Items[0].ShippedQuantity != 1 {
		t.Errorf("Expected shipped quantity 1, got %d", order.Items[0].ShippedQuantity)
	}
	expectConsistent(t, f)
}

func TestConcurrentShipsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 10)
	customer := f.customer(t)

	const workers = 20
	orders := make([]domain.SaleOrder, workers)
	for i := range orders {
		orders[i] = f.saleOrder(t, customer.ID, line(p.ID, 1, 10))
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ShipSale(ctx, domain.ShipCommand{
				OrderID: orders[i].ID,
				Lines:   []domain.StockLine{{ProductID: p.ID, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	shipped := 0
	for _, err := range errs {
		switch {
		case err == nil:
			shipped++
		case !errors.Is(err, domain.ErrInsufficientStock):
			t.Errorf("Expected ErrInsufficientStock, got %v", err)
		}
	}
	if shipped != 10 {
		t.Errorf("Expected 10 shipments, got %d", shipped)
	}
	if got := f.reload(t, p.ID).Stock; got != 0 {
		t.Errorf("Expected stock 0, got %d", got)
	}
	if got := len(f.records(t, p.ID)); got != 11 {
		t.Errorf("Expected 11 records, got %d", got)
	}
	expectConsistent(t, f)
}

func TestConcurrentAdjustsKeepBatchesInStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := -2
			if i%2 == 0 {
				delta = 3
			}
			if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: delta}); err != nil {
				t.Errorf("Adjust(%d): %v", delta, err)
			}
		}(i)
	}
	wg.Wait()

	if got := f.reload(t, p.ID).Stock; got != 60 {
		t.Errorf("Expected stock 60, got %d", got)
	}
	expectConsistent(t, f)
}

// lockWatcher reports whether a product key could be taken while events were
// being published.
type lockWatcher struct {
	locker *lock.KeyedMutex
	key    string
	mu     sync.Mutex
	free   []bool
}

func (l *lockWatcher) Publish(ctx context.Context, _ ...events.Event) error {
	tryCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	unlock, err := l.locker.Lock(tryCtx, l.key)
	if err == nil {
		unlock()
	}
	l.mu.Lock()
	l.free = append(l.free, err == nil)
	l.mu.Unlock()
	return nil
}

func (l *lockWatcher) Close() error { return nil }

func TestEventsPublishedWhileLocksHeld(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewKeyedMutex()
	watcher := &lockWatcher{locker: locker}
	f := newFixture(t, WithLocker(locker), WithPublisher(watcher))
	p := f.product(t, "P", 0)
	watcher.key = lock.ProductKey(p.ID)

	if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: 5}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 2, 1))
	if _, err := f.svc.ShipSale(ctx, domain.ShipCommand{OrderID: so.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: 2}}}); err != nil {
		t.Fatalf("ShipSale: %v", err)
	}

	if len(watcher.free) != 2 {
		t.Fatalf("Expected 2 publishes, got %d", len(watcher.free))
	}
	for i, free := range watcher.free {
		if free {
			t.Errorf("Expected publish %d to run under the product lock", i)
		}
	}
}

func TestShipInsufficientStockIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.stocked(t, "A", 10)
	b := f.stocked(t, "B", 2)
	so := f.saleOrder(t, f.customer(t).ID, line(a.ID, 5, 10), line(b.ID, 5, 10))

	_, err := f.svc.ShipSale(ctx, domain.ShipCommand{
		OrderID: so.ID,
		Lines: []domain.StockLine{
			{ProductID: a.ID, Quantity: 5},
			{ProductID: b.ID, Quantity: 5},
		},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if got := f.reload(t, a.ID).Stock; got != 10 {
		t.Errorf("Expected first line rolled back to 10, got %d", got)
	}
	if got := remainingSum(f.batches(t, a.ID)); got != 10 {
		t.Errorf("Expected batches rolled back to 10, got %d", got)
	}
	if got := len(f.records(t, a.ID)); got != 1 {
		t.Errorf("Expected only the receipt record, got %d", got)
	}
}

func TestStockCommandRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "P", 0)
	other := f.product(t, "Q", 0)
	supplier := f.supplier(t)
	po := f.purchaseOrder(t, supplier.ID, line(p.ID, 10, 1))
	cancelled := f.purchaseOrder(t, supplier.ID, line(p.ID, 10, 1))
	status := domain.OrderCancelled
	if _, err := f.svc.EditPurchaseOrder(ctx, cancelled.ID, domain.PurchaseOrderPatch{Status: &status}); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	tests := []struct {
		name    string
		orderID string
		lines   []domain.StockLine
		want    error
	}{
		{"negative quantity", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: -1}}, domain.ErrInvalidQuantity},
		{"nothing to receive", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: 0}}, domain.ErrInvalidQuantity},
		{"empty request", po.ID, nil, domain.ErrInvalidQuantity},
		{"product not on order", po.ID, []domain.StockLine{{ProductID: other.ID, Quantity: 1}}, domain.ErrNotFound},
		{"over receipt", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: 11}}, domain.ErrInvalidQuantity},
		{"split lines over receipt", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: 6}, {ProductID: p.ID, Quantity: 5}}, domain.ErrInvalidQuantity},
		{"max int receipt", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: math.MaxInt}}, domain.ErrInvalidQuantity},
		{"overflowing split lines", po.ID, []domain.StockLine{{ProductID: p.ID, Quantity: math.MaxInt}, {ProductID: p.ID, Quantity: math.MaxInt}}, domain.ErrInvalidQuantity},
		{"cancelled order", cancelled.ID, []domain.StockLine{{ProductID: p.ID, Quantity: 1}}, domain.ErrOrderClosed},
		{"unknown order", "missing", []domain.StockLine{{ProductID: p.ID, Quantity: 1}}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReceivePurchase(ctx, domain.ReceiveCommand{OrderID: tt.orderID, Lines: tt.lines})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	if got := f.reload(t, p.ID).Stock; got != 0 {
		t.Errorf("Expected stock untouched, got %d", got)
	}
}

func TestShipClosedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 10)
	so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 2, 10))
	cmd := domain.ShipCommand{OrderID: so.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: 2}}}
	if _, err := f.svc.ShipSale(ctx, cmd); err != nil {
		t.Fatalf("ShipSale: %v", err)
	}
	if _, err := f.svc.ShipSale(ctx, cmd); !errors.Is(err, domain.ErrOrderClosed) {
		t.Errorf("Expected ErrOrderClosed on a completed order, got %v", err)
	}
}

func TestRecordsBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.stocked(t, "P", 12)
	so := f.saleOrder(t, f.customer(t).ID, line(p.ID, 8, 10))
	for _, qty := range []int{3, 5} {
		if _, err := f.svc.ShipSale(ctx, domain.ShipCommand{OrderID: so.ID, Lines: []domain.StockLine{{ProductID: p.ID, Quantity: qty}}}); err != nil {
			t.Fatalf("ShipSale(%d): %v", qty, err)
		}
	}
	if _, err := f.svc.Adjust(ctx, domain.AdjustCommand{ProductID: p.ID, Delta: 7}); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	for _, r := range f.records(t, p.ID) {
		if r.AfterStock-r.BeforeStock != r.Quantity {
			t.Errorf("Expected after-before == quantity, got %d-%d != %d", r.AfterStock, r.BeforeStock, r.Quantity)
		}
	}
	if got, want := f.reload(t, p.ID).Stock, remainingSum(f.batches(t, p.ID)); got != want {
		t.Errorf("Expected stock %d to equal batch remaining %d", got, want)
	}
}

func TestPublishFailureDoesNotUndoCommand(t *testing.T) {
	publisher := &events.Memory{Err: errors.New("broker down")}
	f := newFixture(t, WithPublisher(publisher))
	p := f.product(t, "P", 0)
	if _, err := f.svc.Adjust(context.Background(), domain.AdjustCommand{ProductID: p.ID, Delta: 3}); err != nil {
		t.Fatalf("Expected adjust to succeed, got %v", err)
	}
	if got := f.reload(t, p.ID).Stock; got != 3 {
		t.Errorf("Expected stock 3, got %d", got)
	}
}

func TestNormalizeLines(t *testing.T) {
	lines, err := normalizeLines([]domain.StockLine{
		{ProductID: "b", Quantity: 2},
		{ProductID: "a", Quantity: 0},
		{ProductID: " a ", Quantity: 3},
		{ProductID: "b", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("normalizeLines: %v", err)
	}
	want := []domain.StockLine{{ProductID: "b", Quantity: 3}, {ProductID: "a", Quantity: 3}}
	if len(lines) != len(want) {
		t.Fatalf("Expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, lines[i])
		}
	}
}
