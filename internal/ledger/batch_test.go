package ledger

import (
	"errors"
	"testing"
	"time"

	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
)

type fixedRand int

func (f fixedRand) IntN(int) int { return int(f) }

func TestBatchNo(t *testing.T) {
	now := time.Date(2024, 1, 5, 9, 7, 0, 0, time.UTC)

	if got := BatchNo("P001", now, fixedRand(3)); got != "P001-20240105-0907-03" {
		t.Errorf("Expected P001-20240105-0907-03, got %s", got)
	}
	if got := BatchNo("  ", now, fixedRand(42)); got != "B-20240105-0907-42" {
		t.Errorf("Expected fallback prefix, got %s", got)
	}
}

func TestNewBatch(t *testing.T) {
	product := domain.Product{ID: "P1", Name: "Widget", Code: "W1"}
	params := NewBatchParams{
		ID:         "b1",
		BatchNo:    "W1-20240105-0907-03",
		Product:    product,
		Quantity:   10,
		UnitCost:   decimal.NewFromFloat(2.5),
		Provenance: domain.PurchaseProvenance("o1", "PO-20240105-001"),
		CreatedAt:  base,
	}

	got, err := NewBatch(params)
	if err != nil {
		t.Fatalf("Failed to create batch: %v", err)
	}
	if got.RemainingQuantity != 10 || got.Status != domain.BatchActive || got.ProductName != "Widget" {
		t.Errorf("Unexpected batch %+v", got)
	}
	if !got.Value().Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected value 25, got %s", got.Value())
	}

	tests := []struct {
		name   string
		mutate func(*NewBatchParams)
		want   error
	}{
		{name: "zero_quantity", mutate: func(p *NewBatchParams) { p.Quantity = 0 }, want: domain.ErrInvalidQuantity},
		{name: "negative_cost", mutate: func(p *NewBatchParams) { p.UnitCost = decimal.NewFromInt(-1) }, want: domain.ErrValidation},
		{name: "sale_provenance", mutate: func(p *NewBatchParams) { p.Provenance = domain.SaleProvenance("s1", "SO-1") }, want: domain.ErrValidation},
		{name: "purchase_without_order", mutate: func(p *NewBatchParams) { p.Provenance = domain.Provenance{Kind: domain.ProvenancePurchase} }, want: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params
			tt.mutate(&p)
			if _, err := NewBatch(p); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExpire(t *testing.T) {
	past := base.Add(-time.Hour)
	future := base.Add(time.Hour)

	b := batch("B1", 3, 0)
	b.ExpiryDate = &past
	if !Expire(&b, base) || b.Status != domain.BatchExpired {
		t.Errorf("Expected batch to expire, got %s", b.Status)
	}

	b = batch("B2", 3, 0)
	b.ExpiryDate = &future
	if Expire(&b, base) {
		t.Errorf("Expected future batch to stay active")
	}

	b = batch("B3", 0, 0)
	b.Status = domain.BatchExhausted
	b.ExpiryDate = &past
	if Expire(&b, base) {
		t.Errorf("Expected exhausted batch to stay exhausted")
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseShortfallPolicy(""); err != nil || p != ShortfallReject {
		t.Errorf("Expected default reject, got %s (%v)", p, err)
	}
	if p, err := ParseShortfallPolicy("BackOrder"); err != nil || p != ShortfallBackorder {
		t.Errorf("Expected backorder, got %s (%v)", p, err)
	}
	if _, err := ParseShortfallPolicy("ignore"); err == nil {
		t.Errorf("Expected error for unknown shortfall policy")
	}
	if p, err := ParseDrainPolicy("newest"); err != nil || p != DrainNewest {
		t.Errorf("Expected newest, got %s (%v)", p, err)
	}
	if _, err := ParseDrainPolicy("lifo"); err == nil {
		t.Errorf("Expected error for unknown drain policy")
	}
}
