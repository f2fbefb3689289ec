package domain

import "fmt"

type ProvenanceKind string

const (
	ProvenancePurchase   ProvenanceKind = "purchase"
	ProvenanceSale       ProvenanceKind = "sale"
	ProvenanceManual     ProvenanceKind = "manual"
	ProvenanceAdjustment ProvenanceKind = "adjustment"
)

// Provenance says where a batch, record or movement came from. OrderID and
// OrderNo are set only for purchase and sale provenance.
type Provenance struct {
	Kind    ProvenanceKind `json:"kind"`
	OrderID string         `json:"order_id,omitempty"`
	OrderNo string         `json:"order_no,omitempty"`
}

func PurchaseProvenance(orderID, orderNo string) Provenance {
	return Provenance{Kind: ProvenancePurchase, OrderID: orderID, OrderNo: orderNo}
}

func SaleProvenance(orderID, orderNo string) Provenance {
	return Provenance{Kind: ProvenanceSale, OrderID: orderID, OrderNo: orderNo}
}

func ManualProvenance() Provenance {
	return Provenance{Kind: ProvenanceManual}
}

func AdjustmentProvenance() Provenance {
	return Provenance{Kind: ProvenanceAdjustment}
}

func (p Provenance) IsOrder() bool {
	return p.Kind == ProvenancePurchase || p.Kind == ProvenanceSale
}

func (p Provenance) Validate() error {
	switch p.Kind {
	case ProvenancePurchase, ProvenanceSale:
		if p.OrderID == "" || p.OrderNo == "" {
			return fmt.Errorf("%s provenance requires order id and number: %w", p.Kind, ErrValidation)
		}
	case ProvenanceManual, ProvenanceAdjustment:
		if p.OrderID != "" || p.OrderNo != "" {
			return fmt.Errorf("%s provenance cannot reference an order: %w", p.Kind, ErrValidation)
		}
	default:
		return fmt.Errorf("unknown provenance %q: %w", p.Kind, ErrValidation)
	}
	return nil
}

func (p Provenance) String() string {
	if p.IsOrder() {
		return string(p.Kind) + ":" + p.OrderNo
	}
	return string(p.Kind)
}
