package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderReceived  OrderStatus = "received"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderKind string

const (
	PurchaseKind OrderKind = "purchase"
	SaleKind     OrderKind = "sale"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderReceived, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Pending reports whether the order still waits on its counterparty.
func (s OrderStatus) Pending() bool {
	return s == OrderPending || s == OrderConfirmed
}

func (k OrderKind) ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCancelled:
		return true
	case OrderReceived:
		return k == PurchaseKind
	case OrderShipped, OrderCompleted:
		return k == SaleKind
	}
	return false
}

// manualTransitions are the moves a caller may request directly. Received,
// shipped and completed are only ever reached through stock commands.
var manualTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderCancelled},
	OrderShipped:   {OrderCancelled},
}

func (k OrderKind) CanTransition(from, to OrderStatus) bool {
	if !k.ValidStatus(from) || !k.ValidStatus(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range manualTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
