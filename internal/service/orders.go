package service

import (
	"context"
	"fmt"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/repository"

	"github.com/shopspring/decimal"
)

type orderLine struct {
	product  domain.Product
	quantity int
	price    decimal.Decimal
}

func (l orderLine) amount() decimal.Decimal {
	return l.price.Mul(decimal.NewFromInt(int64(l.quantity)))
}

func resolveLines(ctx context.Context, tx repository.Tx, lines []domain.OrderLineInput) ([]orderLine, error) {
	if len(lines) == 0 {
		return nil, validationf("at least one item is required")
	}
	seen := make(map[string]bool, len(lines))
	out := make([]orderLine, 0, len(lines))
	for i, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, validationf("item %d: product_id is required", i+1)
		}
		if seen[productID] {
			return nil, validationf("item %d: product %s appears more than once", i+1, productID)
		}
		seen[productID] = true
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity %d: %w", i+1, line.Quantity, domain.ErrInvalidQuantity)
		}
		if line.Price.IsNegative() {
			return nil, validationf("item %d: price cannot be negative", i+1)
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("item %d: product %s: %w", i+1, productID, err)
		}
		out = append(out, orderLine{product: product, quantity: line.Quantity, price: line.Price})
	}
	return out, nil
}

func initialStatus(status domain.OrderStatus) (domain.OrderStatus, error) {
	switch status {
	case "":
		return domain.OrderPending, nil
	case domain.OrderPending, domain.OrderConfirmed:
		return status, nil
	}
	return "", fmt.Errorf("orders start pending or confirmed, not %q: %w", status, domain.ErrInvalidStatusTransition)
}

func (s *Service) purchaseItems(lines []orderLine) ([]domain.PurchaseItem, decimal.Decimal) {
	items := make([]domain.PurchaseItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		amount := line.amount()
		items = append(items, domain.PurchaseItem{
			ID:          s.newID(),
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Quantity:    line.quantity,
			Price:       line.price,
			Amount:      amount,
		})
		total = total.Add(amount)
	}
	return items, total
}

func (s *Service) saleItems(lines []orderLine) ([]domain.SaleItem, decimal.Decimal) {
	items := make([]domain.SaleItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		amount := line.amount()
		items = append(items, domain.SaleItem{
			ID:          s.newID(),
			ProductID:   line.product.ID,
			ProductName: line.product.Name,
			Quantity:    line.quantity,
			Price:       line.price,
			Amount:      amount,
		})
		total = total.Add(amount)
	}
	return items, total
}

func receivedAmount(items []domain.PurchaseItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.ReceivedQuantity))))
	}
	return total
}

func shippedAmount(items []domain.SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.ShippedQuantity))))
	}
	return total
}

// Purchase orders

func (s *Service) ListPurchaseOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.PurchaseOrder, error) {
	var orders []domain.PurchaseOrder
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		orders, err = tx.ListPurchaseOrders(ctx, filter)
		return err
	})
	return orders, err
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetPurchaseOrder(ctx, id)
		return err
	})
	return order, err
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, input domain.PurchaseOrderInput) (domain.PurchaseOrder, error) {
	status, err := initialStatus(input.Status)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	now := s.clock()
	var order domain.PurchaseOrder
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		supplier, err := tx.GetSupplier(ctx, strings.TrimSpace(input.SupplierID))
		if err != nil {
			return fmt.Errorf("supplier %s: %w", input.SupplierID, err)
		}
		lines, err := resolveLines(ctx, tx, input.Items)
		if err != nil {
			return err
		}
		orderNo := strings.TrimSpace(input.OrderNo)
		if orderNo == "" {
			orderNo, err = uniqueCode(
				func() string { return domain.OrderNo(domain.PurchaseOrderPrefix, now, s.rnd) },
				func(no string) error {
					_, err := tx.FindPurchaseOrderByNo(ctx, no)
					return err
				},
			)
			if err != nil {
				return err
			}
		}
		items, total := s.purchaseItems(lines)
		order = domain.PurchaseOrder{
			ID:             s.newID(),
			OrderNo:        orderNo,
			SupplierID:     supplier.ID,
			SupplierName:   supplier.Name,
			OrderDate:      now,
			ExpectedDate:   input.ExpectedDate,
			Status:         status,
			Items:          items,
			TotalAmount:    total,
			ReceivedAmount: decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if input.OrderDate != nil {
			order.OrderDate = input.OrderDate.UTC()
		}
		return tx.InsertPurchaseOrder(ctx, order)
	})
	if err != nil {
		return domain.PurchaseOrder{}, fmt.Errorf("create purchase order: %w", err)
	}
	return order, nil
}

// EditPurchaseOrder patches an open order. Items can only be replaced and the
// supplier changed while nothing has been received.
func (s *Service) EditPurchaseOrder(ctx context.Context, id string, patch domain.PurchaseOrderPatch) (domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return fmt.Errorf("edit purchase order %s (%s): %w", order.OrderNo, order.Status, domain.ErrOrderClosed)
		}
		if patch.SupplierID != nil && *patch.SupplierID != order.SupplierID {
			if order.HasReceipts() {
				return fmt.Errorf("change supplier of %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
			}
			supplier, err := tx.GetSupplier(ctx, *patch.SupplierID)
			if err != nil {
				return fmt.Errorf("supplier %s: %w", *patch.SupplierID, err)
			}
			order.SupplierID, order.SupplierName = supplier.ID, supplier.Name
		}
		if patch.OrderDate != nil {
			order.OrderDate = patch.OrderDate.UTC()
		}
		if patch.ExpectedDate != nil {
			order.ExpectedDate = patch.ExpectedDate
		}
		if patch.Items != nil {
			if order.HasReceipts() {
				return fmt.Errorf("replace items of %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
			}
			lines, err := resolveLines(ctx, tx, *patch.Items)
			if err != nil {
				return err
			}
			order.Items, order.TotalAmount = s.purchaseItems(lines)
			order.ReceivedAmount = decimal.Zero
		}
		if patch.Status != nil {
			if !domain.PurchaseKind.CanTransition(order.Status, *patch.Status) {
				return fmt.Errorf("purchase order %s %s -> %s: %w", order.OrderNo, order.Status, *patch.Status, domain.ErrInvalidStatusTransition)
			}
			order.Status = *patch.Status
		}
		order.UpdatedAt = s.clock()
		return tx.UpdatePurchaseOrder(ctx, order)
	})
	return order, err
}

func (s *Service) DeletePurchaseOrder(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(tx repository.Tx) error {
		order, err := tx.GetPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.HasReceipts() || order.ReceivedAmount.IsPositive() {
			return fmt.Errorf("delete purchase order %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
		}
		return tx.DeletePurchaseOrder(ctx, id)
	})
}

// Sale orders

func (s *Service) ListSaleOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.SaleOrder, error) {
	var orders []domain.SaleOrder
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		orders, err = tx.ListSaleOrders(ctx, filter)
		return err
	})
	return orders, err
}

func (s *Service) GetSaleOrder(ctx context.Context, id string) (domain.SaleOrder, error) {
	var order domain.SaleOrder
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetSaleOrder(ctx, id)
		return err
	})
	return order, err
}

func (s *Service) CreateSaleOrder(ctx context.Context, input domain.SaleOrderInput) (domain.SaleOrder, error) {
	status, err := initialStatus(input.Status)
	if err != nil {
		return domain.SaleOrder{}, err
	}
	now := s.clock()
	var order domain.SaleOrder
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		customer, err := tx.GetCustomer(ctx, strings.TrimSpace(input.CustomerID))
		if err != nil {
			return fmt.Errorf("customer %s: %w", input.CustomerID, err)
		}
		lines, err := resolveLines(ctx, tx, input.Items)
		if err != nil {
			return err
		}
		orderNo := strings.TrimSpace(input.OrderNo)
		if orderNo == "" {
			orderNo, err = uniqueCode(
				func() string { return domain.OrderNo(domain.SaleOrderPrefix, now, s.rnd) },
				func(no string) error {
					_, err := tx.FindSaleOrderByNo(ctx, no)
					return err
				},
			)
			if err != nil {
				return err
			}
		}
		items, total := s.saleItems(lines)
		order = domain.SaleOrder{
			ID:            s.newID(),
			OrderNo:       orderNo,
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			OrderDate:     now,
			DeliveryDate:  input.DeliveryDate,
			Status:        status,
			Items:         items,
			TotalAmount:   total,
			ShippedAmount: decimal.Zero,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if input.OrderDate != nil {
			order.OrderDate = input.OrderDate.UTC()
		}
		return tx.InsertSaleOrder(ctx, order)
	})
	if err != nil {
		return domain.SaleOrder{}, fmt.Errorf("create sale order: %w", err)
	}
	return order, nil
}

func (s *Service) EditSaleOrder(ctx context.Context, id string, patch domain.SaleOrderPatch) (domain.SaleOrder, error) {
	var order domain.SaleOrder
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetSaleOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return fmt.Errorf("edit sale order %s (%s): %w", order.OrderNo, order.Status, domain.ErrOrderClosed)
		}
		if patch.CustomerID != nil && *patch.CustomerID != order.CustomerID {
			if order.HasShipments() {
				return fmt.Errorf("change customer of %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
			}
			customer, err := tx.GetCustomer(ctx, *patch.CustomerID)
			if err != nil {
				return fmt.Errorf("customer %s: %w", *patch.CustomerID, err)
			}
			order.CustomerID, order.CustomerName = customer.ID, customer.Name
		}
		if patch.OrderDate != nil {
			order.OrderDate = patch.OrderDate.UTC()
		}
		if patch.DeliveryDate != nil {
			order.DeliveryDate = patch.DeliveryDate
		}
		if patch.Items != nil {
			if order.HasShipments() {
				return fmt.Errorf("replace items of %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
			}
			lines, err := resolveLines(ctx, tx, *patch.Items)
			if err != nil {
				return err
			}
			order.Items, order.TotalAmount = s.saleItems(lines)
			order.ShippedAmount = decimal.Zero
		}
		if patch.Status != nil {
			if !domain.SaleKind.CanTransition(order.Status, *patch.Status) {
				return fmt.Errorf("sale order %s %s -> %s: %w", order.OrderNo, order.Status, *patch.Status, domain.ErrInvalidStatusTransition)
			}
			order.Status = *patch.Status
		}
		order.UpdatedAt = s.clock()
		return tx.UpdateSaleOrder(ctx, order)
	})
	return order, err
}

func (s *Service) DeleteSaleOrder(ctx context.Context, id string) error {
	return s.store.Update(ctx, func(tx repository.Tx) error {
		order, err := tx.GetSaleOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.HasShipments() || order.ShippedAmount.IsPositive() {
			return fmt.Errorf("delete sale order %s: %w", order.OrderNo, domain.ErrOrderHasMovements)
		}
		return tx.DeleteSaleOrder(ctx, id)
	})
}

type PendingOrders struct {
	Purchases []domain.PurchaseOrder `json:"purchase_orders"`
	Sales     []domain.SaleOrder     `json:"sale_orders"`
}

func (s *Service) PendingOrders(ctx context.Context) (PendingOrders, error) {
	var pending PendingOrders
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		pending.Purchases, err = collect(func(limit, offset int) ([]domain.PurchaseOrder, error) {
			return tx.ListPurchaseOrders(ctx, repository.OrderFilter{PendingOnly: true, Limit: limit, Offset: offset})
		})
		if err != nil {
			return err
		}
		pending.Sales, err = collect(func(limit, offset int) ([]domain.SaleOrder, error) {
			return tx.ListSaleOrders(ctx, repository.OrderFilter{PendingOnly: true, Limit: limit, Offset: offset})
		})
		return err
	})
	return pending, err
}
