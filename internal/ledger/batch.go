package ledger

import (
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
)

// BatchNo builds <productCode>-<YYYYMMDD>-<HHmm>-<NN>. Uniqueness is
// practical, not guaranteed; callers retry on collision.
func BatchNo(productCode string, now time.Time, rnd domain.Intn) string {
	code := strings.TrimSpace(productCode)
	if code == "" {
		code = "B"
	}
	return fmt.Sprintf("%s-%s-%02d", code, now.Format("20060102-1504"), rnd.IntN(100))
}

type NewBatchParams struct {
	ID             string
	BatchNo        string
	Product        domain.Product
	Quantity       int
	UnitCost       decimal.Decimal
	SupplierID     string
	SupplierName   string
	Provenance     domain.Provenance
	ProductionDate *time.Time
	ExpiryDate     *time.Time
	CreatedAt      time.Time
}

// NewBatch creates an active batch whose remaining quantity equals its
// received quantity.
func NewBatch(p NewBatchParams) (domain.InventoryBatch, error) {
	if p.Quantity <= 0 {
		return domain.InventoryBatch{}, fmt.Errorf("batch quantity %d: %w", p.Quantity, domain.ErrInvalidQuantity)
	}
	if p.UnitCost.IsNegative() {
		return domain.InventoryBatch{}, fmt.Errorf("batch unit cost cannot be negative: %w", domain.ErrValidation)
	}
	if err := p.Provenance.Validate(); err != nil {
		return domain.InventoryBatch{}, err
	}
	if p.Provenance.Kind == domain.ProvenanceSale {
		return domain.InventoryBatch{}, fmt.Errorf("batches cannot originate from a sale: %w", domain.ErrValidation)
	}
	if p.ID == "" || p.BatchNo == "" {
		return domain.InventoryBatch{}, fmt.Errorf("batch id and number are required: %w", domain.ErrValidation)
	}
	return domain.InventoryBatch{
		ID:                p.ID,
		BatchNo:           p.BatchNo,
		ProductID:         p.Product.ID,
		ProductName:       p.Product.Name,
		Quantity:          p.Quantity,
		RemainingQuantity: p.Quantity,
		PurchasePrice:     p.UnitCost,
		SupplierID:        p.SupplierID,
		SupplierName:      p.SupplierName,
		Provenance:        p.Provenance,
		ProductionDate:    p.ProductionDate,
		ExpiryDate:        p.ExpiryDate,
		Status:            domain.BatchActive,
		CreatedAt:         p.CreatedAt,
	}, nil
}

// Expire flips an active batch past its expiry date to expired. It reports
// whether the batch changed.
func Expire(batch *domain.InventoryBatch, now time.Time) bool {
	if batch.Status != domain.BatchActive || batch.ExpiryDate == nil {
		return false
	}
	if !batch.ExpiryDate.Before(now) {
		return false
	}
	batch.Status = domain.BatchExpired
	return true
}
