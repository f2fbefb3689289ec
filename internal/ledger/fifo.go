package ledger

import (
	"sort"

	"stockledger/internal/domain"
)

// Step is one batch touched by an allocation. Batch holds the batch state
// after Quantity units were taken from it.
type Step struct {
	Batch    domain.InventoryBatch
	Quantity int
}

type Allocation struct {
	Steps     []Step
	Allocated int
	Shortfall int
}

func (a Allocation) BatchNos() []string {
	nos := make([]string, 0, len(a.Steps))
	for _, step := range a.Steps {
		nos = append(nos, step.Batch.BatchNo)
	}
	return nos
}

func (a Allocation) BatchAllocations() []domain.BatchAllocation {
	out := make([]domain.BatchAllocation, 0, len(a.Steps))
	for _, step := range a.Steps {
		out = append(out, domain.BatchAllocation{
			BatchID:  step.Batch.ID,
			BatchNo:  step.Batch.BatchNo,
			Quantity: step.Quantity,
		})
	}
	return out
}

// SortFIFO orders batches oldest first by creation time. Ties keep their
// incoming order, so stores should list batches in insertion order.
func SortFIFO(batches []domain.InventoryBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}

// AvailableFIFO returns the active batches with remaining quantity, oldest
// first. The input slice is not modified.
func AvailableFIFO(batches []domain.InventoryBatch) []domain.InventoryBatch {
	out := make([]domain.InventoryBatch, 0, len(batches))
	for _, batch := range batches {
		if batch.Available() {
			out = append(out, batch)
		}
	}
	SortFIFO(out)
	return out
}

// AllocateFIFO takes needed units from the product's available batches,
// oldest first. A batch that reaches zero becomes exhausted. When the batches
// cannot cover needed, the uncovered amount is returned as Shortfall and the
// caller decides whether that is an error.
func AllocateFIFO(batches []domain.InventoryBatch, needed int) Allocation {
	return walk(AvailableFIFO(batches), needed)
}

// AllocateShipment is AllocateFIFO for a sale shipment. Under
// ShortfallBackorder whatever the active batches cannot cover is taken from
// expired batches, oldest first, and only the rest is left as Shortfall.
// Expired units are still on hand, so shipping them keeps batches and stock
// in step.
func AllocateShipment(batches []domain.InventoryBatch, needed int, policy ShortfallPolicy) Allocation {
	alloc := AllocateFIFO(batches, needed)
	if policy != ShortfallBackorder || alloc.Shortfall == 0 {
		return alloc
	}
	expired := make([]domain.InventoryBatch, 0, len(batches))
	for _, batch := range batches {
		if batch.Status == domain.BatchExpired && batch.RemainingQuantity > 0 {
			expired = append(expired, batch)
		}
	}
	SortFIFO(expired)
	rest := walk(expired, alloc.Shortfall)
	alloc.Steps = append(alloc.Steps, rest.Steps...)
	alloc.Allocated += rest.Allocated
	alloc.Shortfall = rest.Shortfall
	return alloc
}

// Drain removes units for a negative adjustment. Unlike AllocateFIFO it also
// drains expired batches, since expired stock is still counted on hand until
// written off.
func Drain(batches []domain.InventoryBatch, needed int, policy DrainPolicy) Allocation {
	if policy == DrainNone || needed <= 0 {
		return Allocation{Shortfall: max(needed, 0)}
	}
	candidates := make([]domain.InventoryBatch, 0, len(batches))
	for _, batch := range batches {
		if batch.RemainingQuantity > 0 && batch.Status != domain.BatchExhausted {
			candidates = append(candidates, batch)
		}
	}
	SortFIFO(candidates)
	if policy == DrainNewest {
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
	}
	return walk(candidates, needed)
}

func walk(ordered []domain.InventoryBatch, needed int) Allocation {
	result := Allocation{}
	remaining := needed
	for _, batch := range ordered {
		if remaining <= 0 {
			break
		}
		take := min(batch.RemainingQuantity, remaining)
		if take <= 0 {
			continue
		}
		batch.RemainingQuantity -= take
		if batch.RemainingQuantity == 0 {
			batch.Status = domain.BatchExhausted
		}
		result.Steps = append(result.Steps, Step{Batch: batch, Quantity: take})
		result.Allocated += take
		remaining -= take
	}
	result.Shortfall = max(remaining, 0)
	return result
}
