package domain

import (
	"fmt"
	"time"
)

// Intn is the random source used for human-readable code suffixes.
type Intn interface {
	IntN(n int) int
}

const (
	SupplierCodePrefix  = "SUP"
	CustomerCodePrefix  = "CUS"
	PurchaseOrderPrefix = "PO"
	SaleOrderPrefix     = "SO"
)

// PartyCode builds <PREFIX><YYYYMMDD><NNN>, e.g. SUP20240105042.
func PartyCode(prefix string, now time.Time, rnd Intn) string {
	return fmt.Sprintf("%s%s%03d", prefix, now.Format("20060102"), rnd.IntN(1000))
}

// OrderNo builds <PREFIX>-<YYYYMMDD>-<NNN>, e.g. PO-20240105-042.
func OrderNo(prefix string, now time.Time, rnd Intn) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, now.Format("20060102"), rnd.IntN(1000))
}
