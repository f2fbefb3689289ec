package ledger

import (
	"fmt"
	"strings"
)

// ShortfallPolicy decides what a shipment does when its product's active
// batches cannot cover the shipped quantity.
type ShortfallPolicy string

const (
	ShortfallReject    ShortfallPolicy = "reject"
	ShortfallBackorder ShortfallPolicy = "backorder"
)

func ParseShortfallPolicy(raw string) (ShortfallPolicy, error) {
	switch ShortfallPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ShortfallReject:
		return ShortfallReject, nil
	case ShortfallBackorder:
		return ShortfallBackorder, nil
	}
	return "", fmt.Errorf("invalid shortfall policy %q (want reject or backorder)", raw)
}

// DrainPolicy decides which batches a negative adjustment is taken from.
// DrainNone leaves batches untouched and breaks the stock == sum(remaining)
// invariant; it exists to reproduce the legacy ledger.
type DrainPolicy string

const (
	DrainFIFO   DrainPolicy = "fifo"
	DrainNewest DrainPolicy = "newest"
	DrainNone   DrainPolicy = "none"
)

func ParseDrainPolicy(raw string) (DrainPolicy, error) {
	switch DrainPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DrainFIFO:
		return DrainFIFO, nil
	case DrainNewest:
		return DrainNewest, nil
	case DrainNone:
		return DrainNone, nil
	}
	return "", fmt.Errorf("invalid adjust drain policy %q (want fifo, newest or none)", raw)
}
