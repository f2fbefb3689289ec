package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrValidation              = errors.New("validation failed")
	ErrConflict                = errors.New("already exists")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInsufficientBatchStock  = errors.New("insufficient batch stock")
	ErrNegativeStock           = errors.New("stock cannot go negative")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOrderClosed             = errors.New("order is closed")
	ErrOrderHasMovements       = errors.New("order has received or shipped quantities")
	ErrProductInUse            = errors.New("product is referenced by the ledger")
	ErrPartyInUse              = errors.New("party is referenced by orders")
	ErrDuplicateCommand        = errors.New("idempotency key reused for a different command")
)
