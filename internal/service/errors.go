package service

import "errors"

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotDraft      = errors.New("order is not in draft state")
	ErrOrderFinished      = errors.New("order already reached a terminal state")
	ErrQuantityInvalid    = errors.New("quantity must be > 0")
	ErrSoldOut            = errors.New("sold out")
	ErrPaymentUnavailable = errors.New("payment system unavailable")
)
