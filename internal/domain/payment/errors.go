package payment

import "errors"

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrInvalidAmount   = errors.New("invalid amount: must be greater than 0")
	ErrInternal        = errors.New("internal error")
)
