package order

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrNotOwner            = errors.New("order belongs to another advertiser")
	ErrInvalidBudget       = errors.New("budget must be positive")
	ErrInvalidPeriod       = errors.New("end date must not precede start date")
	ErrInvalidTarget       = errors.New("daily target must be positive")
	ErrNotPending          = errors.New("order is not pending")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInternal            = errors.New("internal error")
)
