package payout

import "errors"

var (
	ErrPayoutNotFound      = errors.New("payout request not found")
	ErrNotOwner            = errors.New("payout request belongs to another member")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInvalidTransition   = errors.New("invalid payout state transition")
	ErrInternal            = errors.New("internal error")
)
