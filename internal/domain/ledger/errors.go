package ledger

import "errors"

var (
	// ErrInvalidAmount is returned when amount is zero
	ErrInvalidAmount = errors.New("invalid amount: must be non-zero")

	// ErrInvalidReason is returned for an unknown entry reason
	ErrInvalidReason = errors.New("invalid ledger reason")

	// ErrEmptyBatch is returned when appendMany receives no entries
	ErrEmptyBatch = errors.New("empty ledger batch")

	ErrInternal = errors.New("internal error")
)
