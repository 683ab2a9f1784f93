package mission

import "errors"

var (
	ErrDayNotFound           = errors.New("mission day not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrQuotaExhausted        = errors.New("mission quota exhausted")
	ErrAlreadyJoined         = errors.New("already participating in this mission day")
	ErrNotOwner              = errors.New("participation belongs to another member")
	ErrInvalidTransition     = errors.New("invalid participation state transition")
	ErrParticipationExpired  = errors.New("participation deadline has passed")
	ErrInternal              = errors.New("internal error")
)
