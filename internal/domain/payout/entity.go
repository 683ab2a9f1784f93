package payout

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents payout request status
type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected, StatusPaid},
	StatusApproved:  {StatusPaid, StatusRejected},
}

// CanTransitionTo reports whether the move from s to next is allowed
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Decidable reports whether an admin decision can still be applied
func (s Status) Decidable() bool {
	return s == StatusRequested || s == StatusApproved
}

// PayoutRequest is a member's request to convert balance into an external
// bank transfer. While requested or approved its amount counts as reserved
// against the member's available balance.
type PayoutRequest struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	MemberID      uuid.UUID      `db:"member_id" json:"member_id"`
	AmountKRW     int64          `db:"amount_krw" json:"amount_krw"`
	BankName      string         `db:"bank_name" json:"bank_name"`
	AccountNo     string         `db:"account_no" json:"account_no"`
	Status        Status         `db:"status" json:"status"`
	DecidedAt     sql.NullTime   `db:"decided_at" json:"decided_at,omitempty"`
	PaidAt        sql.NullTime   `db:"paid_at" json:"paid_at,omitempty"`
	FailureReason sql.NullString `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
