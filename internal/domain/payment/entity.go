package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents payment status
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Type distinguishes what a payment funds
type Type string

const (
	// TypeTopUp funds an advertiser's budget balance directly
	TypeTopUp Type = "topup"
	// TypeOrder pays for a product order; fulfillment provisions the campaign
	TypeOrder Type = "order"
)

// Payment represents one inbound payment from the provider
type Payment struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	OwnerID    uuid.UUID      `db:"owner_id" json:"owner_id"`
	OrderID    uuid.NullUUID  `db:"order_id" json:"order_id,omitempty"`
	Type       Type           `db:"type" json:"type"`
	AmountKRW  int64          `db:"amount_krw" json:"amount_krw"`
	Currency   string         `db:"currency" json:"currency"`
	Status     Status         `db:"status" json:"status"`
	Provider   sql.NullString `db:"provider" json:"provider,omitempty"`
	ExternalID sql.NullString `db:"external_id" json:"external_id,omitempty"`
	PaidAt     sql.NullTime   `db:"paid_at" json:"paid_at,omitempty"`
	FailedAt   sql.NullTime   `db:"failed_at" json:"failed_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// IsPaid checks if the payment has been confirmed
func (p *Payment) IsPaid() bool {
	return p.Status == StatusPaid
}
