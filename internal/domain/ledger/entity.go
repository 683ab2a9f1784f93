package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Reason tags why an entry changed a balance. Together with RefID it forms
// the idempotency key: at most one entry may exist per (reason, ref_id).
type Reason string

const (
	ReasonTopUp            Reason = "TOPUP"
	ReasonOrderCredit      Reason = "PRODUCT_ORDER_CREDIT"
	ReasonOrderBurn        Reason = "PRODUCT_ORDER_BURN"
	ReasonOrderPointsBurn  Reason = "PRODUCT_ORDER_POINTS_BURN"
	ReasonMissionReward    Reason = "MISSION_REWARD"
	ReasonExperienceReward Reason = "EXPERIENCE_REWARD"
	ReasonPayout           Reason = "PAYOUT"
	ReasonAdminAdjust      Reason = "ADMIN_ADJUST"
)

// ValidReason reports whether r is a known entry reason
func ValidReason(r Reason) bool {
	switch r {
	case ReasonTopUp, ReasonOrderCredit, ReasonOrderBurn, ReasonOrderPointsBurn,
		ReasonMissionReward, ReasonExperienceReward, ReasonPayout, ReasonAdminAdjust:
		return true
	}
	return false
}

// Entry is one immutable signed-amount record explaining a balance change.
// Entries are inserted once and never updated or deleted; an owner's balance
// is always the sum over their entries.
type Entry struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	OwnerID   uuid.UUID      `db:"owner_id" json:"owner_id"`
	AmountKRW int64          `db:"amount_krw" json:"amount_krw"`
	Reason    Reason         `db:"reason" json:"reason"`
	RefID     sql.NullString `db:"ref_id" json:"ref_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// NewEntry builds an entry with a fresh id. refID may be empty for
// entries that carry no idempotency key (e.g. free-form admin adjustments).
func NewEntry(ownerID uuid.UUID, amountKRW int64, reason Reason, refID string) *Entry {
	e := &Entry{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		AmountKRW: amountKRW,
		Reason:    reason,
	}
	if refID != "" {
		e.RefID = sql.NullString{String: refID, Valid: true}
	}
	return e
}
