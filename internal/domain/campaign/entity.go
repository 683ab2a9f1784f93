package campaign

import (
	"time"

	"github.com/google/uuid"
)

// Status represents campaign status
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// Campaign is a running mission program created from a fulfilled product
// order. Its per-day capacity lives in mission day rows, not here.
type Campaign struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AdvertiserID uuid.UUID `db:"advertiser_id" json:"advertiser_id"`
	OrderID      uuid.UUID `db:"order_id" json:"order_id"`
	Title        string    `db:"title" json:"title"`
	ProductName  string    `db:"product_name" json:"product_name"`
	DailyTarget  int       `db:"daily_target" json:"daily_target"`
	RewardKRW    int64     `db:"reward_krw" json:"reward_krw"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ActiveListing is a member-facing view of an active campaign joined with
// today's remaining quota.
type ActiveListing struct {
	Campaign
	MissionDayID   uuid.UUID `db:"mission_day_id" json:"mission_day_id"`
	QuotaTotal     int       `db:"quota_total" json:"quota_total"`
	QuotaRemaining int       `db:"quota_remaining" json:"quota_remaining"`
}
