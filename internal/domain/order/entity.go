package order

import (
	"time"

	"github.com/google/uuid"
)

// Status represents product order status
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusCanceled  Status = "canceled"
)

// ProductOrder is an advertiser's purchase of campaign capacity. Fulfillment
// turns it into a running campaign with per-day mission quotas.
type ProductOrder struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AdvertiserID  uuid.UUID `db:"advertiser_id" json:"advertiser_id"`
	CampaignTitle string    `db:"campaign_title" json:"campaign_title"`
	ProductName   string    `db:"product_name" json:"product_name"`
	BudgetKRW     int64     `db:"budget_krw" json:"budget_krw"`
	DailyTarget   int       `db:"daily_target" json:"daily_target"`
	RewardKRW     int64     `db:"reward_krw" json:"reward_krw"`
	StartDate     time.Time `db:"start_date" json:"start_date"`
	EndDate       time.Time `db:"end_date" json:"end_date"`
	Status        Status    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Days returns the number of calendar days the order covers, inclusive
func (o *ProductOrder) Days() int {
	start := o.StartDate.Truncate(24 * time.Hour)
	end := o.EndDate.Truncate(24 * time.Hour)
	return int(end.Sub(start).Hours()/24) + 1
}
