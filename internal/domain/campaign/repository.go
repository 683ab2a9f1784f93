package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines campaign data access
type Repository interface {
	EnsureForOrderTx(ctx context.Context, tx *sqlx.Tx, advertiserID, orderID uuid.UUID,
		title, productName string, dailyTarget int, rewardKRW int64, start, end time.Time) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	ListActiveToday(ctx context.Context, today time.Time, limit, offset int) ([]*ActiveListing, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	EndFinished(ctx context.Context, today time.Time) (int64, error)
}

// CampaignRepository implements Repository backed by Postgres
type CampaignRepository struct {
	db *sqlx.DB
}

var _ Repository = (*CampaignRepository)(nil)

// NewRepository creates campaign repository
func NewRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// EnsureForOrderTx creates the campaign for an order, or extends the period
// of the existing one when the same advertiser re-orders. One campaign per
// order id.
func (r *CampaignRepository) EnsureForOrderTx(ctx context.Context, tx *sqlx.Tx, advertiserID, orderID uuid.UUID,
	title, productName string, dailyTarget int, rewardKRW int64, start, end time.Time) (uuid.UUID, error) {

	var existing Campaign
	err := tx.GetContext(ctx, &existing, `SELECT * FROM campaigns WHERE order_id = $1 FOR UPDATE`, orderID)
	switch {
	case err == sql.ErrNoRows:
		id := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO campaigns (
				id, advertiser_id, order_id, title, product_name,
				daily_target, reward_krw, start_date, end_date, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')`,
			id, advertiserID, orderID, title, productName, dailyTarget, rewardKRW, start, end)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: create campaign: %v", ErrInternal, err)
		}
		return id, nil
	case err != nil:
		return uuid.Nil, fmt.Errorf("%w: get campaign by order: %v", ErrInternal, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE campaigns
		SET start_date = LEAST(start_date, $2),
		    end_date = GREATEST(end_date, $3),
		    updated_at = NOW()
		WHERE id = $1`, existing.ID, start, end)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: extend campaign: %v", ErrInternal, err)
	}
	return existing.ID, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Campaign
	err := r.db.GetContext(ctx, &c, `SELECT * FROM campaigns WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get campaign: %v", ErrInternal, err)
	}
	return &c, nil
}

// ListActiveToday returns active campaigns joined with today's mission day
func (r *CampaignRepository) ListActiveToday(ctx context.Context, today time.Time, limit, offset int) ([]*ActiveListing, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	listings := []*ActiveListing{}
	err := r.db.SelectContext(ctx, &listings, `
		SELECT c.*,
		       m.id AS mission_day_id,
		       m.quota_total,
		       m.quota_remaining
		FROM campaigns c
		JOIN mission_days m ON m.campaign_id = c.id AND m.mission_date = $1
		WHERE c.status = 'active' AND m.status = 'active'
		ORDER BY c.created_at DESC
		LIMIT $2 OFFSET $3`, today, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list active campaigns: %v", ErrInternal, err)
	}
	return listings, nil
}

func (r *CampaignRepository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	campaigns := []*Campaign{}
	err := r.db.SelectContext(ctx, &campaigns, `
		SELECT * FROM campaigns
		WHERE advertiser_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, advertiserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list campaigns: %v", ErrInternal, err)
	}
	return campaigns, nil
}

// UpdateStatus flips a campaign from one status to another, guarded so
// concurrent flips cannot race.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("%w: update campaign status: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

// EndFinished marks active campaigns whose period has passed as ended
func (r *CampaignRepository) EndFinished(ctx context.Context, today time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = 'ended', updated_at = NOW()
		WHERE status = 'active' AND end_date < $1`, today)
	if err != nil {
		return 0, fmt.Errorf("%w: end finished campaigns: %v", ErrInternal, err)
	}
	return res.RowsAffected()
}
