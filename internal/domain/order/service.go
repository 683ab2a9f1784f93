package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/missionhub/missionhub-api/internal/domain/ledger"
)

// Ledger is the slice of the ledger repository fulfillment needs
type Ledger interface {
	AppendTx(ctx context.Context, tx *sqlx.Tx, e *ledger.Entry) error
	AppendManyTx(ctx context.Context, tx *sqlx.Tx, entries []*ledger.Entry) error
	SumByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (int64, error)
}

// CampaignProvisioner creates or extends the campaign backing a fulfilled order
type CampaignProvisioner interface {
	EnsureForOrderTx(ctx context.Context, tx *sqlx.Tx, advertiserID, orderID uuid.UUID,
		title, productName string, dailyTarget int, rewardKRW int64, start, end time.Time) (uuid.UUID, error)
}

// MissionProvisioner inserts the per-day quota rows for a campaign period
type MissionProvisioner interface {
	CreateDaysTx(ctx context.Context, tx *sqlx.Tx, campaignID uuid.UUID, start, end time.Time, dailyTarget int) error
}

// Service handles product order business logic
type Service struct {
	repo      Repository
	ledgers   Ledger
	campaigns CampaignProvisioner
	missions  MissionProvisioner
}

// NewService creates order service
func NewService(repo Repository, ledgers Ledger, campaigns CampaignProvisioner, missions MissionProvisioner) *Service {
	return &Service{repo: repo, ledgers: ledgers, campaigns: campaigns, missions: missions}
}

// Create registers a pending product order for an advertiser
func (s *Service) Create(ctx context.Context, advertiserID uuid.UUID, title, productName string,
	budgetKRW int64, dailyTarget int, rewardKRW int64, start, end time.Time) (*ProductOrder, error) {
	if budgetKRW <= 0 {
		return nil, ErrInvalidBudget
	}
	if dailyTarget <= 0 {
		return nil, ErrInvalidTarget
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	o := &ProductOrder{
		ID:            uuid.New(),
		AdvertiserID:  advertiserID,
		CampaignTitle: title,
		ProductName:   productName,
		BudgetKRW:     budgetKRW,
		DailyTarget:   dailyTarget,
		RewardKRW:     rewardKRW,
		StartDate:     start,
		EndDate:       end,
		Status:        StatusPending,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Fulfill provisions the campaign for a paid order. The whole operation is
// one transaction and is safe to replay: the conditional status flip
// short-circuits, and every write below it carries an idempotency guard.
func (s *Service) Fulfill(ctx context.Context, orderID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrOrderNotFound
	}

	if err := s.fulfillTx(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

// PayWithPoints funds a pending order from the advertiser's balance and
// fulfills it in the same transaction. The balance is re-read inside the
// transaction immediately before the debit.
func (s *Service) PayWithPoints(ctx context.Context, advertiserID, orderID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	o, err := s.repo.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrOrderNotFound
	}
	if o.AdvertiserID != advertiserID {
		return ErrNotOwner
	}
	if o.Status != StatusPending {
		return ErrNotPending
	}

	balance, err := s.ledgers.SumByOwnerTx(ctx, tx, advertiserID)
	if err != nil {
		return err
	}
	if balance < o.BudgetKRW {
		return ErrInsufficientBalance
	}

	burn := ledger.NewEntry(advertiserID, -o.BudgetKRW, ledger.ReasonOrderPointsBurn, o.ID.String())
	if err := s.ledgers.AppendTx(ctx, tx, burn); err != nil {
		return err
	}

	if err := s.fulfillTx(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) fulfillTx(ctx context.Context, tx *sqlx.Tx, o *ProductOrder) error {
	flipped, err := s.repo.MarkFulfilledTx(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	if !flipped {
		// Already fulfilled by an earlier delivery of the same confirmation.
		return nil
	}

	// Net-zero pair recorded for audit transparency.
	pair := []*ledger.Entry{
		ledger.NewEntry(o.AdvertiserID, o.BudgetKRW, ledger.ReasonOrderCredit, o.ID.String()),
		ledger.NewEntry(o.AdvertiserID, -o.BudgetKRW, ledger.ReasonOrderBurn, o.ID.String()),
	}
	if err := s.ledgers.AppendManyTx(ctx, tx, pair); err != nil {
		return err
	}

	campaignID, err := s.campaigns.EnsureForOrderTx(ctx, tx, o.AdvertiserID, o.ID,
		o.CampaignTitle, o.ProductName, o.DailyTarget, o.RewardKRW, o.StartDate, o.EndDate)
	if err != nil {
		return err
	}

	if err := s.missions.CreateDaysTx(ctx, tx, campaignID, o.StartDate, o.EndDate, o.DailyTarget); err != nil {
		return err
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("campaign_id", campaignID.String()).
		Int64("budget_krw", o.BudgetKRW).
		Int("days", o.Days()).
		Msg("order fulfilled")
	return nil
}

// Cancel voids a pending order
func (s *Service) Cancel(ctx context.Context, advertiserID, orderID uuid.UUID) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return ErrOrderNotFound
	}
	if o.AdvertiserID != advertiserID {
		return ErrNotOwner
	}

	flipped, err := s.repo.MarkCanceled(ctx, orderID)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrNotPending
	}
	return nil
}

// GetByID returns an order owned by the advertiser
func (s *Service) GetByID(ctx context.Context, advertiserID, orderID uuid.UUID) (*ProductOrder, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.AdvertiserID != advertiserID {
		return nil, ErrNotOwner
	}
	return o, nil
}

// ListByAdvertiser returns the advertiser's orders, newest first
func (s *Service) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*ProductOrder, error) {
	return s.repo.ListByAdvertiser(ctx, advertiserID, limit, offset)
}
