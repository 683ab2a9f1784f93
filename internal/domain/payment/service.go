package payment

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/missionhub/missionhub-api/internal/domain/ledger"
	"github.com/missionhub/missionhub-api/internal/pkg/metrics"
)

// LedgerAppender is the slice of the ledger repository a confirmed top-up
// needs: appending the TOPUP entry inside the confirming transaction.
type LedgerAppender interface {
	AppendTx(ctx context.Context, tx *sqlx.Tx, e *ledger.Entry) error
}

// OrderFulfiller provisions the campaign for a paid product order.
// Fulfillment is idempotent on its own, so it runs after the payment
// transaction commits; a crash in between is healed by webhook redelivery.
type OrderFulfiller interface {
	Fulfill(ctx context.Context, orderID uuid.UUID) error
}

// Service handles payment business logic
type Service struct {
	repo      Repository
	ledgers   LedgerAppender
	ledgerSvc *ledger.Service
	orders    OrderFulfiller
}

// NewService creates payment service
func NewService(repo Repository, ledgers LedgerAppender, ledgerSvc *ledger.Service) *Service {
	return &Service{repo: repo, ledgers: ledgers, ledgerSvc: ledgerSvc}
}

// SetOrderService sets the order fulfiller (wired late to avoid a cycle)
func (s *Service) SetOrderService(orders OrderFulfiller) {
	s.orders = orders
}

// CreateTopUp registers a pending top-up payment for an advertiser
func (s *Service) CreateTopUp(ctx context.Context, ownerID uuid.UUID, amountKRW int64, provider, externalID string) (*Payment, error) {
	if amountKRW <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &Payment{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      TypeTopUp,
		AmountKRW: amountKRW,
		Currency:  "KRW",
		Status:    StatusPending,
	}
	if provider != "" {
		p.Provider = sql.NullString{String: provider, Valid: true}
	}
	if externalID != "" {
		p.ExternalID = sql.NullString{String: externalID, Valid: true}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateOrderPayment registers a pending payment funding a product order
func (s *Service) CreateOrderPayment(ctx context.Context, ownerID, orderID uuid.UUID, amountKRW int64, provider, externalID string) (*Payment, error) {
	if amountKRW <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &Payment{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		OrderID:   uuid.NullUUID{UUID: orderID, Valid: true},
		Type:      TypeOrder,
		AmountKRW: amountKRW,
		Currency:  "KRW",
		Status:    StatusPending,
	}
	if provider != "" {
		p.Provider = sql.NullString{String: provider, Valid: true}
	}
	if externalID != "" {
		p.ExternalID = sql.NullString{String: externalID, Valid: true}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Confirm finalises a payment after the provider reports success.
//
// Top-ups mark the payment paid and append the TOPUP ledger entry in one
// transaction; the conditional status update plus the ledger idempotency key
// make replays harmless. Order payments additionally trigger (idempotent)
// order fulfillment after commit.
func (s *Service) Confirm(ctx context.Context, paymentID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPaymentNotFound
	}
	if p.Status == StatusFailed {
		// A failed payment cannot be revived; the provider must open a new one.
		return nil
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	flipped, err := s.repo.MarkPaidTx(ctx, tx, p.ID)
	if err != nil {
		return err
	}

	if flipped && p.Type == TypeTopUp {
		entry := ledger.NewEntry(p.OwnerID, p.AmountKRW, ledger.ReasonTopUp, p.ID.String())
		if err := s.ledgers.AppendTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if flipped && p.Type == TypeTopUp && s.ledgerSvc != nil {
		s.ledgerSvc.InvalidateCache(ctx, p.OwnerID)
	}

	if p.Type == TypeOrder && p.OrderID.Valid && s.orders != nil {
		// Fulfillment is idempotent; running it on every confirmation
		// (including replays) heals a crash between commit and provisioning.
		if err := s.orders.Fulfill(ctx, p.OrderID.UUID); err != nil {
			return err
		}
	}

	if flipped {
		log.Info().
			Str("payment_id", p.ID.String()).
			Str("type", string(p.Type)).
			Int64("amount_krw", p.AmountKRW).
			Msg("payment confirmed")
	}
	return nil
}

// Fail marks a pending payment as failed
func (s *Service) Fail(ctx context.Context, paymentID uuid.UUID) error {
	return s.repo.MarkFailed(ctx, paymentID)
}

// HandleWebhook processes a provider callback. Delivery is at-least-once;
// every path is safe to replay.
func (s *Service) HandleWebhook(ctx context.Context, provider, externalID, status string) error {
	p, err := s.repo.GetByExternalID(ctx, provider, externalID)
	if err != nil {
		return err
	}
	if p == nil {
		log.Warn().Str("provider", provider).Str("external_id", externalID).Msg("payment not found for webhook")
		metrics.WebhookEvents.WithLabelValues(provider, "not_found").Inc()
		return ErrPaymentNotFound
	}

	switch status {
	case "success", "completed", "paid":
		metrics.WebhookEvents.WithLabelValues(provider, "confirmed").Inc()
		return s.Confirm(ctx, p.ID)
	case "failed", "cancelled", "declined":
		metrics.WebhookEvents.WithLabelValues(provider, "failed").Inc()
		return s.Fail(ctx, p.ID)
	default:
		log.Warn().Str("status", status).Msg("unknown payment status in webhook")
		metrics.WebhookEvents.WithLabelValues(provider, "unknown").Inc()
	}
	return nil
}

// History returns the owner's payments, newest first
func (s *Service) History(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Payment, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}
