package payout

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/missionhub/missionhub-api/internal/domain/ledger"
	"github.com/missionhub/missionhub-api/internal/pkg/metrics"
)

const insufficientReason = "insufficient balance at approval time"

// Ledger is the slice of the ledger repository payout decisions need
type Ledger interface {
	AppendTx(ctx context.Context, tx *sqlx.Tx, e *ledger.Entry) error
	ExistsByReasonRefTx(ctx context.Context, tx *sqlx.Tx, reason ledger.Reason, refID string) (bool, error)
	SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	SumByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (int64, error)
}

// Publisher pushes payout feed events to connected admins
type Publisher interface {
	Broadcast(event any)
}

// RequestEvent is what the admin feed receives when a member requests a payout
type RequestEvent struct {
	Type      string    `json:"type"`
	PayoutID  uuid.UUID `json:"payout_id"`
	MemberID  uuid.UUID `json:"member_id"`
	AmountKRW int64     `json:"amount_krw"`
}

// Service handles payout business logic
type Service struct {
	repo      Repository
	ledgers   Ledger
	ledgerSvc *ledger.Service
	feed      Publisher
}

// NewService creates payout service
func NewService(repo Repository, ledgers Ledger, ledgerSvc *ledger.Service) *Service {
	return &Service{repo: repo, ledgers: ledgers, ledgerSvc: ledgerSvc}
}

// SetPublisher sets the admin feed publisher
func (s *Service) SetPublisher(feed Publisher) {
	s.feed = feed
}

// Request opens a payout request. The balance check here is advisory; the
// binding check happens inside the approval transaction.
func (s *Service) Request(ctx context.Context, memberID uuid.UUID, amountKRW int64, bankName, accountNo string) (*PayoutRequest, error) {
	if amountKRW <= 0 {
		return nil, ErrInvalidAmount
	}

	balance, err := s.ledgers.SumByOwner(ctx, memberID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.SumPending(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if amountKRW > balance-pending {
		return nil, ErrInsufficientBalance
	}

	p := &PayoutRequest{
		ID:        uuid.New(),
		MemberID:  memberID,
		AmountKRW: amountKRW,
		BankName:  bankName,
		AccountNo: accountNo,
		Status:    StatusRequested,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	if s.feed != nil {
		s.feed.Broadcast(RequestEvent{
			Type:      "payout_requested",
			PayoutID:  p.ID,
			MemberID:  p.MemberID,
			AmountKRW: p.AmountKRW,
		})
	}
	return p, nil
}

// Approve decides a payout inside one transaction: re-read with a row lock,
// guard against a replayed decision via the existing ledger entry, recompute
// the available balance excluding this request, then either debit and mark
// paid or mark rejected with the reason. Insufficient balance is a normal
// terminal outcome, not an error.
func (s *Service) Approve(ctx context.Context, payoutID uuid.UUID) (*PayoutRequest, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetForUpdateTx(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPayoutNotFound
	}
	if !p.Status.Decidable() {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()

	paidBefore, err := s.ledgers.ExistsByReasonRefTx(ctx, tx, ledger.ReasonPayout, p.ID.String())
	if err != nil {
		return nil, err
	}
	if paidBefore {
		// The debit landed on an earlier attempt that died before the
		// status write. Finish the status transition only.
		s.markPaid(p, now)
		if err := s.repo.UpdateTx(ctx, tx, p); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		metrics.PayoutDecisions.WithLabelValues("replayed").Inc()
		return p, nil
	}

	balance, err := s.ledgers.SumByOwnerTx(ctx, tx, p.MemberID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.SumPendingTx(ctx, tx, p.MemberID, p.ID)
	if err != nil {
		return nil, err
	}
	available := balance - pending

	if available < p.AmountKRW {
		p.Status = StatusRejected
		p.DecidedAt = sql.NullTime{Time: now, Valid: true}
		p.FailureReason = sql.NullString{String: insufficientReason, Valid: true}
		if err := s.repo.UpdateTx(ctx, tx, p); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		metrics.PayoutDecisions.WithLabelValues("rejected").Inc()
		log.Info().
			Str("payout_id", p.ID.String()).
			Int64("available_krw", available).
			Int64("amount_krw", p.AmountKRW).
			Msg("payout rejected for insufficient balance")
		return p, nil
	}

	entry := ledger.NewEntry(p.MemberID, -p.AmountKRW, ledger.ReasonPayout, p.ID.String())
	if err := s.ledgers.AppendTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	s.markPaid(p, now)
	if err := s.repo.UpdateTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.ledgerSvc != nil {
		s.ledgerSvc.InvalidateCache(ctx, p.MemberID)
	}

	metrics.PayoutDecisions.WithLabelValues("paid").Inc()
	log.Info().
		Str("payout_id", p.ID.String()).
		Int64("amount_krw", p.AmountKRW).
		Msg("payout paid")
	return p, nil
}

func (s *Service) markPaid(p *PayoutRequest, now time.Time) {
	p.Status = StatusPaid
	p.DecidedAt = sql.NullTime{Time: now, Valid: true}
	p.PaidAt = sql.NullTime{Time: now, Valid: true}
}

// Reject declines a requested or approved payout with a reason
func (s *Service) Reject(ctx context.Context, payoutID uuid.UUID, reason string) (*PayoutRequest, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetForUpdateTx(ctx, tx, payoutID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPayoutNotFound
	}
	if !p.Status.CanTransitionTo(StatusRejected) {
		return nil, ErrInvalidTransition
	}

	p.Status = StatusRejected
	p.DecidedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if reason != "" {
		p.FailureReason = sql.NullString{String: reason, Valid: true}
	}
	if err := s.repo.UpdateTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID returns a payout owned by the member
func (s *Service) GetByID(ctx context.Context, memberID, payoutID uuid.UUID) (*PayoutRequest, error) {
	p, err := s.repo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPayoutNotFound
	}
	if p.MemberID != memberID {
		return nil, ErrNotOwner
	}
	return p, nil
}

// ListMine returns the member's payout requests, newest first
func (s *Service) ListMine(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*PayoutRequest, error) {
	return s.repo.ListByMember(ctx, memberID, limit, offset)
}

// ListByStatus returns the admin queue for one status, oldest first
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*PayoutRequest, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}
