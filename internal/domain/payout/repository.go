package payout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines payout request data access
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, p *PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*PayoutRequest, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*PayoutRequest, error)
	SumPending(ctx context.Context, memberID uuid.UUID) (int64, error)
	SumPendingTx(ctx context.Context, tx *sqlx.Tx, memberID, excludeID uuid.UUID) (int64, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, p *PayoutRequest) error
	ListByMember(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*PayoutRequest, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*PayoutRequest, error)
}

// PayoutRepository implements Repository backed by Postgres
type PayoutRepository struct {
	db *sqlx.DB
}

var _ Repository = (*PayoutRepository)(nil)

// NewRepository creates payout repository
func NewRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *PayoutRepository) Create(ctx context.Context, p *PayoutRequest) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO payout_requests (
			id, member_id, amount_krw, bank_name, account_no, status
		) VALUES (
			:id, :member_id, :amount_krw, :bank_name, :account_no, :status
		)`, p)
	if err != nil {
		return fmt.Errorf("%w: create payout: %v", ErrInternal, err)
	}
	return nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*PayoutRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p PayoutRequest
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payout_requests WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payout: %v", ErrInternal, err)
	}
	return &p, nil
}

// GetForUpdateTx locks the payout row so concurrent approvals serialize
func (r *PayoutRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*PayoutRequest, error) {
	var p PayoutRequest
	err := tx.GetContext(ctx, &p, `SELECT * FROM payout_requests WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock payout: %v", ErrInternal, err)
	}
	return &p, nil
}

// SumPending totals the member's requested and approved payout amounts
func (r *PayoutRepository) SumPending(ctx context.Context, memberID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.sumPending(ctx, r.db, memberID, uuid.Nil)
}

// SumPendingTx is SumPending inside a transaction, excluding one request.
// The approval flow excludes the payout being decided so its own reservation
// does not count against itself.
func (r *PayoutRepository) SumPendingTx(ctx context.Context, tx *sqlx.Tx, memberID, excludeID uuid.UUID) (int64, error) {
	return r.sumPending(ctx, tx, memberID, excludeID)
}

func (r *PayoutRepository) sumPending(ctx context.Context, q sqlx.QueryerContext, memberID, excludeID uuid.UUID) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, q, &total, `
		SELECT COALESCE(SUM(amount_krw), 0)
		FROM payout_requests
		WHERE member_id = $1
		  AND status IN ('requested', 'approved')
		  AND id <> $2`, memberID, excludeID)
	if err != nil {
		return 0, fmt.Errorf("%w: sum pending payouts: %v", ErrInternal, err)
	}
	return total, nil
}

func (r *PayoutRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, p *PayoutRequest) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE payout_requests
		SET status = :status,
		    decided_at = :decided_at,
		    paid_at = :paid_at,
		    failure_reason = :failure_reason,
		    updated_at = NOW()
		WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("%w: update payout: %v", ErrInternal, err)
	}
	return nil
}

func (r *PayoutRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*PayoutRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payouts := []*PayoutRequest{}
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payout_requests
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payouts: %v", ErrInternal, err)
	}
	return payouts, nil
}

func (r *PayoutRepository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*PayoutRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payouts := []*PayoutRequest{}
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payout_requests
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payouts by status: %v", ErrInternal, err)
	}
	return payouts, nil
}
