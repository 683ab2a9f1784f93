package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines payment data access
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*Payment, error)
	MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Payment, error)
}

type PaymentRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *PaymentRepository) Create(ctx context.Context, p *Payment) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO payments (id, owner_id, order_id, type, amount_krw, currency, status, provider, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.OwnerID, p.OrderID, string(p.Type), p.AmountKRW, p.Currency, string(p.Status), p.Provider, p.ExternalID)
	if err != nil {
		return fmt.Errorf("%w: create payment: %v", ErrInternal, err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payment: %v", ErrInternal, err)
	}
	return &p, nil
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `
		SELECT * FROM payments WHERE provider = $1 AND external_id = $2
	`, provider, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payment by external id: %v", ErrInternal, err)
	}
	return &p, nil
}

// MarkPaidTx flips a pending payment to paid. The status guard in the WHERE
// clause makes confirmation replay-safe: a second confirmation affects zero
// rows and the caller short-circuits.
func (r *PaymentRepository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'paid', paid_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("%w: mark payment paid: %v", ErrInternal, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return rows == 1, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE payments
		SET status = 'failed', failed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("%w: mark payment failed: %v", ErrInternal, err)
	}
	return nil
}

func (r *PaymentRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	payments := make([]*Payment, 0)
	err := r.db.SelectContext(ctx2, &payments, `
		SELECT * FROM payments
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments: %v", ErrInternal, err)
	}
	return payments, nil
}

var _ Repository = (*PaymentRepository)(nil)
