package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines product order data access
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, o *ProductOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProductOrder, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ProductOrder, error)
	MarkFulfilledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
	MarkCanceled(ctx context.Context, id uuid.UUID) (bool, error)
	ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*ProductOrder, error)
}

// OrderRepository implements Repository backed by Postgres
type OrderRepository struct {
	db *sqlx.DB
}

var _ Repository = (*OrderRepository)(nil)

// NewRepository creates order repository
func NewRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *OrderRepository) Create(ctx context.Context, o *ProductOrder) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO product_orders (
			id, advertiser_id, campaign_title, product_name, budget_krw,
			daily_target, reward_krw, start_date, end_date, status
		) VALUES (
			:id, :advertiser_id, :campaign_title, :product_name, :budget_krw,
			:daily_target, :reward_krw, :start_date, :end_date, :status
		)
		RETURNING created_at, updated_at`

	rows, err := r.db.NamedQueryContext(ctx, query, o)
	if err != nil {
		return fmt.Errorf("%w: create order: %v", ErrInternal, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("%w: scan order: %v", ErrInternal, err)
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*ProductOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o ProductOrder
	err := r.db.GetContext(ctx, &o, `SELECT * FROM product_orders WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %v", ErrInternal, err)
	}
	return &o, nil
}

// GetForUpdateTx locks the order row for the duration of the transaction
func (r *OrderRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ProductOrder, error) {
	var o ProductOrder
	err := tx.GetContext(ctx, &o, `SELECT * FROM product_orders WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock order: %v", ErrInternal, err)
	}
	return &o, nil
}

// MarkFulfilledTx flips a pending order to fulfilled. Returns false when the
// order was not pending, which callers treat as an idempotent replay.
func (r *OrderRepository) MarkFulfilledTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE product_orders
		SET status = 'fulfilled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("%w: mark fulfilled: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

func (r *OrderRepository) MarkCanceled(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE product_orders
		SET status = 'canceled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("%w: cancel order: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

func (r *OrderRepository) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*ProductOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	orders := []*ProductOrder{}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM product_orders
		WHERE advertiser_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, advertiserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrInternal, err)
	}
	return orders, nil
}
