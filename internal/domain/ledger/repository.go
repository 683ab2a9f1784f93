package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/missionhub/missionhub-api/internal/pkg/metrics"
)

const queryTimeout = 3 * time.Second

// Repository defines ledger data access. The Tx variants participate in a
// caller-owned transaction so appends can be atomic with the business-object
// writes they account for.
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	Append(ctx context.Context, e *Entry) error
	AppendTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error
	AppendMany(ctx context.Context, entries []*Entry) error
	AppendManyTx(ctx context.Context, tx *sqlx.Tx, entries []*Entry) error
	SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	SumByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (int64, error)
	ExistsByReasonRefTx(ctx context.Context, tx *sqlx.Tx, reason Reason, refID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Entry, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// LedgerRepository provides append-only ledger storage over PostgreSQL.
//
// Idempotency relies on the partial unique index on (reason, ref_id) where
// ref_id is not null; inserts use ON CONFLICT DO NOTHING so replaying the
// same logical operation never creates a second entry.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

const insertEntry = `
	INSERT INTO ledger_entries (id, owner_id, amount_krw, reason, ref_id)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (reason, ref_id) WHERE ref_id IS NOT NULL DO NOTHING
	RETURNING id, created_at
`

func (r *LedgerRepository) appendOne(ctx context.Context, q sqlx.ExtContext, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	err := q.QueryRowxContext(ctx, insertEntry, e.ID, e.OwnerID, e.AmountKRW, string(e.Reason), e.RefID).
		Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Replay: an entry with the same (reason, ref_id) already exists.
		// Resolve its identity so the caller sees the committed entry.
		metrics.LedgerReplays.Inc()
		return r.loadByReasonRef(ctx, q, e)
	}
	if err != nil {
		return fmt.Errorf("%w: append entry: %v", ErrInternal, err)
	}

	metrics.LedgerAppends.WithLabelValues(string(e.Reason)).Inc()
	return nil
}

func (r *LedgerRepository) loadByReasonRef(ctx context.Context, q sqlx.ExtContext, e *Entry) error {
	row := q.QueryRowxContext(ctx, `
		SELECT id, owner_id, amount_krw, created_at
		FROM ledger_entries
		WHERE reason = $1 AND ref_id = $2
	`, string(e.Reason), e.RefID)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.AmountKRW, &e.CreatedAt); err != nil {
		return fmt.Errorf("%w: load existing entry: %v", ErrInternal, err)
	}
	return nil
}

// Append inserts one entry. A single INSERT is atomic on its own, so no
// explicit transaction is required here.
func (r *LedgerRepository) Append(ctx context.Context, e *Entry) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.appendOne(ctx2, r.db, e)
}

// AppendTx inserts one entry within the caller's transaction
func (r *LedgerRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error {
	return r.appendOne(ctx, tx, e)
}

// AppendMany inserts a batch of entries atomically
func (r *LedgerRepository) AppendMany(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.BeginTxx(ctx2)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := r.AppendManyTx(ctx2, tx, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}
	return nil
}

// AppendManyTx inserts a batch within the caller's transaction with
// per-entry idempotency. All entries share the transaction, so partial
// application cannot survive a rollback.
func (r *LedgerRepository) AppendManyTx(ctx context.Context, tx *sqlx.Tx, entries []*Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	for _, e := range entries {
		if err := r.appendOne(ctx, tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *LedgerRepository) SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.sumByOwner(ctx2, r.db, ownerID)
}

func (r *LedgerRepository) SumByOwnerTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID) (int64, error) {
	return r.sumByOwner(ctx, tx, ownerID)
}

func (r *LedgerRepository) sumByOwner(ctx context.Context, q sqlx.QueryerContext, ownerID uuid.UUID) (int64, error) {
	var sum int64
	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount_krw), 0) FROM ledger_entries WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: sum entries: %v", ErrInternal, err)
	}
	return sum, nil
}

// ExistsByReasonRefTx reports whether an entry with the given idempotency
// key is already committed, as seen from within the caller's transaction.
func (r *LedgerRepository) ExistsByReasonRefTx(ctx context.Context, tx *sqlx.Tx, reason Reason, refID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE reason = $1 AND ref_id = $2)
	`, string(reason), refID)
	if err != nil {
		return false, fmt.Errorf("%w: check entry existence: %v", ErrInternal, err)
	}
	return exists, nil
}

func (r *LedgerRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	entries := make([]Entry, 0)
	err := r.db.SelectContext(ctx2, &entries, `
		SELECT id, owner_id, amount_krw, reason, ref_id, created_at
		FROM ledger_entries
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ErrInternal, err)
	}
	return entries, nil
}

func (r *LedgerRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx2, &count, `
		SELECT COUNT(*) FROM ledger_entries WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", ErrInternal, err)
	}
	return count, nil
}

var _ Repository = (*LedgerRepository)(nil)

// RefKey formats a composite reference id from parts, e.g. a team id plus a
// member id for per-member experience rewards.
func RefKey(parts ...string) string {
	return strings.Join(parts, ":")
}
