package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const balanceCachePrefix = "ledger:balance:"

// Service derives balances from the append-only ledger.
//
// The authoritative balance is always the fold over committed entries.
// Redis holds an advisory copy for read-heavy surfaces (dashboards, campaign
// listings); it is never consulted for financial decisions.
type Service struct {
	repo     Repository
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewService creates ledger service. cache may be nil.
func NewService(repo Repository, cache *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// Balance returns the owner's current balance: the sum of all entries.
// The result is mirrored into the advisory cache.
func (s *Service) Balance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	sum, err := s.repo.SumByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	s.cacheBalance(ctx, ownerID, sum)
	return sum, nil
}

// AdvisoryBalance returns the cached balance when present, falling back to
// the authoritative fold. Callers must not make spend decisions on it.
func (s *Service) AdvisoryBalance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, balanceCachePrefix+ownerID.String()).Result()
		if err == nil {
			if cached, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
				return cached, nil
			}
		}
	}
	return s.Balance(ctx, ownerID)
}

// AvailableBalanceTx computes the owner's spendable balance inside the
// caller's transaction: the entry fold minus amounts already promised but
// not yet settled. Re-evaluating this immediately before inserting a debit,
// in the same transaction, is what prevents double-spending.
func (s *Service) AvailableBalanceTx(ctx context.Context, tx *sqlx.Tx, ownerID uuid.UUID, pendingReserved int64) (int64, error) {
	sum, err := s.repo.SumByOwnerTx(ctx, tx, ownerID)
	if err != nil {
		return 0, err
	}
	return sum - pendingReserved, nil
}

// Append validates and inserts one entry
func (s *Service) Append(ctx context.Context, e *Entry) error {
	if e.AmountKRW == 0 {
		return ErrInvalidAmount
	}
	if !ValidReason(e.Reason) {
		return ErrInvalidReason
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return err
	}
	s.invalidate(ctx, e.OwnerID)
	log.Info().
		Str("owner_id", e.OwnerID.String()).
		Int64("amount_krw", e.AmountKRW).
		Str("reason", string(e.Reason)).
		Str("ref_id", e.RefID.String).
		Msg("ledger entry appended")
	return nil
}

// AppendMany validates and inserts a batch atomically
func (s *Service) AppendMany(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return ErrEmptyBatch
	}
	for _, e := range entries {
		if e.AmountKRW == 0 {
			return ErrInvalidAmount
		}
		if !ValidReason(e.Reason) {
			return ErrInvalidReason
		}
	}
	if err := s.repo.AppendMany(ctx, entries); err != nil {
		return err
	}
	for _, e := range entries {
		s.invalidate(ctx, e.OwnerID)
	}
	return nil
}

// Adjust records a signed admin adjustment against an owner's balance.
// refID is optional; when present it makes the adjustment replay-safe.
func (s *Service) Adjust(ctx context.Context, ownerID uuid.UUID, amountKRW int64, refID string) (*Entry, error) {
	if amountKRW == 0 {
		return nil, ErrInvalidAmount
	}
	e := NewEntry(ownerID, amountKRW, ReasonAdminAdjust, refID)
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID)
	log.Info().
		Str("owner_id", ownerID.String()).
		Int64("amount_krw", amountKRW).
		Str("ref_id", refID).
		Msg("admin ledger adjustment applied")
	return e, nil
}

// ListEntries returns the owner's entry history, newest first
func (s *Service) ListEntries(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Entry, int, error) {
	entries, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// InvalidateCache drops the advisory cached balance after out-of-band
// appends (orchestrators writing through the repository's Tx API).
func (s *Service) InvalidateCache(ctx context.Context, ownerID uuid.UUID) {
	s.invalidate(ctx, ownerID)
}

func (s *Service) cacheBalance(ctx context.Context, ownerID uuid.UUID, balance int64) {
	if s.cache == nil {
		return
	}
	key := balanceCachePrefix + ownerID.String()
	if err := s.cache.Set(ctx, key, fmt.Sprintf("%d", balance), s.cacheTTL).Err(); err != nil {
		log.Debug().Err(err).Str("owner_id", ownerID.String()).Msg("advisory balance cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, ownerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, balanceCachePrefix+ownerID.String()).Err(); err != nil {
		log.Debug().Err(err).Str("owner_id", ownerID.String()).Msg("advisory balance cache invalidation failed")
	}
}
