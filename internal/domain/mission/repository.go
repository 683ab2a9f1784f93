package mission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository defines mission day and participation data access
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)

	CreateDaysTx(ctx context.Context, tx *sqlx.Tx, campaignID uuid.UUID, start, end time.Time, dailyTarget int) error
	GetDayByID(ctx context.Context, id uuid.UUID) (*MissionDay, error)
	ClaimSlotTx(ctx context.Context, tx *sqlx.Tx, dayID uuid.UUID) (bool, error)
	ReleaseSlotTx(ctx context.Context, tx *sqlx.Tx, participationID, dayID uuid.UUID) (bool, error)
	ClosePastDays(ctx context.Context, today time.Time) (int64, error)

	CreateParticipationTx(ctx context.Context, tx *sqlx.Tx, p *Participation) error
	GetParticipation(ctx context.Context, id uuid.UUID) (*Participation, error)
	GetParticipationForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Participation, error)
	HasActiveParticipationTx(ctx context.Context, tx *sqlx.Tx, dayID, memberID uuid.UUID) (bool, error)
	UpdateParticipationTx(ctx context.Context, tx *sqlx.Tx, p *Participation) error
	RewardForParticipationTx(ctx context.Context, tx *sqlx.Tx, participationID uuid.UUID) (ownerID uuid.UUID, rewardKRW int64, err error)
	ListByMember(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*Participation, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]*Participation, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Participation, error)
}

// MissionRepository implements Repository backed by Postgres
type MissionRepository struct {
	db *sqlx.DB
}

var _ Repository = (*MissionRepository)(nil)

// NewRepository creates mission repository
func NewRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

func (r *MissionRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// CreateDaysTx inserts one quota row per covered calendar day. Re-running
// for the same period is a no-op per day.
func (r *MissionRepository) CreateDaysTx(ctx context.Context, tx *sqlx.Tx, campaignID uuid.UUID, start, end time.Time, dailyTarget int) error {
	const query = `
		INSERT INTO mission_days (id, campaign_id, mission_date, quota_total, quota_remaining, status)
		VALUES ($1, $2, $3, $4, $4, 'active')
		ON CONFLICT (campaign_id, mission_date) DO NOTHING`

	day := start.Truncate(24 * time.Hour)
	last := end.Truncate(24 * time.Hour)
	for !day.After(last) {
		if _, err := tx.ExecContext(ctx, query, uuid.New(), campaignID, day, dailyTarget); err != nil {
			return fmt.Errorf("%w: create mission day: %v", ErrInternal, err)
		}
		day = day.AddDate(0, 0, 1)
	}
	return nil
}

func (r *MissionRepository) GetDayByID(ctx context.Context, id uuid.UUID) (*MissionDay, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var d MissionDay
	err := r.db.GetContext(ctx, &d, `SELECT * FROM mission_days WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get mission day: %v", ErrInternal, err)
	}
	return &d, nil
}

// ClaimSlotTx atomically takes one slot from the day. The WHERE clause is the
// whole guard: a day without remaining quota, a closed day, or a non-active
// campaign all leave zero rows affected.
func (r *MissionRepository) ClaimSlotTx(ctx context.Context, tx *sqlx.Tx, dayID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE mission_days m
		SET quota_remaining = m.quota_remaining - 1
		FROM campaigns c
		WHERE m.id = $1
		  AND m.quota_remaining > 0
		  AND m.status = 'active'
		  AND c.id = m.campaign_id
		  AND c.status = 'active'`, dayID)
	if err != nil {
		return false, fmt.Errorf("%w: claim slot: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

// ReleaseSlotTx returns a claimed slot to the day. The slot_released flag
// makes a retried release a no-op, and LEAST clamps remaining at total.
// Returns whether this call actually released the slot.
func (r *MissionRepository) ReleaseSlotTx(ctx context.Context, tx *sqlx.Tx, participationID, dayID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE participations
		SET slot_released = TRUE, updated_at = NOW()
		WHERE id = $1 AND slot_released = FALSE`, participationID)
	if err != nil {
		return false, fmt.Errorf("%w: flag slot released: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE mission_days
		SET quota_remaining = LEAST(quota_total, quota_remaining + 1)
		WHERE id = $1`, dayID)
	if err != nil {
		return false, fmt.Errorf("%w: release slot: %v", ErrInternal, err)
	}
	return true, nil
}

// ClosePastDays closes active mission days for dates before today
func (r *MissionRepository) ClosePastDays(ctx context.Context, today time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE mission_days
		SET status = 'closed'
		WHERE status = 'active' AND mission_date < $1`, today)
	if err != nil {
		return 0, fmt.Errorf("%w: close past days: %v", ErrInternal, err)
	}
	return res.RowsAffected()
}

// CreateParticipationTx inserts the participation. The partial unique index
// on (mission_day_id, member_id) over non-terminal statuses is the binding
// one-active-participation guard; a violation here means a concurrent join
// for the same member won the race.
func (r *MissionRepository) CreateParticipationTx(ctx context.Context, tx *sqlx.Tx, p *Participation) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO participations (
			id, mission_day_id, member_id, status, expires_at, slot_released
		) VALUES (
			:id, :mission_day_id, :member_id, :status, :expires_at, :slot_released
		)`, p)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("%w: create participation: %v", ErrInternal, err)
	}
	return nil
}

func (r *MissionRepository) GetParticipation(ctx context.Context, id uuid.UUID) (*Participation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Participation
	err := r.db.GetContext(ctx, &p, `SELECT * FROM participations WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get participation: %v", ErrInternal, err)
	}
	return &p, nil
}

// GetParticipationForUpdateTx locks the participation row so concurrent
// transitions serialize on it.
func (r *MissionRepository) GetParticipationForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Participation, error) {
	var p Participation
	err := tx.GetContext(ctx, &p, `SELECT * FROM participations WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock participation: %v", ErrInternal, err)
	}
	return &p, nil
}

// HasActiveParticipationTx reports whether the member already holds a
// non-terminal participation on the day. Advisory fast path; the partial
// unique index enforced at insert is the binding guard.
func (r *MissionRepository) HasActiveParticipationTx(ctx context.Context, tx *sqlx.Tx, dayID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM participations
			WHERE mission_day_id = $1
			  AND member_id = $2
			  AND status IN ('in_progress', 'pending_review', 'manual_review')
		)`, dayID, memberID)
	if err != nil {
		return false, fmt.Errorf("%w: check active participation: %v", ErrInternal, err)
	}
	return exists, nil
}

func (r *MissionRepository) UpdateParticipationTx(ctx context.Context, tx *sqlx.Tx, p *Participation) error {
	_, err := tx.NamedExecContext(ctx, `
		UPDATE participations
		SET status = :status,
		    submitted_at = :submitted_at,
		    decided_at = :decided_at,
		    evidence_url = :evidence_url,
		    evidence_note = :evidence_note,
		    failure_reason = :failure_reason,
		    updated_at = NOW()
		WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("%w: update participation: %v", ErrInternal, err)
	}
	return nil
}

// RewardForParticipationTx resolves the member and campaign reward for a
// participation in one query.
func (r *MissionRepository) RewardForParticipationTx(ctx context.Context, tx *sqlx.Tx, participationID uuid.UUID) (uuid.UUID, int64, error) {
	var row struct {
		MemberID  uuid.UUID `db:"member_id"`
		RewardKRW int64     `db:"reward_krw"`
	}
	err := tx.GetContext(ctx, &row, `
		SELECT p.member_id, c.reward_krw
		FROM participations p
		JOIN mission_days m ON m.id = p.mission_day_id
		JOIN campaigns c ON c.id = m.campaign_id
		WHERE p.id = $1`, participationID)
	if err == sql.ErrNoRows {
		return uuid.Nil, 0, ErrParticipationNotFound
	}
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("%w: resolve reward: %v", ErrInternal, err)
	}
	return row.MemberID, row.RewardKRW, nil
}

func (r *MissionRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*Participation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	participations := []*Participation{}
	err := r.db.SelectContext(ctx, &participations, `
		SELECT * FROM participations
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list participations: %v", ErrInternal, err)
	}
	return participations, nil
}

func (r *MissionRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]*Participation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	participations := []*Participation{}
	err := r.db.SelectContext(ctx, &participations, `
		SELECT * FROM participations
		WHERE status IN ('pending_review', 'manual_review')
		ORDER BY submitted_at ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending review: %v", ErrInternal, err)
	}
	return participations, nil
}

// ListOverdue returns in-progress participations past their deadline
func (r *MissionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*Participation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	participations := []*Participation{}
	err := r.db.SelectContext(ctx, &participations, `
		SELECT * FROM participations
		WHERE status = 'in_progress' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list overdue: %v", ErrInternal, err)
	}
	return participations, nil
}
