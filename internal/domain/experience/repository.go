package experience

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines experience campaign and team data access
type Repository interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)

	CreateCampaign(ctx context.Context, c *ExperienceCampaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*ExperienceCampaign, error)
	ListOpenCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]*ExperienceCampaign, error)
	CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error)

	CountTeamsTx(ctx context.Context, tx *sqlx.Tx, campaignID uuid.UUID) (int, error)
	CreateTeamTx(ctx context.Context, tx *sqlx.Tx, t *ExperienceTeam) error
	GetTeam(ctx context.Context, id uuid.UUID) (*ExperienceTeam, error)
	GetTeamForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ExperienceTeam, error)
	ListTeams(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]*ExperienceTeam, error)
	ClaimSeatTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (bool, error)
	MarkFormedIfFullTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (bool, error)
	UpdateTeamStatusTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, from, to TeamStatus) (bool, error)

	HasMembershipTx(ctx context.Context, tx *sqlx.Tx, campaignID, memberID uuid.UUID) (bool, error)
	AddMemberTx(ctx context.Context, tx *sqlx.Tx, m *TeamMember) error
	RemoveMemberTx(ctx context.Context, tx *sqlx.Tx, teamID, memberID uuid.UUID) (bool, error)
	ListMembersTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) ([]*TeamMember, error)
}

// ExperienceRepository implements Repository backed by Postgres
type ExperienceRepository struct {
	db *sqlx.DB
}

var _ Repository = (*ExperienceRepository)(nil)

// NewRepository creates experience repository
func NewRepository(db *sqlx.DB) *ExperienceRepository {
	return &ExperienceRepository{db: db}
}

func (r *ExperienceRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *ExperienceRepository) CreateCampaign(ctx context.Context, c *ExperienceCampaign) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO experience_campaigns (
			id, advertiser_id, title, product_name, team_size, max_teams,
			reward_krw, deadline, status
		) VALUES (
			:id, :advertiser_id, :title, :product_name, :team_size, :max_teams,
			:reward_krw, :deadline, :status
		)`, c)
	if err != nil {
		return fmt.Errorf("%w: create experience campaign: %v", ErrInternal, err)
	}
	return nil
}

func (r *ExperienceRepository) GetCampaign(ctx context.Context, id uuid.UUID) (*ExperienceCampaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c ExperienceCampaign
	err := r.db.GetContext(ctx, &c, `SELECT * FROM experience_campaigns WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get experience campaign: %v", ErrInternal, err)
	}
	return &c, nil
}

func (r *ExperienceRepository) ListOpenCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]*ExperienceCampaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	campaigns := []*ExperienceCampaign{}
	err := r.db.SelectContext(ctx, &campaigns, `
		SELECT * FROM experience_campaigns
		WHERE status = 'open' AND deadline > $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list open campaigns: %v", ErrInternal, err)
	}
	return campaigns, nil
}

// CloseExpiredCampaigns closes open campaigns past their deadline
func (r *ExperienceRepository) CloseExpiredCampaigns(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE experience_campaigns
		SET status = 'closed', updated_at = NOW()
		WHERE status = 'open' AND deadline <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: close expired campaigns: %v", ErrInternal, err)
	}
	return res.RowsAffected()
}

func (r *ExperienceRepository) CountTeamsTx(ctx context.Context, tx *sqlx.Tx, campaignID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM experience_teams
		WHERE campaign_id = $1 AND status <> 'disbanded'`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("%w: count teams: %v", ErrInternal, err)
	}
	return n, nil
}

func (r *ExperienceRepository) CreateTeamTx(ctx context.Context, tx *sqlx.Tx, t *ExperienceTeam) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO experience_teams (
			id, campaign_id, name, seats_total, seats_remaining, status
		) VALUES (
			:id, :campaign_id, :name, :seats_total, :seats_remaining, :status
		)`, t)
	if err != nil {
		return fmt.Errorf("%w: create team: %v", ErrInternal, err)
	}
	return nil
}

func (r *ExperienceRepository) GetTeam(ctx context.Context, id uuid.UUID) (*ExperienceTeam, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t ExperienceTeam
	err := r.db.GetContext(ctx, &t, `SELECT * FROM experience_teams WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get team: %v", ErrInternal, err)
	}
	return &t, nil
}

func (r *ExperienceRepository) GetTeamForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*ExperienceTeam, error) {
	var t ExperienceTeam
	err := tx.GetContext(ctx, &t, `SELECT * FROM experience_teams WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock team: %v", ErrInternal, err)
	}
	return &t, nil
}

func (r *ExperienceRepository) ListTeams(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]*ExperienceTeam, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	teams := []*ExperienceTeam{}
	err := r.db.SelectContext(ctx, &teams, `
		SELECT * FROM experience_teams
		WHERE campaign_id = $1 AND status <> 'disbanded'
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list teams: %v", ErrInternal, err)
	}
	return teams, nil
}

// ClaimSeatTx atomically takes one seat on a forming team, guarded the same
// way as a mission quota claim.
func (r *ExperienceRepository) ClaimSeatTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE experience_teams t
		SET seats_remaining = t.seats_remaining - 1, updated_at = NOW()
		FROM experience_campaigns c
		WHERE t.id = $1
		  AND t.seats_remaining > 0
		  AND t.status = 'forming'
		  AND c.id = t.campaign_id
		  AND c.status = 'open'
		  AND c.deadline > NOW()`, teamID)
	if err != nil {
		return false, fmt.Errorf("%w: claim seat: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

// MarkFormedIfFullTx flips a forming team to formed when its last seat was
// just taken. Runs in the same transaction as the claim.
func (r *ExperienceRepository) MarkFormedIfFullTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE experience_teams
		SET status = 'formed', updated_at = NOW()
		WHERE id = $1 AND seats_remaining = 0 AND status = 'forming'`, teamID)
	if err != nil {
		return false, fmt.Errorf("%w: mark formed: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

func (r *ExperienceRepository) UpdateTeamStatusTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID, from, to TeamStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE experience_teams
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, teamID, from, to)
	if err != nil {
		return false, fmt.Errorf("%w: update team status: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

// HasMembershipTx reports whether the member already sits on any live team
// in the campaign. Checked inside the seat-claiming transaction.
func (r *ExperienceRepository) HasMembershipTx(ctx context.Context, tx *sqlx.Tx, campaignID, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1
			FROM team_members m
			JOIN experience_teams t ON t.id = m.team_id
			WHERE t.campaign_id = $1
			  AND m.member_id = $2
			  AND t.status <> 'disbanded'
		)`, campaignID, memberID)
	if err != nil {
		return false, fmt.Errorf("%w: check membership: %v", ErrInternal, err)
	}
	return exists, nil
}

func (r *ExperienceRepository) AddMemberTx(ctx context.Context, tx *sqlx.Tx, m *TeamMember) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO team_members (id, team_id, member_id)
		VALUES ($1, $2, $3)`, m.ID, m.TeamID, m.MemberID)
	if err != nil {
		return fmt.Errorf("%w: add team member: %v", ErrInternal, err)
	}
	return nil
}

// RemoveMemberTx deletes the membership row. The delete doubles as the
// release guard: a replayed leave deletes zero rows and releases no seat.
func (r *ExperienceRepository) RemoveMemberTx(ctx context.Context, tx *sqlx.Tx, teamID, memberID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM team_members
		WHERE team_id = $1 AND member_id = $2`, teamID, memberID)
	if err != nil {
		return false, fmt.Errorf("%w: remove team member: %v", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
	}
	return n > 0, nil
}

func (r *ExperienceRepository) ListMembersTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) ([]*TeamMember, error) {
	members := []*TeamMember{}
	err := tx.SelectContext(ctx, &members, `
		SELECT * FROM team_members
		WHERE team_id = $1
		ORDER BY joined_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("%w: list team members: %v", ErrInternal, err)
	}
	return members, nil
}
