package experience

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/missionhub/missionhub-api/internal/domain/ledger"
)

// Ledger is the slice of the ledger repository team completion needs
type Ledger interface {
	AppendManyTx(ctx context.Context, tx *sqlx.Tx, entries []*ledger.Entry) error
}

// Service handles experience campaign business logic
type Service struct {
	repo    Repository
	ledgers Ledger
}

// NewService creates experience service
func NewService(repo Repository, ledgers Ledger) *Service {
	return &Service{repo: repo, ledgers: ledgers}
}

// CreateCampaign opens a team-based trial campaign for an advertiser
func (s *Service) CreateCampaign(ctx context.Context, advertiserID uuid.UUID, title, productName string,
	teamSize, maxTeams int, rewardKRW int64, deadline time.Time) (*ExperienceCampaign, error) {

	c := &ExperienceCampaign{
		ID:           uuid.New(),
		AdvertiserID: advertiserID,
		Title:        title,
		ProductName:  productName,
		TeamSize:     teamSize,
		MaxTeams:     maxTeams,
		RewardKRW:    rewardKRW,
		Deadline:     deadline,
		Status:       CampaignOpen,
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListOpen returns campaigns members can still join
func (s *Service) ListOpen(ctx context.Context, limit, offset int) ([]*ExperienceCampaign, error) {
	return s.repo.ListOpenCampaigns(ctx, time.Now().UTC(), limit, offset)
}

// ListTeams returns a campaign's live teams
func (s *Service) ListTeams(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]*ExperienceTeam, error) {
	return s.repo.ListTeams(ctx, campaignID, limit, offset)
}

// CreateTeam opens a new team and seats its creator, all in one transaction
func (s *Service) CreateTeam(ctx context.Context, memberID, campaignID uuid.UUID, name string) (*ExperienceTeam, error) {
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	if c.Status != CampaignOpen || !c.Deadline.After(time.Now().UTC()) {
		return nil, ErrCampaignClosed
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	joined, err := s.repo.HasMembershipTx(ctx, tx, campaignID, memberID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, ErrAlreadyMember
	}

	count, err := s.repo.CountTeamsTx(ctx, tx, campaignID)
	if err != nil {
		return nil, err
	}
	if count >= c.MaxTeams {
		return nil, ErrTeamLimitReached
	}

	t := &ExperienceTeam{
		ID:             uuid.New(),
		CampaignID:     campaignID,
		Name:           name,
		SeatsTotal:     c.TeamSize,
		SeatsRemaining: c.TeamSize,
		Status:         TeamForming,
	}
	if err := s.repo.CreateTeamTx(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := s.seatMemberTx(ctx, tx, t.ID, memberID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// JoinTeam claims a seat on a forming team. The last seat flips the team to
// formed in the same transaction.
func (s *Service) JoinTeam(ctx context.Context, memberID, teamID uuid.UUID) (*ExperienceTeam, error) {
	t, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTeamNotFound
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	joined, err := s.repo.HasMembershipTx(ctx, tx, t.CampaignID, memberID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, ErrAlreadyMember
	}

	if err := s.seatMemberTx(ctx, tx, teamID, memberID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.repo.GetTeam(ctx, teamID)
}

func (s *Service) seatMemberTx(ctx context.Context, tx *sqlx.Tx, teamID, memberID uuid.UUID) error {
	claimed, err := s.repo.ClaimSeatTx(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrTeamFull
	}

	m := &TeamMember{ID: uuid.New(), TeamID: teamID, MemberID: memberID}
	if err := s.repo.AddMemberTx(ctx, tx, m); err != nil {
		return err
	}

	formed, err := s.repo.MarkFormedIfFullTx(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if formed {
		log.Info().Str("team_id", teamID.String()).Msg("experience team formed")
	}
	return nil
}

// LeaveTeam releases the member's seat on a still-forming team
func (s *Service) LeaveTeam(ctx context.Context, memberID, teamID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := s.repo.GetTeamForUpdateTx(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTeamNotFound
	}
	if t.Status != TeamForming {
		return ErrInvalidStatus
	}

	removed, err := s.repo.RemoveMemberTx(ctx, tx, teamID, memberID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE experience_teams
		SET seats_remaining = LEAST(seats_total, seats_remaining + 1), updated_at = NOW()
		WHERE id = $1`, teamID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CompleteTeam closes out a formed team and credits each member the campaign
// reward. The conditional status flip plus per-member ledger keys make a
// replayed completion a no-op.
func (s *Service) CompleteTeam(ctx context.Context, teamID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := s.repo.GetTeamForUpdateTx(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTeamNotFound
	}

	flipped, err := s.repo.UpdateTeamStatusTx(ctx, tx, teamID, TeamFormed, TeamCompleted)
	if err != nil {
		return err
	}
	if !flipped {
		if t.Status == TeamCompleted {
			return nil
		}
		return ErrInvalidStatus
	}

	c, err := s.repo.GetCampaign(ctx, t.CampaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrCampaignNotFound
	}

	members, err := s.repo.ListMembersTx(ctx, tx, teamID)
	if err != nil {
		return err
	}

	entries := make([]*ledger.Entry, 0, len(members))
	for _, m := range members {
		ref := ledger.RefKey(teamID.String(), m.MemberID.String())
		entries = append(entries, ledger.NewEntry(m.MemberID, c.RewardKRW, ledger.ReasonExperienceReward, ref))
	}
	if err := s.ledgers.AppendManyTx(ctx, tx, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().
		Str("team_id", teamID.String()).
		Int("members", len(members)).
		Int64("reward_krw", c.RewardKRW).
		Msg("experience team completed")
	return nil
}

// DisbandTeam dissolves a forming team without rewards
func (s *Service) DisbandTeam(ctx context.Context, teamID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	flipped, err := s.repo.UpdateTeamStatusTx(ctx, tx, teamID, TeamForming, TeamDisbanded)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrInvalidStatus
	}
	return tx.Commit()
}

// CloseExpired closes open campaigns past their deadline. Run by the
// periodic sweep.
func (s *Service) CloseExpired(ctx context.Context) error {
	n, err := s.repo.CloseExpiredCampaigns(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("campaigns", n).Msg("closed expired experience campaigns")
	}
	return nil
}
