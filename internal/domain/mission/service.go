package mission

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

// Ledger is the slice of the ledger repository mission review needs
type Ledger interface {
	AppendTx(ctx context.Context, tx *sqlx.Tx, e *ledger.Entry) error
}

// Publisher pushes review feed events to connected admins. Implementations
// must not block.
type Publisher interface {
	Broadcast(event any)
}

// ReviewEvent is what the admin review feed receives on evidence submission
type ReviewEvent struct {
	Type            string    `json:"type"`
	ParticipationID uuid.UUID `json:"participation_id"`
	MemberID        uuid.UUID `json:"member_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Service handles mission business logic
type Service struct {
	repo    Repository
	ledgers Ledger
	feed    Publisher
	ttl     time.Duration
}

// NewService creates mission service. ttl is how long a member has to submit
// evidence after claiming a slot.
func NewService(repo Repository, ledgers Ledger, ttl time.Duration) *Service {
	return &Service{repo: repo, ledgers: ledgers, ttl: ttl}
}

// SetPublisher sets the review feed publisher
func (s *Service) SetPublisher(feed Publisher) {
	s.feed = feed
}

// Join claims a slot on the mission day and opens an in-progress
// participation with a submission deadline, all in one transaction.
func (s *Service) Join(ctx context.Context, memberID, dayID uuid.UUID) (*Participation, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	joined, err := s.repo.HasActiveParticipationTx(ctx, tx, dayID, memberID)
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, ErrAlreadyJoined
	}

	claimed, err := s.repo.ClaimSlotTx(ctx, tx, dayID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.QuotaClaims.WithLabelValues("exhausted").Inc()
		return nil, ErrQuotaExhausted
	}

	p := &Participation{
		ID:           uuid.New(),
		MissionDayID: dayID,
		MemberID:     memberID,
		Status:       StatusInProgress,
		ExpiresAt:    time.Now().UTC().Add(s.ttl),
	}
	if err := s.repo.CreateParticipationTx(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.QuotaClaims.WithLabelValues("claimed").Inc()
	log.Info().
		Str("participation_id", p.ID.String()).
		Str("mission_day_id", dayID.String()).
		Msg("mission slot claimed")
	return p, nil
}

// SubmitEvidence moves an in-progress participation to pending review.
// An overdue participation is expired lazily here, releasing its slot in
// the same transaction.
func (s *Service) SubmitEvidence(ctx context.Context, memberID, participationID uuid.UUID, evidenceURL, evidenceNote string) (*Participation, error) {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetParticipationForUpdateTx(ctx, tx, participationID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound
	}
	if p.MemberID != memberID {
		return nil, ErrNotOwner
	}

	now := time.Now().UTC()
	if p.Overdue(now) {
		if err := s.expireTx(ctx, tx, p); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, ErrParticipationExpired
	}

	if !p.Status.CanTransitionTo(StatusPendingReview) {
		return nil, ErrInvalidTransition
	}

	p.Status = StatusPendingReview
	p.SubmittedAt = sql.NullTime{Time: now, Valid: true}
	p.EvidenceURL = sql.NullString{String: evidenceURL, Valid: true}
	if evidenceNote != "" {
		p.EvidenceNote = sql.NullString{String: evidenceNote, Valid: true}
	}
	if err := s.repo.UpdateParticipationTx(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.feed != nil {
		s.feed.Broadcast(ReviewEvent{
			Type:            "evidence_submitted",
			ParticipationID: p.ID,
			MemberID:        p.MemberID,
			SubmittedAt:     now,
		})
	}
	return p, nil
}

// Cancel withdraws an in-progress participation and returns its slot
func (s *Service) Cancel(ctx context.Context, memberID, participationID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := s.repo.GetParticipationForUpdateTx(ctx, tx, participationID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrParticipationNotFound
	}
	if p.MemberID != memberID {
		return ErrNotOwner
	}
	if !p.Status.CanTransitionTo(StatusCanceled) {
		return ErrInvalidTransition
	}

	p.Status = StatusCanceled
	p.DecidedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if err := s.repo.UpdateParticipationTx(ctx, tx, p); err != nil {
		return err
	}

	released, err := s.repo.ReleaseSlotTx(ctx, tx, p.ID, p.MissionDayID)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if released {
		metrics.QuotaReleases.WithLabelValues("canceled").Inc()
	}
	return nil
}

// Review applies an admin decision. Approval credits the campaign reward to
// the member, keyed on the participation id so a replayed decision cannot
// pay twice.
func (s *Service) Review(ctx context.Context, participationID uuid.UUID, decision ParticipationStatus, reason string) (*Participation, error) {
	switch decision {
	case StatusApproved, StatusRejected, StatusManualReview:
	default:
		return nil, ErrInvalidTransition
	}

	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := s.repo.GetParticipationForUpdateTx(ctx, tx, participationID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrParticipationNotFound
	}
	if !p.Status.CanTransitionTo(decision) {
		return nil, ErrInvalidTransition
	}

	if decision == StatusApproved {
		memberID, rewardKRW, err := s.repo.RewardForParticipationTx(ctx, tx, p.ID)
		if err != nil {
			return nil, err
		}
		entry := ledger.NewEntry(memberID, rewardKRW, ledger.ReasonMissionReward, p.ID.String())
		if err := s.ledgers.AppendTx(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	p.Status = decision
	if decision != StatusManualReview {
		p.DecidedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	if decision == StatusRejected && reason != "" {
		p.FailureReason = sql.NullString{String: reason, Valid: true}
	}
	if err := s.repo.UpdateParticipationTx(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Str("participation_id", p.ID.String()).
		Str("decision", string(decision)).
		Msg("participation reviewed")
	return p, nil
}

// ExpireOverdue sweeps in-progress participations past their deadline.
// Run periodically; lazy expiry on member requests covers the gap between
// sweeps.
func (s *Service) ExpireOverdue(ctx context.Context) error {
	const batchSize = 200

	overdue, err := s.repo.ListOverdue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return err
	}

	for _, p := range overdue {
		if err := s.expireOne(ctx, p.ID); err != nil {
			log.Error().Err(err).Str("participation_id", p.ID.String()).Msg("failed to expire participation")
		}
	}
	if len(overdue) > 0 {
		log.Info().Int("count", len(overdue)).Msg("expired overdue participations")
	}
	return nil
}

func (s *Service) expireOne(ctx context.Context, participationID uuid.UUID) error {
	tx, err := s.repo.BeginTxx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := s.repo.GetParticipationForUpdateTx(ctx, tx, participationID)
	if err != nil {
		return err
	}
	if p == nil || !p.Overdue(time.Now().UTC()) {
		// Raced with a submission or an earlier sweep.
		return nil
	}
	if err := s.expireTx(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// expireTx transitions p to expired and releases its slot. Caller commits.
func (s *Service) expireTx(ctx context.Context, tx *sqlx.Tx, p *Participation) error {
	p.Status = StatusExpired
	p.DecidedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if err := s.repo.UpdateParticipationTx(ctx, tx, p); err != nil {
		return err
	}
	released, err := s.repo.ReleaseSlotTx(ctx, tx, p.ID, p.MissionDayID)
	if err != nil {
		return err
	}
	if released {
		metrics.QuotaReleases.WithLabelValues("expired").Inc()
	}
	return nil
}

// Rollover closes mission days for past dates. Run by the daily job.
func (s *Service) Rollover(ctx context.Context) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	n, err := s.repo.ClosePastDays(ctx, today)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("days", n).Msg("closed past mission days")
	}
	return nil
}

// GetDay returns a mission day by id
func (s *Service) GetDay(ctx context.Context, id uuid.UUID) (*MissionDay, error) {
	d, err := s.repo.GetDayByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDayNotFound
	}
	return d, nil
}

// ListMine returns the member's participations, newest first
func (s *Service) ListMine(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]*Participation, error) {
	return s.repo.ListByMember(ctx, memberID, limit, offset)
}

// ListPendingReview returns the admin review queue, oldest submission first
func (s *Service) ListPendingReview(ctx context.Context, limit, offset int) ([]*Participation, error) {
	return s.repo.ListPendingReview(ctx, limit, offset)
}
