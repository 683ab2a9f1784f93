package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service handles campaign business logic
type Service struct {
	repo Repository
}

// NewService creates campaign service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListActive returns campaigns members can join today
func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]*ActiveListing, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return s.repo.ListActiveToday(ctx, today, limit, offset)
}

// ListByAdvertiser returns the advertiser's campaigns
func (s *Service) ListByAdvertiser(ctx context.Context, advertiserID uuid.UUID, limit, offset int) ([]*Campaign, error) {
	return s.repo.ListByAdvertiser(ctx, advertiserID, limit, offset)
}

// GetByID returns a campaign by id
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

// Pause stops new mission joins on an active campaign
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	flipped, err := s.repo.UpdateStatus(ctx, id, StatusActive, StatusPaused)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrInvalidStatus
	}
	return nil
}

// Resume reactivates a paused campaign
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	flipped, err := s.repo.UpdateStatus(ctx, id, StatusPaused, StatusActive)
	if err != nil {
		return err
	}
	if !flipped {
		return ErrInvalidStatus
	}
	return nil
}

// EndFinished closes campaigns whose period has passed. Run by the daily
// rollover job.
func (s *Service) EndFinished(ctx context.Context) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	n, err := s.repo.EndFinished(ctx, today)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("campaigns", n).Msg("ended finished campaigns")
	}
	return nil
}
