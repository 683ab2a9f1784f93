package experience

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents experience campaign status
type CampaignStatus string

const (
	CampaignOpen   CampaignStatus = "open"
	CampaignClosed CampaignStatus = "closed"
)

// ExperienceCampaign is a team-based product trial. Members form teams of a
// fixed size; a completed team earns each member the campaign reward.
type ExperienceCampaign struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	AdvertiserID uuid.UUID      `db:"advertiser_id" json:"advertiser_id"`
	Title        string         `db:"title" json:"title"`
	ProductName  string         `db:"product_name" json:"product_name"`
	TeamSize     int            `db:"team_size" json:"team_size"`
	MaxTeams     int            `db:"max_teams" json:"max_teams"`
	RewardKRW    int64          `db:"reward_krw" json:"reward_krw"`
	Deadline     time.Time      `db:"deadline" json:"deadline"`
	Status       CampaignStatus `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TeamStatus represents experience team status
type TeamStatus string

const (
	TeamForming   TeamStatus = "forming"
	TeamFormed    TeamStatus = "formed"
	TeamCompleted TeamStatus = "completed"
	TeamDisbanded TeamStatus = "disbanded"
)

// ExperienceTeam tracks seat capacity the same way a mission day tracks
// quota: seats only change through conditional updates.
type ExperienceTeam struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	CampaignID     uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	Name           string     `db:"name" json:"name"`
	SeatsTotal     int        `db:"seats_total" json:"seats_total"`
	SeatsRemaining int        `db:"seats_remaining" json:"seats_remaining"`
	Status         TeamStatus `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// TeamMember is one member's seat on a team
type TeamMember struct {
	ID       uuid.UUID `db:"id" json:"id"`
	TeamID   uuid.UUID `db:"team_id" json:"team_id"`
	MemberID uuid.UUID `db:"member_id" json:"member_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
