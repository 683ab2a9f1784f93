package mission

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DayStatus represents mission day status
type DayStatus string

const (
	DayActive DayStatus = "active"
	DayClosed DayStatus = "closed"
)

// MissionDay is the per-day capacity bucket for a campaign. quota_remaining
// is only ever changed by the conditional claim and release updates, so
// 0 <= remaining <= total holds at all times.
type MissionDay struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CampaignID     uuid.UUID `db:"campaign_id" json:"campaign_id"`
	MissionDate    time.Time `db:"mission_date" json:"mission_date"`
	QuotaTotal     int       `db:"quota_total" json:"quota_total"`
	QuotaRemaining int       `db:"quota_remaining" json:"quota_remaining"`
	Status         DayStatus `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ParticipationStatus represents participation lifecycle status
type ParticipationStatus string

const (
	StatusInProgress    ParticipationStatus = "in_progress"
	StatusPendingReview ParticipationStatus = "pending_review"
	StatusApproved      ParticipationStatus = "approved"
	StatusRejected      ParticipationStatus = "rejected"
	StatusManualReview  ParticipationStatus = "manual_review"
	StatusExpired       ParticipationStatus = "expired"
	StatusCanceled      ParticipationStatus = "canceled"
)

var transitions = map[ParticipationStatus][]ParticipationStatus{
	StatusInProgress:    {StatusPendingReview, StatusExpired, StatusCanceled},
	StatusPendingReview: {StatusApproved, StatusRejected, StatusManualReview},
	StatusManualReview:  {StatusApproved, StatusRejected},
}

// CanTransitionTo reports whether the move from s to next is allowed
func (s ParticipationStatus) CanTransitionTo(next ParticipationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s ParticipationStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Participation is one member's attempt at a mission slot. slot_released
// guards the quota release so a retried expiry or cancellation cannot
// restore the same slot twice.
type Participation struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	MissionDayID  uuid.UUID           `db:"mission_day_id" json:"mission_day_id"`
	MemberID      uuid.UUID           `db:"member_id" json:"member_id"`
	Status        ParticipationStatus `db:"status" json:"status"`
	ExpiresAt     time.Time           `db:"expires_at" json:"expires_at"`
	SubmittedAt   sql.NullTime        `db:"submitted_at" json:"submitted_at,omitempty"`
	DecidedAt     sql.NullTime        `db:"decided_at" json:"decided_at,omitempty"`
	EvidenceURL   sql.NullString      `db:"evidence_url" json:"evidence_url,omitempty"`
	EvidenceNote  sql.NullString      `db:"evidence_note" json:"evidence_note,omitempty"`
	FailureReason sql.NullString      `db:"failure_reason" json:"failure_reason,omitempty"`
	SlotReleased  bool                `db:"slot_released" json:"-"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether an in-progress participation has passed its deadline
func (p *Participation) Overdue(now time.Time) bool {
	return p.Status == StatusInProgress && now.After(p.ExpiresAt)
}
