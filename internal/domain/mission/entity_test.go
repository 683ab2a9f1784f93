package mission

import (
	"testing"
	"time"
)

func TestParticipationTransitions(t *testing.T) {
	cases := []struct {
		from    ParticipationStatus
		to      ParticipationStatus
		allowed bool
	}{
		{StatusInProgress, StatusPendingReview, true},
		{StatusInProgress, StatusExpired, true},
		{StatusInProgress, StatusCanceled, true},
		{StatusInProgress, StatusApproved, false},
		{StatusPendingReview, StatusApproved, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusManualReview, true},
		{StatusPendingReview, StatusCanceled, false},
		{StatusManualReview, StatusApproved, true},
		{StatusManualReview, StatusRejected, true},
		{StatusManualReview, StatusPendingReview, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusExpired, StatusPendingReview, false},
		{StatusCanceled, StatusInProgress, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []ParticipationStatus{StatusApproved, StatusRejected, StatusExpired, StatusCanceled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []ParticipationStatus{StatusInProgress, StatusPendingReview, StatusManualReview}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestParticipationOverdue(t *testing.T) {
	now := time.Now().UTC()
	p := &Participation{Status: StatusInProgress, ExpiresAt: now.Add(-time.Minute)}
	if !p.Overdue(now) {
		t.Fatal("expected in-progress participation past deadline to be overdue")
	}

	p.ExpiresAt = now.Add(time.Minute)
	if p.Overdue(now) {
		t.Fatal("expected participation before deadline not to be overdue")
	}

	p.Status = StatusPendingReview
	p.ExpiresAt = now.Add(-time.Hour)
	if p.Overdue(now) {
		t.Fatal("expected submitted participation not to be overdue")
	}
}
