package payout

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusRequested, StatusApproved, true},
		{StatusRequested, StatusRejected, true},
		{StatusRequested, StatusPaid, true},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusRejected, true},
		{StatusApproved, StatusRequested, false},
		{StatusPaid, StatusRejected, false},
		{StatusPaid, StatusRequested, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPaid, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestDecidable(t *testing.T) {
	if !StatusRequested.Decidable() || !StatusApproved.Decidable() {
		t.Fatal("expected requested and approved to be decidable")
	}
	if StatusPaid.Decidable() || StatusRejected.Decidable() {
		t.Fatal("expected terminal statuses not to be decidable")
	}
}
