package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerAppends counts committed ledger entries by reason.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionhub_ledger_entries_total",
		Help: "Total ledger entries appended",
	}, []string{"reason"})

	// LedgerReplays counts idempotent replays skipped by the (reason, ref_id) key.
	LedgerReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missionhub_ledger_replays_total",
		Help: "Total duplicate ledger appends skipped by the idempotency key",
	})

	// QuotaClaims counts mission slot claim attempts by outcome.
	QuotaClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionhub_quota_claims_total",
		Help: "Total mission slot claim attempts",
	}, []string{"outcome"}) // claimed | exhausted

	// QuotaReleases counts mission slot releases by cause.
	QuotaReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionhub_quota_releases_total",
		Help: "Total mission slot releases",
	}, []string{"cause"}) // expired | canceled

	// PayoutDecisions counts payout approval outcomes.
	PayoutDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionhub_payout_decisions_total",
		Help: "Total payout decisions",
	}, []string{"decision"}) // paid | rejected | replayed

	// WebhookEvents counts inbound payment webhook deliveries by result.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "missionhub_payment_webhooks_total",
		Help: "Total payment webhook deliveries",
	}, []string{"provider", "result"})
)
