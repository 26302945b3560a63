// Package services – delivery metrics.
//
// Prometheus collectors for the delivery domain. HTTP-level metrics live in
// the middleware package; the counters here track what actually happened to
// check requests: initial sends, sweep outcomes, and webhook results.
// Failure modes that are otherwise invisible to end users (malformed webhook
// payloads, aborted claims) are all counted so operators do not have to
// scrape logs to notice them.
package services

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcome label values accepted by ObserveWebhookOutcome.
const (
	WebhookOutcomeCompleted    = "completed"
	WebhookOutcomeReplayed     = "replayed"
	WebhookOutcomeUnknownID    = "unknown_id"
	WebhookOutcomeMalformed    = "malformed"
	WebhookOutcomeBadSignature = "bad_signature"
)

var (
	// sendsTotal counts initial delivery attempts by kind and outcome
	// (sent|failed).
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "check_sends_total",
			Help: "Total initial document send attempts.",
		},
		[]string{"kind", "outcome"},
	)

	// sweepRowsTotal counts per-row sweep outcomes by kind
	// (sent|released|exhausted|claim_lost|error).
	sweepRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "check_sweep_rows_total",
			Help: "Total rows processed by the retry sweeper.",
		},
		[]string{"kind", "outcome"},
	)

	// WebhookResultsTotal counts inbound webhook outcomes
	// (completed|replayed|unknown_id|malformed|bad_signature). Exported so
	// transport tests can assert outcome wiring.
	WebhookResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "check_webhook_results_total",
			Help: "Total inbound webhook results by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, sweepRowsTotal, WebhookResultsTotal)
}

// ObserveWebhookOutcome records one inbound webhook outcome. Exposed so the
// webhook handler can count outcomes it decides on itself (malformed
// payloads it acknowledges, signature rejections).
func ObserveWebhookOutcome(outcome string) {
	WebhookResultsTotal.WithLabelValues(outcome).Inc()
}
