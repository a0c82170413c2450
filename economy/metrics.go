/*
metrics.go - Prometheus metrics for economy operations

Counters are labelled by outcome so dashboards can separate expected
rejections (insufficient funds, inventory full) from successes.
*/
package economy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intentsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_purchase_intents_total",
		Help: "Purchase intents opened.",
	})

	rateLimitDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_rate_limit_denials_total",
		Help: "Purchase intents denied by the per-account rate limit.",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_purchase_verifications_total",
		Help: "Receipt verification attempts by result.",
	}, []string{"result"})

	shopBuys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_shop_buys_total",
		Help: "Shop buy operations by result.",
	}, []string{"result"})

	giftBuys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "economy_gift_buys_total",
		Help: "Gift operations by result.",
	}, []string{"result"})

	idempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "economy_idempotent_replays_total",
		Help: "Operations answered from the idempotency index.",
	})

	replayedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "economy_replayed_records",
		Help: "Log records replayed during the last startup recovery.",
	})
)

const (
	resultSuccess          = "success"
	resultInsufficient     = "insufficient_funds"
	resultInventoryFull    = "inventory_full"
	resultUserMismatch     = "user_mismatch"
	resultInvalidSignature = "invalid_signature"
	resultUnknown          = "unknown_reference"
)
