package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memberclub"

// Grant outcomes.
const (
	OutcomeGranted   = "granted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

var (
	LedgerGrants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_grants_total",
		Help:      "Ledger grant attempts by entry kind and outcome.",
	}, []string{"kind", "outcome"})

	InviteRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invite_redemptions_total",
		Help:      "Invite redemption attempts by mode and outcome.",
	}, []string{"mode", "outcome"})

	QuestCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quest_completions_total",
		Help:      "Quest completions recorded, by source (automatic, review) and outcome.",
	}, []string{"source", "outcome"})

	ResolverRoutes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_resolutions_total",
		Help:      "Verification events resolved, by route.",
	}, []string{"route"})
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
