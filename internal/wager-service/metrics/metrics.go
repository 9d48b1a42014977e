package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas de domínio do engine de apostas.
var (
	WagersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_placed_total",
		Help: "Apostas colocadas com sucesso",
	})
	WagersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_cancelled_total",
		Help: "Apostas canceladas (estorno)",
	})
	WagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_rejected_total",
		Help: "Apostas rejeitadas, por kind do erro",
	}, []string{"kind"})
	RacesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_settled_total",
		Help: "Corridas liquidadas",
	})
	WagersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_settled_total",
		Help: "Apostas liquidadas, por desfecho (won/lost)",
	}, []string{"outcome"})
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "race_settlement_duration_seconds",
		Help:    "Duração da transação de liquidação",
		Buckets: prometheus.DefBuckets,
	})
	FundsApproved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_request_approved_total",
		Help: "Pedidos de fundos aprovados, por kind (recharge/withdrawal)",
	}, []string{"kind"})
)
