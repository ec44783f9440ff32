package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radieske/wager-pool/internal/wager"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Operações do engine por resultado (ok ou código de erro).",
	}, []string{"operation", "status"})
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Duração das operações do engine.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	stakedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "staked_units_total",
		Help:      "Soma dos stakes escrowados no vault.",
	})
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "settlements_total",
		Help:      "Liquidações por multiplicador (milésimos).",
	}, []string{"multiplier"})
	paidOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "paid_out_units_total",
		Help:      "Soma dos payouts pagos pelos vaults.",
	})
	feesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wager_pool",
		Subsystem: "engine",
		Name:      "house_fee_units_total",
		Help:      "Soma das taxas retidas nos payouts.",
	})
)

// Engine implementa wager.Metrics com os coletores globais
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (Engine) Observe(op string, err error, started time.Time) {
	status := "ok"
	if err != nil {
		status = wager.Code(err)
	}
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (Engine) ObserveStake(amount uint64) {
	stakedTotal.Add(float64(amount))
}

func (Engine) ObserveSettlement(o wager.Outcome) {
	settlementsTotal.WithLabelValues(strconv.FormatUint(o.Multiplier, 10)).Inc()
	if o.Won {
		paidOutTotal.Add(float64(o.Payout))
		feesTotal.Add(float64(o.Fee))
	}
}

var _ wager.Metrics = Engine{}
