package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Deposits          *prometheus.CounterVec
	Redemptions       *prometheus.CounterVec
	Mints             prometheus.Counter
	Burns             prometheus.Counter
	Liquidations      prometheus.Counter
	HealthFactorDenials prometheus.Counter
	OracleFailures    prometheus.Counter
	TransferFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Deposits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingot_engine_deposits_total",
			Help: "Total number of committed collateral deposits",
		}, []string{"asset"}),
		Redemptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingot_engine_redemptions_total",
			Help: "Total number of committed collateral redemptions",
		}, []string{"asset"}),
		Mints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_mints_total",
			Help: "Total number of committed synthetic mints",
		}),
		Burns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_burns_total",
			Help: "Total number of committed synthetic burns",
		}),
		Liquidations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_liquidations_total",
			Help: "Total number of committed liquidations",
		}),
		HealthFactorDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_health_factor_denials_total",
			Help: "Total number of operations rejected by the health factor check",
		}),
		OracleFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_oracle_failures_total",
			Help: "Total number of operations failed by stale or invalid price data",
		}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingot_engine_transfer_failures_total",
			Help: "Total number of external ledger transfers that signalled failure",
		}),
	}
}

func (m *Metrics) IncDeposits(asset string) {
	m.Deposits.WithLabelValues(asset).Inc()
}

func (m *Metrics) IncRedemptions(asset string) {
	m.Redemptions.WithLabelValues(asset).Inc()
}
