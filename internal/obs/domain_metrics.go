package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TransactionsTotal counts settlement attempts by payment method and outcome.
	TransactionsTotal *prometheus.CounterVec
	// RefundsTotal counts refund attempts by outcome.
	RefundsTotal *prometheus.CounterVec
	// ShiftClosesTotal counts closed shifts by drawer variance classification.
	ShiftClosesTotal *prometheus.CounterVec
	// SettledAmount records settled transaction totals in minor currency units.
	SettledAmount prometheus.Histogram
	// ActiveSessions tracks the number of open terminal sessions.
	ActiveSessions prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Count of transaction settlement outcomes by payment method.",
		}, []string{"method", "result"})
		RefundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Count of refund processing outcomes.",
		}, []string{"result"})
		ShiftClosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_closes_total",
			Help:      "Count of closed shifts by drawer variance classification.",
		}, []string{"classification"})
		SettledAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settled_amount_minor_units",
			Help:      "Distribution of settled transaction totals in minor currency units.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		})
		ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently open terminal sessions.",
		})

		mustRegisterCollector(reg, TransactionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TransactionsTotal = v
			}
		})
		mustRegisterCollector(reg, RefundsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RefundsTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftClosesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShiftClosesTotal = v
			}
		})
		mustRegisterCollector(reg, SettledAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SettledAmount = v
			}
		})
		mustRegisterCollector(reg, ActiveSessions, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ActiveSessions = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
