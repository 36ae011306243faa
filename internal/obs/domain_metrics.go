package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementTotal counts settlement attempts by payment method and outcome.
	SettlementTotal *prometheus.CounterVec
	// ComplianceViolationTotal counts compliance violations observed at settlement.
	ComplianceViolationTotal *prometheus.CounterVec
	// DiscountAppliedTotal counts discounts frozen into settled transactions.
	DiscountAppliedTotal *prometheus.CounterVec
	// SessionOpenGauge tracks the number of live checkout sessions.
	SessionOpenGauge prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_total",
			Help:      "Count of settlement attempts by payment method and outcome.",
		}, []string{"method", "result"})
		ComplianceViolationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compliance_violation_total",
			Help:      "Count of compliance violations blocking settlement.",
		}, []string{"check"})
		DiscountAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_applied_total",
			Help:      "Count of discounts frozen into settled transactions.",
		}, []string{"kind"})
		SessionOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Number of live checkout sessions.",
		})

		mustRegisterCollector(reg, SettlementTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementTotal = v
			}
		})
		mustRegisterCollector(reg, ComplianceViolationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ComplianceViolationTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DiscountAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, SessionOpenGauge, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				SessionOpenGauge = v
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
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
