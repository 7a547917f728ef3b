package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// StatementCalculationsTotal counts statement aggregations by outcome.
	StatementCalculationsTotal *prometheus.CounterVec
	// StatementMatchedBookings records how many bookings matched the invoice recipient.
	StatementMatchedBookings prometheus.Histogram
	// PriceQuotesTotal counts price quotes by polarity of the quoted amount.
	PriceQuotesTotal *prometheus.CounterVec
	// MoneyConversionsTotal counts currency conversions by target currency.
	MoneyConversionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		StatementCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_calculations_total",
			Help:      "Count of statement calculations by outcome.",
		}, []string{"result"})
		StatementMatchedBookings = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_matched_bookings",
			Help:      "Number of bookings matched per statement calculation.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		PriceQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_quotes_total",
			Help:      "Count of price quotes by polarity.",
		}, []string{"polarity"})
		MoneyConversionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "money_conversions_total",
			Help:      "Count of currency conversions by target currency.",
		}, []string{"target"})

		mustRegisterCollector(reg, StatementCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StatementCalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, StatementMatchedBookings, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				StatementMatchedBookings = v
			}
		})
		mustRegisterCollector(reg, PriceQuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceQuotesTotal = v
			}
		})
		mustRegisterCollector(reg, MoneyConversionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MoneyConversionsTotal = v
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
