package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	BatchItems      *prometheus.CounterVec
	BalanceDebits   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide metrics, registering them with
// the default registry on first use.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelforge_requests_total",
				Help: "Total number of requests by operation, courier, and status",
			},
			[]string{"operation", "courier", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labelforge_request_duration_seconds",
				Help:    "Request duration in seconds by operation and courier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "courier"},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelforge_provider_errors_total",
				Help: "Total label provider errors by courier and error kind",
			},
			[]string{"courier", "kind"},
		),
		BatchItems: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelforge_batch_items_total",
				Help: "Batch items by courier and terminal status",
			},
			[]string{"courier", "status"},
		),
		BalanceDebits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelforge_balance_debits_total",
				Help: "Ledger debit attempts by result",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, courier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, courier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, courier).Observe(duration)
}

// RecordProviderError records a provider error metric.
func (m *Metrics) RecordProviderError(courier, kind string) {
	m.ProviderErrors.WithLabelValues(courier, kind).Inc()
}

// RecordBatchItem records the terminal status of one batch item.
func (m *Metrics) RecordBatchItem(courier, status string) {
	m.BatchItems.WithLabelValues(courier, status).Inc()
}

// RecordDebit records a ledger debit attempt.
func (m *Metrics) RecordDebit(result string) {
	m.BalanceDebits.WithLabelValues(result).Inc()
}
