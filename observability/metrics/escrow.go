package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EscrowMetrics tracks host call outcomes and payout activity.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
	released   *prometheus.CounterVec
	fees       prometheus.Counter
	latency    *prometheus.HistogramVec
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide escrow metrics registered with the default
// Prometheus registry.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vaultix_operations_total",
				Help: "Count of host calls by operation and result.",
			}, []string{"op", "result"}),
			released: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vaultix_milestones_released_total",
				Help: "Milestones released by payout path.",
			}, []string{"path"}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vaultix_fee_transfers_total",
				Help: "Number of non-zero platform fee transfers to the treasury.",
			}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "vaultix_operation_duration_seconds",
				Help:    "Host call latency by operation.",
				Buckets: prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(
			escrowRegistry.operations,
			escrowRegistry.released,
			escrowRegistry.fees,
			escrowRegistry.latency,
		)
	})
	return escrowRegistry
}

// ObserveOperation records one host call outcome. result is "ok", "denied"
// or an escrow error name.
func (m *EscrowMetrics) ObserveOperation(op, result string, seconds float64) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
}

// ObserveRelease records a committed milestone release. path is "fee" or
// "delivery".
func (m *EscrowMetrics) ObserveRelease(path string) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(path).Inc()
}

// ObserveFeeTransfer records a committed treasury fee transfer.
func (m *EscrowMetrics) ObserveFeeTransfer() {
	if m == nil {
		return
	}
	m.fees.Inc()
}
