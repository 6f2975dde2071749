// Package metrics exposes prometheus instruments for pool activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics groups the pool instruments. A nil *PoolMetrics is a no-op.
type PoolMetrics struct {
	prepared       *prometheus.CounterVec
	committed      *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	commitLatency  *prometheus.HistogramVec
	reserves       *prometheus.GaugeVec
	totalLiquidity *prometheus.GaugeVec
}

var (
	poolOnce     sync.Once
	poolRegistry *PoolMetrics
)

// Pool returns the process-wide instruments, registering them on first use.
func Pool() *PoolMetrics {
	poolOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			prepared: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_transitions_prepared_total",
				Help: "Count of operations that produced an intent, by kind.",
			}, []string{"kind"}),
			committed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_transitions_committed_total",
				Help: "Count of intents accepted by the ledger, by kind.",
			}, []string{"kind"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_transitions_rejected_total",
				Help: "Count of operations refused at prepare or commit, by kind and reason.",
			}, []string{"kind", "reason"}),
			retries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "pool_operation_retries_total",
				Help: "Count of caller-side retries after a precondition violation, by kind.",
			}, []string{"kind"}),
			commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "pool_commit_seconds",
				Help:    "Latency of ledger commits, by kind.",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pool_reserve",
				Help: "Last observed pool reserve, by pool and leg.",
			}, []string{"pool", "leg"}),
			totalLiquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "pool_total_liquidity",
				Help: "Last observed total liquidity, by pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			poolRegistry.prepared,
			poolRegistry.committed,
			poolRegistry.rejected,
			poolRegistry.retries,
			poolRegistry.commitLatency,
			poolRegistry.reserves,
			poolRegistry.totalLiquidity,
		)
	})
	return poolRegistry
}

func (m *PoolMetrics) ObservePrepared(kind string) {
	if m == nil {
		return
	}
	m.prepared.WithLabelValues(label(kind)).Inc()
}

func (m *PoolMetrics) ObserveCommitted(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(label(kind)).Inc()
	m.commitLatency.WithLabelValues(label(kind)).Observe(elapsed.Seconds())
}

func (m *PoolMetrics) ObserveRejected(kind, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(label(kind), label(reason)).Inc()
}

func (m *PoolMetrics) IncRetry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(label(kind)).Inc()
}

func (m *PoolMetrics) SetState(pool string, reserveBase, reserveQuote, totalLiquidity uint64) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(pool, "base").Set(float64(reserveBase))
	m.reserves.WithLabelValues(pool, "quote").Set(float64(reserveQuote))
	m.totalLiquidity.WithLabelValues(pool).Set(float64(totalLiquidity))
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
