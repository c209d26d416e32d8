package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type recycleMetrics struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	bottles   *prometheus.CounterVec
	rewards   prometheus.Counter
	effects   *prometheus.CounterVec
	throttles prometheus.Counter
}

var (
	recycleMetricsOnce sync.Once
	recycleRegistry    *recycleMetrics
)

// Recycle returns the lazily-initialised metrics registry for the recycle
// contract host.
func Recycle() *recycleMetrics {
	recycleMetricsOnce.Do(func() {
		recycleRegistry = &recycleMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "recycle",
				Subsystem: "contract",
				Name:      "calls_total",
				Help:      "Contract calls segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "recycle",
				Subsystem: "contract",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for contract calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			bottles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "recycle",
				Subsystem: "ledger",
				Name:      "bottles_recorded_total",
				Help:      "Bottles recorded, segmented by the operation that recorded them.",
			}, []string{"method"}),
			rewards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "recycle",
				Subsystem: "rewards",
				Name:      "units_requested_total",
				Help:      "Reward asset units requested from the asset ledger.",
			}),
			effects: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "recycle",
				Subsystem: "effects",
				Name:      "dispatched_total",
				Help:      "Asset transfer requests handed to the asset ledger, by result.",
			}, []string{"result"}),
			throttles: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "recycle",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "Requests rejected by the per-client rate limiter.",
			}),
		}
		prometheus.MustRegister(
			recycleRegistry.calls,
			recycleRegistry.latency,
			recycleRegistry.bottles,
			recycleRegistry.rewards,
			recycleRegistry.effects,
			recycleRegistry.throttles,
		)
	})
	return recycleRegistry
}

// ObserveCall records the outcome of a contract call. Outcome should be a
// stable string such as "ok", "unauthorized" or "overflow".
func (m *recycleMetrics) ObserveCall(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordBottles adds n to the recorded bottle counter.
func (m *recycleMetrics) RecordBottles(method string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.bottles.WithLabelValues(method).Add(float64(n))
}

// RecordReward adds the requested reward units.
func (m *recycleMetrics) RecordReward(units uint64) {
	if m == nil || units == 0 {
		return
	}
	m.rewards.Add(float64(units))
}

// RecordEffect counts a dispatched transfer request. Result is "applied",
// "rejected" or "dropped".
func (m *recycleMetrics) RecordEffect(result string) {
	if m == nil {
		return
	}
	m.effects.WithLabelValues(result).Inc()
}

// RecordThrottle counts a rate-limited request.
func (m *recycleMetrics) RecordThrottle() {
	if m == nil {
		return
	}
	m.throttles.Inc()
}
