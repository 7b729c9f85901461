package httpapi

import (
	"net/http"
	"time"

	"balscan/internal/application"
	"balscan/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements the fetch, cycle and limiter observers on top of a private Prometheus
// registry.
type Metrics struct {
	registry *prometheus.Registry

	batches        *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	batchHits      *prometheus.CounterVec
	permitWait     *prometheus.HistogramVec
	permitHold     *prometheus.HistogramVec
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	lastHits       prometheus.Gauge
	lastAddresses  prometheus.Gauge
	lastCompletion prometheus.Gauge
	newHits        prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balscan",
			Subsystem: "fetcher",
			Name:      "batches_total",
			Help:      "Batches dispatched, by chain and outcome.",
		}, []string{"chain", "outcome"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "balscan",
			Subsystem: "fetcher",
			Name:      "batch_duration_seconds",
			Help:      "Time from permit request to batch completion.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"chain"}),
		batchHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balscan",
			Subsystem: "fetcher",
			Name:      "nonzero_balances_total",
			Help:      "Addresses reported with a non-zero balance.",
		}, []string{"chain"}),
		permitWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "balscan",
			Subsystem: "ratelimit",
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for a permit.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"limiter"}),
		permitHold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "balscan",
			Subsystem: "ratelimit",
			Name:      "permit_hold_seconds",
			Help:      "Time a permit was held including the pacing wait.",
			Buckets:   []float64{0.1, 0.2, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"limiter"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "completed_total",
			Help:      "Cycles finished, by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of a cycle from load to emit.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		lastHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "last_hits",
			Help:      "Size of the last emitted result set.",
		}),
		lastAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "last_addresses",
			Help:      "Distinct addresses planned in the last cycle.",
		}),
		lastCompletion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "last_completion_timestamp_seconds",
			Help:      "Unix time of the last emitted cycle.",
		}),
		newHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balscan",
			Subsystem: "cycle",
			Name:      "new_hits_total",
			Help:      "Hits not seen earlier in this process.",
		}),
	}
	m.registry.MustRegister(
		m.batches, m.batchDuration, m.batchHits,
		m.permitWait, m.permitHold,
		m.cycles, m.cycleDuration, m.lastHits, m.lastAddresses, m.lastCompletion, m.newHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnBatchFetched(result application.BatchResult) {
	chain := result.Batch.Chain.String()
	m.batches.WithLabelValues(chain, batchOutcome(result)).Inc()
	if result.Abandoned {
		return
	}
	m.batchDuration.WithLabelValues(chain).Observe(result.Duration.Seconds())
	if n := len(result.Records); n > 0 {
		m.batchHits.WithLabelValues(chain).Add(float64(n))
	}
}

func (m *Metrics) OnCycleCompleted(summary domain.CycleSummary) {
	outcome := "emitted"
	if !summary.Emitted {
		outcome = "failed"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	if !summary.Emitted {
		return
	}
	m.cycleDuration.Observe(summary.Duration().Seconds())
	m.lastHits.Set(float64(summary.Hits))
	m.lastAddresses.Set(float64(summary.Addresses))
	m.lastCompletion.Set(float64(summary.FinishedAt.Unix()))
	m.newHits.Add(float64(summary.NewHits))
}

func (m *Metrics) ObservePermitWait(limiter string, wait time.Duration) {
	m.permitWait.WithLabelValues(limiter).Observe(wait.Seconds())
}

func (m *Metrics) ObservePermitHold(limiter string, hold time.Duration) {
	m.permitHold.WithLabelValues(limiter).Observe(hold.Seconds())
}

func batchOutcome(result application.BatchResult) string {
	switch {
	case result.Abandoned:
		return "abandoned"
	case result.Err != nil:
		return string(domain.KindOf(result.Err))
	default:
		return "ok"
	}
}
