// Package metrics provides Prometheus instrumentation for a sweep.
//
// Collectors live on a private registry so a test or a second sweep in the
// same process never collides with the default registry.
//
// Metrics exposed:
//   - kerntune_build_seconds: Histogram of configure+build duration per variant
//   - kerntune_bench_seconds: Histogram of benchmark duration by kernel
//   - kerntune_variants_total: Gauge of variants the sweep will evaluate
//   - kerntune_variants_evaluated_total: Counter of completed variants
//   - kerntune_infeasible_total: Counter of results over the size cap by kernel
//   - kerntune_best_score: Gauge of the lowest J seen so far by kernel
//   - kerntune_last_p999_ns: Gauge of the most recent p99.9 by kernel
//   - kerntune_errors_total: Counter of fatal sweep errors by stage
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the sweep collectors and the registry they are registered on.
type Metrics struct {
	Registry *prometheus.Registry

	BuildSeconds      prometheus.Histogram
	BenchSeconds      *prometheus.HistogramVec
	VariantsTotal     prometheus.Gauge
	VariantsEvaluated prometheus.Counter
	InfeasibleTotal   *prometheus.CounterVec
	BestScore         *prometheus.GaugeVec
	LastP999          *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	mu   sync.Mutex
	best map[string]float64
}

// New creates and registers all collectors on a fresh registry. With
// process set, Go runtime and process collectors are registered as well.
func New(process bool) *Metrics {
	reg := prometheus.NewRegistry()
	if process {
		registerProcess(reg)
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		BuildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kerntune_build_seconds",
			Help:    "Time spent configuring and building one variant",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		BenchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kerntune_bench_seconds",
			Help:    "Time spent running the benchmark for one kernel",
			Buckets: prometheus.DefBuckets,
		}, []string{"kernel"}),

		VariantsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kerntune_variants_total",
			Help: "Number of variants the sweep will evaluate, baseline included",
		}),

		VariantsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "kerntune_variants_evaluated_total",
			Help: "Number of variants built and measured",
		}),

		InfeasibleTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerntune_infeasible_total",
			Help: "Number of results rejected by the code size cap",
		}, []string{"kernel"}),

		BestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kerntune_best_score",
			Help: "Lowest feasible score seen so far",
		}, []string{"kernel"}),

		LastP999: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kerntune_last_p999_ns",
			Help: "p99.9 latency of the most recently measured variant",
		}, []string{"kernel"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kerntune_errors_total",
			Help: "Total number of fatal sweep errors by stage",
		}, []string{"stage"}),

		best: make(map[string]float64),
	}
}

// RecordBuild records the duration of one configure+build cycle.
func (m *Metrics) RecordBuild(d time.Duration) {
	m.BuildSeconds.Observe(d.Seconds())
}

// RecordBench records the benchmark duration for one kernel.
func (m *Metrics) RecordBench(kernel string, d time.Duration) {
	m.BenchSeconds.WithLabelValues(kernel).Observe(d.Seconds())
}

// SetVariants sets the number of variants planned for the sweep.
func (m *Metrics) SetVariants(n int) {
	m.VariantsTotal.Set(float64(n))
}

// VariantDone counts one evaluated variant.
func (m *Metrics) VariantDone() {
	m.VariantsEvaluated.Inc()
}

// RecordResult updates the per-kernel gauges for one scored result.
func (m *Metrics) RecordResult(kernel string, p999, j float64, feasible bool) {
	m.LastP999.WithLabelValues(kernel).Set(p999)
	if !feasible {
		m.InfeasibleTotal.WithLabelValues(kernel).Inc()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if best, ok := m.best[kernel]; ok && best <= j {
		return
	}
	m.best[kernel] = j
	m.BestScore.WithLabelValues(kernel).Set(j)
}

// RecordError counts a fatal error in the given stage.
func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ProcessHandler serves only the Go runtime and process collectors. It is
// for commands that never run a sweep, where the sweep series would stay
// empty.
func ProcessHandler() http.Handler {
	reg := prometheus.NewRegistry()
	registerProcess(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func registerProcess(reg *prometheus.Registry) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// WriteTextfile writes the current values for the node_exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
