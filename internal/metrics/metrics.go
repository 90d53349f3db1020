// Package metrics exports run and round timings as prometheus collectors.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fishschool/internal/sim"
)

const namespace = "fishschool"

// Collector owns its registry so several clients in one process never collide
// on the default registerer.
type Collector struct {
	registry   *prometheus.Registry
	phase      *prometheus.HistogramVec
	rounds     prometheus.Counter
	barycentre prometheus.Gauge
	nonFinite  prometheus.Gauge
	run        *prometheus.HistogramVec
}

func NewCollector() *Collector {
	buckets := prometheus.ExponentialBuckets(1e-5, 4, 12)
	c := &Collector{
		registry: prometheus.NewRegistry(),
		phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_seconds",
			Help:      "Wall time of one kernel phase.",
			Buckets:   buckets,
		}, []string{"phase"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed simulation rounds.",
		}),
		barycentre: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "barycentre",
			Help:      "Barycentre of the last completed round.",
		}),
		nonFinite: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nonfinite_weights",
			Help:      "Fish with a non-finite weight after the last round.",
		}),
		run: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "Timed region of a complete run.",
			Buckets:   buckets,
		}, []string{"policy"}),
	}
	c.registry.MustRegister(c.phase, c.rounds, c.barycentre, c.nonFinite, c.run)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRound implements sim.Observer.
func (c *Collector) ObserveRound(_ sim.Config, stats sim.RoundStats) {
	c.phase.WithLabelValues("move").Observe(stats.Move.Seconds())
	c.phase.WithLabelValues("eat").Observe(stats.Eat.Seconds())
	c.phase.WithLabelValues("reduction").Observe(stats.Reduction.Seconds())
	c.phase.WithLabelValues("collective").Observe(stats.Collective.Seconds())
	c.rounds.Inc()
	c.nonFinite.Set(float64(stats.NonFiniteWeights))
	if !math.IsNaN(stats.Barycentre) && !math.IsInf(stats.Barycentre, 0) {
		c.barycentre.Set(stats.Barycentre)
	}
}

func (c *Collector) ObserveRun(cfg sim.Config, elapsed time.Duration) {
	c.run.WithLabelValues(cfg.Schedule.Policy.String()).Observe(elapsed.Seconds())
}

// WriteFile dumps the registry in the text exposition format.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
