package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bt"

// Collector records tick activity of behaviour tree runners. A nil *Collector
// is valid and records nothing.
type Collector struct {
	ticks    *prometheus.CounterVec
	errors   prometheus.Counter
	duration prometheus.Histogram
	runners  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg means the
// default registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Runner ticks by resulting state.",
			},
			[]string{"state"},
		),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Runner ticks that ended with an evaluation error.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in a single runner tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		runners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runners_active",
			Help:      "Runners currently spawned.",
		}),
	}

	for _, col := range []prometheus.Collector{c.ticks, c.errors, c.duration, c.runners} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register bt metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveTick records one tick. Failed ticks count as errors and are not
// attributed to a state.
func (c *Collector) ObserveTick(state string, took time.Duration, err error) {
	if c == nil {
		return
	}
	c.duration.Observe(took.Seconds())
	if err != nil {
		c.errors.Inc()
		return
	}
	c.ticks.WithLabelValues(state).Inc()
}

func (c *Collector) RunnerSpawned() {
	if c != nil {
		c.runners.Inc()
	}
}

func (c *Collector) RunnerDespawned() {
	if c != nil {
		c.runners.Dec()
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
