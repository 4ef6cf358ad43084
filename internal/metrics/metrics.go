// Package metrics exposes screening run metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"MarketScreener/internal/model"
)

const namespace = "screener"

// Metrics holds every collector the screener updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Runs          *prometheus.CounterVec
	Instruments   *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	Candidates    prometheus.Gauge
	Regime        *prometheus.GaugeVec
	LastRunUnix   prometheus.Gauge
	Notifications *prometheus.CounterVec
}

// New creates the metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Screening runs by final status",
			},
			[]string{"status"},
		),
		Instruments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instruments_total",
				Help:      "Instruments processed by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a screening run",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
			},
		),
		Candidates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "candidates",
				Help:      "Candidates reported by the last run",
			},
		),
		Regime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime",
				Help:      "1 for the regime of the last run, 0 otherwise",
			},
			[]string{"regime"},
		),
		LastRunUnix: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Start time of the last completed run",
			},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Outbound report messages by sink and result",
			},
			[]string{"sink", "result"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Runs, m.Instruments, m.RunDuration, m.Candidates, m.Regime, m.LastRunUnix, m.Notifications,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOutcome counts one instrument.
func (m *Metrics) ObserveOutcome(o model.Outcome) {
	if m == nil {
		return
	}
	m.Instruments.WithLabelValues(o.Status.String()).Inc()
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(r *model.RunReport) {
	if m == nil || r == nil {
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
	m.RunDuration.Observe(r.Elapsed.Seconds())
	m.Candidates.Set(float64(len(r.Candidates)))
	m.LastRunUnix.Set(float64(r.StartedAt.Unix()))
	for _, reg := range []model.Regime{model.RegimeBullish, model.RegimeNeutral, model.RegimeBearish} {
		v := 0.0
		if reg == r.Regime.Regime {
			v = 1
		}
		m.Regime.WithLabelValues(string(reg)).Set(v)
	}
}

// RunFailed counts a run that aborted before producing a report.
func (m *Metrics) RunFailed() {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues("fatal").Inc()
}

// ObserveNotification counts one delivery attempt.
func (m *Metrics) ObserveNotification(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(sink, result).Inc()
}
