// Package metrics registers the Prometheus collectors for probe outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

// Probe sources.
const (
	SourceLoop     = "loop"
	SourceOnDemand = "on_demand"
)

// Metrics holds the collectors. They see every probe, including on-demand
// ones, unlike the aggregate statistics which only the loop feeds.
type Metrics struct {
	ProbesTotal          *prometheus.CounterVec
	RoundTripMS          *prometheus.HistogramVec
	LastSuccessTimestamp prometheus.Gauge
}

// New creates and registers the collectors. If registry is nil,
// prometheus.DefaultRegisterer is used. healthy, when non-nil, backs a
// dynaprobe_healthy gauge evaluated at scrape time.
func New(registry prometheus.Registerer, healthy func() bool) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ProbesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dynaprobe_probes_total",
				Help: "Probe attempts by source and outcome (SUCCESS, TIMEOUT, FAILED).",
			},
			[]string{"source", "outcome"},
		),
		RoundTripMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dynaprobe_round_trip_milliseconds",
				Help:    "Wall-clock duration of probe attempts in milliseconds, success or failure.",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000},
			},
			[]string{"source"},
		),
		LastSuccessTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dynaprobe_last_success_timestamp_seconds",
				Help: "Unix time of the last successful loop probe.",
			},
		),
	}

	registry.MustRegister(m.ProbesTotal, m.RoundTripMS, m.LastSuccessTimestamp)

	if healthy != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "dynaprobe_healthy",
				Help: "1 when a loop probe succeeded within the health window, else 0.",
			},
			func() float64 {
				if healthy() {
					return 1
				}
				return 0
			},
		))
	}

	return m
}

// Observe records one probe result.
func (m *Metrics) Observe(source string, r domain.ProbeResult) {
	m.ProbesTotal.WithLabelValues(source, r.Outcome()).Inc()
	m.RoundTripMS.WithLabelValues(source).Observe(r.RoundTripMS)
	if r.Success && source == SourceLoop {
		m.LastSuccessTimestamp.Set(float64(r.CheckedAt.UnixNano()) / 1e9)
	}
}
