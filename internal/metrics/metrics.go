package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the worker's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Probes        *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	Skipped       prometheus.Counter
	StateChanges  *prometheus.CounterVec
	Alerts        *prometheus.CounterVec
	Rotations     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptimeworker_probes_total",
				Help: "Probes by outcome kind (none, network-error, timeout)",
			},
			[]string{"outcome"},
		),
		ProbeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uptimeworker_probe_duration_seconds",
				Help:    "Time from request start to the reported outcome",
				Buckets: prometheus.DefBuckets,
			},
		),
		Skipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "uptimeworker_checks_skipped_total",
				Help: "Checks skipped because the stored record failed validation",
			},
		),
		StateChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptimeworker_state_changes_total",
				Help: "Evaluations that changed a previously checked state",
			},
			[]string{"state"},
		),
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptimeworker_alerts_total",
				Help: "Alert deliveries by result",
			},
			[]string{"result"},
		),
		Rotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uptimeworker_rotations_total",
				Help: "Log stream rotations by result (ok, compress_failed, truncate_failed)",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.Probes, m.ProbeDuration, m.Skipped, m.StateChanges, m.Alerts, m.Rotations)
	return m
}

func (m *Metrics) ObserveProbe(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(outcome).Inc()
	m.ProbeDuration.Observe(seconds)
}

func (m *Metrics) CheckSkipped() {
	if m == nil {
		return
	}
	m.Skipped.Inc()
}

func (m *Metrics) StateChanged(state string) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(state).Inc()
}

func (m *Metrics) Alert(result string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(result).Inc()
}

func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(result).Inc()
}
