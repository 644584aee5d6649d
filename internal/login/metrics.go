package login

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsReporter records attempts in a private registry and, when a path is
// set, writes them in the node-exporter textfile format at the end of a run.
type MetricsReporter struct {
	path string
	reg  *prometheus.Registry

	attempts    *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewMetricsReporter registers the collectors; path may be empty.
func NewMetricsReporter(path string) *MetricsReporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &MetricsReporter{
		path: path,
		reg:  reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panellogin",
			Name:      "attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "panellogin",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful login per account.",
		}, []string{"username", "panel"}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "panellogin",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of the last batch.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "panellogin",
			Name:      "batch_last_run_timestamp_seconds",
			Help:      "Unix time the last batch finished.",
		}),
	}
}

// Registry exposes the collectors, mostly for tests.
func (m *MetricsReporter) Registry() *prometheus.Registry { return m.reg }

// Start is a no-op.
func (m *MetricsReporter) Start(*BatchRun) {}

// Emit counts the attempt and stamps the last success of the account.
func (m *MetricsReporter) Emit(r Result) {
	m.attempts.WithLabelValues(r.Outcome.String()).Inc()
	if r.Succeeded() {
		m.lastSuccess.WithLabelValues(r.Username, strconv.Itoa(r.PanelNumber)).
			Set(float64(r.ObservedAtUTC.Unix()))
	}
}

// Finish records the batch timing and writes the textfile.
func (m *MetricsReporter) Finish(run *BatchRun) error {
	m.duration.Set(run.FinishedAt.Sub(run.StartedAt).Seconds())
	m.lastRun.Set(float64(run.FinishedAt.Unix()))
	if m.path == "" {
		return nil
	}
	Infof("writing metrics to %s", m.path)
	return prometheus.WriteToTextfile(m.path, m.reg)
}
