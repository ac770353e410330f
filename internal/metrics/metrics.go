// Package metrics exposes Prometheus collectors for the stylization pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stylebot"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	pipelineRuns  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	fetchRetries  *prometheus.CounterVec
	replies       *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.registry = reg
	return m
}

// MustNewMetrics constructs collectors on reg and panics on duplicate registration.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Completed pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration spent in each pipeline stage.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage", "status"},
		),
		fetchRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Media fetch attempts that were retried.",
			},
			[]string{"cause"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messaging",
				Name:      "replies_total",
				Help:      "Replies sent to users by delivery status.",
			},
			[]string{"status"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "requests_total",
				Help:      "Inbound webhook requests by branch taken.",
			},
			[]string{"branch"},
		),
	}
	reg.MustRegister(m.pipelineRuns, m.stageDuration, m.fetchRetries, m.replies, m.webhooks)
	return m
}

// Handler serves the metrics registry, or the default gatherer when the
// collectors were registered elsewhere.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(time.Since(started).Seconds())
}

func (m *Metrics) PipelineRun(outcome string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

// FetchRetried matches the media.Fetcher retry hook signature.
func (m *Metrics) FetchRetried(_ int, cause string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(retryCause(cause)).Inc()
}

func (m *Metrics) ReplySent(err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.replies.WithLabelValues(status).Inc()
}

func (m *Metrics) Webhook(branch string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(branch).Inc()
}

// retryCause keeps label cardinality bounded: status texts pass through,
// transport errors collapse into one value.
func retryCause(cause string) string {
	switch cause {
	case http.StatusText(http.StatusBadGateway),
		http.StatusText(http.StatusServiceUnavailable),
		http.StatusText(http.StatusGatewayTimeout):
		return cause
	default:
		return "transport"
	}
}
