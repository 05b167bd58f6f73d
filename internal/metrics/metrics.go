package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"icalfilter/internal/filter"
)

const namespace = "icalfilter"

// Event outcomes recorded in the events_total counter.
const (
	OutcomeKept      = "kept"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
)

// Metrics groups the collectors used by the HTTP and watch shells. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	pipeline  prometheus.Histogram
	events    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests served, by status code.",
		}, []string{"code"}),
		pipeline: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_seconds",
			Help:      "Duration of one fetch, filter and encode cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events seen by the pipeline, by outcome.",
		}, []string{"outcome"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Watch mode refresh cycles, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveRequest(code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObservePipeline(d time.Duration) {
	if m == nil {
		return
	}
	m.pipeline.Observe(d.Seconds())
}

// ObserveEvents counts kept events and classifies every event-level
// diagnostic.
func (m *Metrics) ObserveEvents(kept int, diags []filter.Diagnostic) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(OutcomeKept).Add(float64(kept))
	for _, d := range diags {
		switch d.Kind {
		case filter.KindRejected:
			m.events.WithLabelValues(OutcomeRejected).Inc()
		case filter.KindDuplicate:
			m.events.WithLabelValues(OutcomeDuplicate).Inc()
		case filter.KindMissingUID, filter.KindMissingDTStamp:
			m.events.WithLabelValues(OutcomeInvalid).Inc()
		}
	}
}

func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}
