// Package metrics exposes Prometheus metrics for the care workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkflowMetrics holds counters for state transitions and the
// best-effort notification pipeline. All methods are nil-safe so wiring
// them up stays optional in tests.
type WorkflowMetrics struct {
	transitionsTotal       *prometheus.CounterVec
	notificationsDelivered prometheus.Counter
	notificationsDeferred  prometheus.Counter
	notificationsDropped   prometheus.Counter
	deferredQueueDepth     prometheus.Gauge
}

func New(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "State machine transition attempts by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}),
		notificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Notifications persisted to the sink",
		}),
		notificationsDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "deferred_total",
			Help:      "Notification writes that failed and were queued for retry",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Deferred notifications abandoned after exhausting retries",
		}),
		deferredQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "deferred_queue_depth",
			Help:      "Deferred notifications currently waiting for retry",
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.transitionsTotal,
		m.notificationsDelivered,
		m.notificationsDeferred,
		m.notificationsDropped,
		m.deferredQueueDepth,
	)
	return m
}

func (m *WorkflowMetrics) ObserveTransition(entity, action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(entity, action, outcome).Inc()
}

func (m *WorkflowMetrics) NotificationDelivered() {
	if m == nil {
		return
	}
	m.notificationsDelivered.Inc()
}

func (m *WorkflowMetrics) NotificationDeferred() {
	if m == nil {
		return
	}
	m.notificationsDeferred.Inc()
}

func (m *WorkflowMetrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

func (m *WorkflowMetrics) SetDeferredQueueDepth(n int) {
	if m == nil {
		return
	}
	m.deferredQueueDepth.Set(float64(n))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
