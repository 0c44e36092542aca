// Package observability holds the bot's Prometheus collectors and the
// optional HTTP endpoint serving health, metrics and pprof.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deadlinebot/internal/conversation"
)

const namespace = "deadlinebot"

// Metrics implements the observer hooks of the dispatcher, the conversation
// engine and the reminder service. A nil *Metrics records nothing.
type Metrics struct {
	updates        *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	dropped        *prometheus.CounterVec
	flowEvents     *prometheus.CounterVec
	reminders      *prometheus.CounterVec
	reminderTook   prometheus.Histogram
	sessions       prometheus.GaugeFunc
	scheduled      prometheus.GaugeFunc
}

// Gauges supplies values sampled at scrape time.
type Gauges struct {
	Sessions  func() int
	Scheduled func() int
}

// NewMetrics registers the collectors with reg (the default registerer when
// nil).
func NewMetrics(reg prometheus.Registerer, g Gauges) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "updates_total",
			Help: "Updates handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "router", Name: "update_duration_seconds",
			Help:    "Time spent handling one update.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "updates_dropped_total",
			Help: "Updates dropped before handling.",
		}, []string{"reason"}),
		flowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "conversation", Name: "flow_events_total",
			Help: "Conversation lifecycle events per flow.",
		}, []string{"flow", "event"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reminder", Name: "fired_total",
			Help: "Daily reminder runs by outcome.",
		}, []string{"outcome"}),
		reminderTook: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "reminder", Name: "fire_duration_seconds",
			Help:    "Duration of one reminder run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	cs := []prometheus.Collector{m.updates, m.updateDuration, m.dropped, m.flowEvents, m.reminders, m.reminderTook}
	if g.Sessions != nil {
		m.sessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "conversation", Name: "sessions",
			Help: "Open conversation sessions.",
		}, func() float64 { return float64(g.Sessions()) })
		cs = append(cs, m.sessions)
	}
	if g.Scheduled != nil {
		m.scheduled = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "reminder", Name: "scheduled_users",
			Help: "Users with a registered daily reminder.",
		}, func() float64 { return float64(g.Scheduled()) })
		cs = append(cs, m.scheduled)
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) UpdateHandled(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind, outcome).Inc()
	m.updateDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) UpdateDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) FlowEvent(flow conversation.Flow, event string) {
	if m == nil {
		return
	}
	m.flowEvents.WithLabelValues(string(flow), event).Inc()
}

func (m *Metrics) ReminderFired(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
	m.reminderTook.Observe(took.Seconds())
}
