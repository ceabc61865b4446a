package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "collab"

// room coordinator instrumentation. A nil *Metrics is valid and records nothing.
type Metrics struct {
	roomsActive      prometheus.Gauge
	sessionsActive   prometheus.Gauge
	messages         *prometheus.CounterVec
	broadcasts       prometheus.Counter
	sessionsPruned   prometheus.Counter
	persistFailures  *prometheus.CounterVec
	roomsEvicted     prometheus.Counter
	rejectedConnects *prometheus.CounterVec
}

// registers the collectors on reg (prometheus.DefaultRegisterer in production)
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		roomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with a running actor.",
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions registered across all rooms.",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound client messages by decoded type.",
		}, []string{"type"}),
		broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Fan-out operations performed by rooms.",
		}),
		sessionsPruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_pruned_total",
			Help:      "Sessions removed after a failed send.",
		}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Replay store writes that failed after retry.",
		}, []string{"op"}),
		roomsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_evicted_total",
			Help:      "Idle rooms whose state was purged by the reaper.",
		}),
		rejectedConnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_rejected_total",
			Help:      "Connection attempts refused by a room.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) RoomStarted() {
	if m != nil {
		m.roomsActive.Inc()
	}
}

func (m *Metrics) RoomStopped() {
	if m != nil {
		m.roomsActive.Dec()
	}
}

func (m *Metrics) SessionJoined() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) SessionLeft() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

func (m *Metrics) Message(msgType string) {
	if m != nil {
		m.messages.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) Broadcast() {
	if m != nil {
		m.broadcasts.Inc()
	}
}

func (m *Metrics) SessionPruned() {
	if m != nil {
		m.sessionsPruned.Inc()
	}
}

func (m *Metrics) PersistFailed(op string) {
	if m != nil {
		m.persistFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) RoomEvicted() {
	if m != nil {
		m.roomsEvicted.Inc()
	}
}

func (m *Metrics) ConnectRejected(reason string) {
	if m != nil {
		m.rejectedConnects.WithLabelValues(reason).Inc()
	}
}
