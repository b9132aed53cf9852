// Package metrics holds the Prometheus instruments for the socket hub, the
// seat state machine and the expiry sweeper. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyhall"

// Metrics groups every instrument the service exports.
type Metrics struct {
	ConnectionsActive   prometheus.Gauge
	MessagesReceived    *prometheus.CounterVec // by type
	MessagesRejected    *prometheus.CounterVec // by reason
	BroadcastDeliveries prometheus.Counter
	BroadcastDropped    prometheus.Counter
	SeatTransitions     *prometheus.CounterVec // by action, result
	SeatsSwept          prometheus.Counter
	SensorReadings      prometheus.Counter
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connections_active",
			Help:      "Number of registered client connections",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "Decoded client messages by type",
		}, []string{"type"}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_rejected_total",
			Help:      "Client lines dropped before dispatch by reason",
		}, []string{"reason"}),
		BroadcastDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "deliveries_total",
			Help:      "Frames queued to client connections",
		}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Frames dropped because a client could not accept them",
		}),
		SeatTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "occupancy",
			Name:      "transitions_total",
			Help:      "Seat state transitions by action and result",
		}, []string{"action", "result"}),
		SeatsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "seats_released_total",
			Help:      "Seats force-released after exceeding the away threshold",
		}),
		SensorReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "readings_total",
			Help:      "Sensor readings ingested",
		}),
	}

	collectors := []prometheus.Collector{
		m.ConnectionsActive,
		m.MessagesReceived,
		m.MessagesRejected,
		m.BroadcastDeliveries,
		m.BroadcastDropped,
		m.SeatTransitions,
		m.SeatsSwept,
		m.SensorReadings,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ConnectionsActive.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ConnectionsActive.Dec()
	}
}

func (m *Metrics) Received(msgType string) {
	if m != nil {
		m.MessagesReceived.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.MessagesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Delivered(n int) {
	if m != nil {
		m.BroadcastDeliveries.Add(float64(n))
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.BroadcastDropped.Inc()
	}
}

func (m *Metrics) Transition(action, result string) {
	if m != nil {
		m.SeatTransitions.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) Swept(n int) {
	if m != nil {
		m.SeatsSwept.Add(float64(n))
	}
}

func (m *Metrics) SensorReading() {
	if m != nil {
		m.SensorReadings.Inc()
	}
}
