package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	sessionsCreatedCounter  prometheus.Counter
	actionsAppliedCounter   prometheus.Counter
	actionsRejectedCounter  prometheus.Counter
	broadcastsSentCounter   prometheus.Counter
	seatsReplacedCounter    prometheus.Counter
	activeSessionsMapGauge  prometheus.Gauge
}

func (m *metrics) SessionCreated() {
	m.sessionsCreatedCounter.Inc()
}

func (m *metrics) ActionApplied() {
	m.actionsAppliedCounter.Inc()
}

func (m *metrics) ActionRejected() {
	m.actionsRejectedCounter.Inc()
}

func (m *metrics) BroadcastSent() {
	m.broadcastsSentCounter.Inc()
}

func (m *metrics) SeatReplacedWithAI() {
	m.seatsReplacedCounter.Inc()
}

func (m *metrics) SetActiveSessionsMapCount(count int) {
	m.activeSessionsMapGauge.Set(float64(count))
}

var Metrics = &metrics{
	sessionsCreatedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total number of sessions created",
	}),
	actionsAppliedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "actions_applied_total",
		Help: "Total number of accepted player/AI actions",
	}),
	actionsRejectedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "actions_rejected_total",
		Help: "Total number of rejected actions",
	}),
	broadcastsSentCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcasts_sent_total",
		Help: "Total number of state broadcasts pushed to players",
	}),
	seatsReplacedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "seats_replaced_with_ai_total",
		Help: "Total number of human seats converted to AI control",
	}),
	activeSessionsMapGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions_map_entries_count",
		Help: "Count of the entries in the manager activeSessions map",
	}),
}
