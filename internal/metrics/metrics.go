// Package metrics exposes signaling counters and room gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Event names used as the `event` label on aero_room_signaling_events_total.
const (
	ConnectionOpened   = "connection_opened"
	ConnectionClosed   = "connection_closed"
	ConnectionRejected = "connection_rejected"

	Join              = "join"
	JoinRejected      = "join_rejected"
	Leave             = "leave"
	DisconnectCleanup = "disconnect_cleanup"
	RoomCreated       = "room_created"
	RoomDeleted       = "room_deleted"
	ToggleCamera      = "toggle_camera"
	ToggleMic         = "toggle_mic"
	ToggleIgnored     = "toggle_ignored"
	ChatMessage       = "chat_message"
	RelayDelivered    = "relay_delivered"
	RelayDropped      = "relay_dropped"
	BroadcastFrames   = "broadcast_frames"
	NullCandidate     = "ice_candidate_null"
	BadMessage        = "bad_message"
	UnknownType       = "unknown_type"
	SendQueueDropped  = "send_queue_dropped"
	EventBusDropped   = "event_bus_dropped"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	events       *prometheus.CounterVec
	rooms        prometheus.Gauge
	participants prometheus.Gauge
	connections  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aero_room_signaling_events_total",
			Help: "Signaling events by kind.",
		}, []string{"event"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aero_room_signaling_rooms",
			Help: "Rooms with at least one participant.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aero_room_signaling_participants",
			Help: "Participants across all rooms.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aero_room_signaling_connections",
			Help: "Open signaling WebSocket connections.",
		}),
	}
	m.registry.MustRegister(
		m.events,
		m.rooms,
		m.participants,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Add(float64(n))
}

// Get reads back a counter.
func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := m.events.WithLabelValues(name).Write(&out); err != nil {
		return 0
	}
	return uint64(out.GetCounter().GetValue())
}

// SetRooms records the current room and participant totals.
func (m *Metrics) SetRooms(rooms, participants int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(rooms))
	m.participants.Set(float64(participants))
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
