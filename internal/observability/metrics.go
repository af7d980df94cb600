package observability

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons for MovesDropped.
const (
	ReasonRoomNotFound    = "room_not_found"
	ReasonMalformedBoard  = "malformed_board_state"
	ReasonIllegalMove     = "illegal_move"
	ReasonBroadcastFailed = "broadcast_failed"
)

// Metrics groups the session engine's Prometheus collectors.
type Metrics struct {
	RoomsCreated  prometheus.Counter
	RoomsActive   prometheus.Gauge
	RoomsEvicted  prometheus.Counter
	SeatsAssigned *prometheus.CounterVec
	MovesAccepted prometheus.Counter
	MovesDropped  *prometheus.CounterVec
	Subscribers   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chess",
			Name:      "rooms_created_total",
			Help:      "Rooms created since start.",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chess",
			Name:      "rooms_active",
			Help:      "Rooms currently held in the registry.",
		}),
		RoomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chess",
			Name:      "rooms_evicted_total",
			Help:      "Rooms removed by the idle sweep.",
		}),
		SeatsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chess",
			Name:      "seats_assigned_total",
			Help:      "Seat assignments by seat.",
		}, []string{"seat"}),
		MovesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chess",
			Name:      "moves_accepted_total",
			Help:      "Moves applied to a room.",
		}),
		MovesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chess",
			Name:      "moves_dropped_total",
			Help:      "Moves not applied or not delivered, by reason.",
		}, []string{"reason"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chess",
			Name:      "ws_subscribers",
			Help:      "Open websocket subscriptions.",
		}),
	}
	reg.MustRegister(
		m.RoomsCreated,
		m.RoomsActive,
		m.RoomsEvicted,
		m.SeatsAssigned,
		m.MovesAccepted,
		m.MovesDropped,
		m.Subscribers,
	)
	return m
}

// NewNopMetrics returns collectors registered with a throwaway registry.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
