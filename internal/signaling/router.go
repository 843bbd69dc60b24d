package signaling

import (
	"log/slog"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/room"
)

// Router forwards frames to connections. It keeps no state of its own: the
// directory and the room store belong to the hub, and delivery is
// best-effort and at-most-once.
type Router struct {
	store   room.Store
	peers   map[string]Peer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// Deliver enqueues frame on connID's send queue. It reports false when the
// connection is unknown or its queue is full.
func (r *Router) Deliver(connID string, frame []byte) bool {
	p, ok := r.peers[connID]
	if !ok {
		return false
	}
	if !p.Enqueue(frame) {
		r.metrics.Inc(metrics.SendQueueDropped)
		r.log.Warn("send queue full, dropping frame", "conn_id", connID)
		return false
	}
	return true
}

// RelayTargeted sends a negotiation payload to exactly one connection,
// tagged with the sender. Unknown targets are dropped silently.
func (r *Router) RelayTargeted(kind, to string, body []byte, from string) bool {
	if _, ok := r.peers[to]; !ok {
		r.metrics.Inc(metrics.RelayDropped)
		r.log.Debug("relay target not connected", "event", kind, "conn_id", from, "to", to)
		return false
	}
	frame, err := relayFrame(kind, from, body)
	if err != nil {
		r.metrics.Inc(metrics.BadMessage)
		return false
	}
	if !r.Deliver(to, frame) {
		r.metrics.Inc(metrics.RelayDropped)
		return false
	}
	r.metrics.Inc(metrics.RelayDelivered)
	return true
}

// Broadcast sends frame to every member of roomID except excluding, reading
// membership at call time. It returns the number of queued deliveries.
func (r *Router) Broadcast(roomID string, frame []byte, excluding string) int {
	sent := 0
	for _, connID := range r.store.Members(roomID) {
		if connID == excluding {
			continue
		}
		if r.Deliver(connID, frame) {
			sent++
		}
	}
	r.metrics.Add(metrics.BroadcastFrames, uint64(sent))
	return sent
}

// SendError reports a rejected frame to its sender only.
func (r *Router) SendError(connID, code, message string) {
	frame, err := encodeFrame(TypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	r.Deliver(connID, frame)
}
