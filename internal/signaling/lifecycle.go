package signaling

import (
	"log/slog"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/events"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/room"
)

// State is a connection's position in the membership lifecycle.
type State int

const (
	StateUnjoined State = iota
	StateActive
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateActive:
		return "active"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

type membership struct {
	state  State
	roomID string
	name   string
}

// Coordinator runs the Unjoined -> Active -> Left transitions for every
// connection. Left is terminal.
type Coordinator struct {
	store   room.Store
	router  *Router
	members map[string]*membership
	events  events.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
}

func (c *Coordinator) track(connID string) {
	c.members[connID] = &membership{state: StateUnjoined}
}

// State reports connID's lifecycle state; untracked connections read as Left.
func (c *Coordinator) State(connID string) State {
	m, ok := c.members[connID]
	if !ok {
		return StateLeft
	}
	return m.state
}

// Join adds connID to roomID. The roster snapshot is queued to the joiner
// before user-joined is queued to anyone else.
func (c *Coordinator) Join(connID, roomID, name string) error {
	m := c.members[connID]
	if m == nil {
		return errConnectionLeft
	}
	switch m.state {
	case StateActive:
		return errAlreadyJoined
	case StateLeft:
		return errConnectionLeft
	}

	if _, created := c.store.GetOrCreate(roomID); created {
		c.metrics.Inc(metrics.RoomCreated)
		c.events.Publish(events.Event{Kind: events.RoomCreated, RoomID: roomID})
		c.log.Info("room created", "room_id", roomID)
	}

	p := room.NewParticipant(connID, name)
	c.store.Add(roomID, p)
	m.state = StateActive
	m.roomID = roomID
	m.name = name

	if frame, err := rosterFrame(c.store.Snapshot(roomID, connID)); err == nil {
		c.router.Deliver(connID, frame)
	}
	if frame, err := encodeFrame(TypeUserJoined, p); err == nil {
		c.router.Broadcast(roomID, frame, connID)
	}

	count := len(c.store.Members(roomID))
	c.metrics.Inc(metrics.Join)
	c.syncGauges()
	c.events.Publish(events.Event{
		Kind:         events.ParticipantJoined,
		RoomID:       roomID,
		ConnectionID: connID,
		Name:         name,
		Participants: count,
	})
	c.log.Info("participant joined", "conn_id", connID, "room_id", roomID, "name", name, "participants", count)
	return nil
}

// ToggleCamera updates the caller's camera flag and tells the rest of the
// room. Callers that are not Active members of roomID are ignored.
func (c *Coordinator) ToggleCamera(connID, roomID string, enabled bool) {
	c.toggle(connID, roomID, enabled, TypeUserToggleCamera, c.store.SetCamera, metrics.ToggleCamera)
}

func (c *Coordinator) ToggleMic(connID, roomID string, enabled bool) {
	c.toggle(connID, roomID, enabled, TypeUserToggleMic, c.store.SetMic, metrics.ToggleMic)
}

func (c *Coordinator) toggle(connID, roomID string, enabled bool, kind string, set func(string, string, bool) bool, metric string) {
	if c.State(connID) != StateActive || !set(roomID, connID, enabled) {
		c.metrics.Inc(metrics.ToggleIgnored)
		return
	}
	c.metrics.Inc(metric)
	frame, err := encodeFrame(kind, ToggleNotice{ConnectionID: connID, Enabled: enabled})
	if err != nil {
		return
	}
	c.router.Broadcast(roomID, frame, connID)
}

// Leave is the explicit departure. It only applies to the caller's current
// room; a leave naming any other room is ignored.
func (c *Coordinator) Leave(connID, roomID string) {
	m := c.members[connID]
	if m == nil || m.state != StateActive || m.roomID != roomID {
		return
	}
	c.depart(connID, m, "leave")
}

// Disconnect handles transport loss. The room is found through the reverse
// index; a connection in no room is a no-op. The connection is forgotten
// afterwards.
func (c *Coordinator) Disconnect(connID string) {
	m := c.members[connID]
	delete(c.members, connID)

	roomID, ok := c.store.LocateRoom(connID)
	if !ok {
		return
	}
	if m == nil {
		m = &membership{state: StateActive, roomID: roomID}
	}
	m.roomID = roomID
	c.depart(connID, m, "disconnect")
}

// depart is the single removal path shared by Leave and Disconnect.
func (c *Coordinator) depart(connID string, m *membership, reason string) {
	roomID := m.roomID
	p, removed, deleted := c.store.RemoveAndCleanup(roomID, connID)
	m.state = StateLeft

	name := m.name
	if removed {
		name = p.Name
	}

	if !deleted {
		if frame, err := encodeFrame(TypeUserLeft, LeftNotice{ConnectionID: connID, Name: name}); err == nil {
			c.router.Broadcast(roomID, frame, connID)
		}
	}

	if reason == "disconnect" {
		c.metrics.Inc(metrics.DisconnectCleanup)
	} else {
		c.metrics.Inc(metrics.Leave)
	}
	c.syncGauges()

	remaining := len(c.store.Members(roomID))
	c.events.Publish(events.Event{
		Kind:         events.ParticipantLeft,
		RoomID:       roomID,
		ConnectionID: connID,
		Name:         name,
		Participants: remaining,
	})
	c.log.Info("participant left", "conn_id", connID, "room_id", roomID, "name", name, "reason", reason)

	if deleted {
		c.metrics.Inc(metrics.RoomDeleted)
		c.events.Publish(events.Event{Kind: events.RoomDeleted, RoomID: roomID})
		c.log.Info("room deleted", "room_id", roomID)
		return
	}
	c.log.Debug("room status", "room_id", roomID, "participants", remaining)
}

func (c *Coordinator) syncGauges() {
	st := c.store.Stats()
	c.metrics.SetRooms(st.Rooms, st.Participants)
}
