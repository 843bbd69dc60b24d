package signaling

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/events"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/room"
)

// Peer is the hub's handle on one connection.
type Peer interface {
	ID() string
	// Enqueue must not block. It reports false when the frame was dropped.
	Enqueue(frame []byte) bool
	// Close stops the connection's writer after it flushes queued frames.
	Close()
}

type HubConfig struct {
	// Store defaults to an empty room.MemoryStore.
	Store   room.Store
	Metrics *metrics.Metrics
	// Events defaults to events.Nop.
	Events events.Publisher
	Logger *slog.Logger
	// Backlog is the capacity of the hub's inbound operation queue.
	Backlog int
}

const defaultHubBacklog = 256

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opMessage
	opStats
)

type hubOp struct {
	kind  opKind
	peer  Peer
	id    string
	frame []byte
	reply chan Stats
}

// Stats is a snapshot of hub state.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Connections  int `json:"connections"`
}

// Hub serializes every state change through one goroutine. All operations
// travel over one FIFO channel, so a connection's register, frames and
// unregister are handled in the order it submitted them.
type Hub struct {
	store       room.Store
	peers       map[string]Peer
	router      *Router
	coordinator *Coordinator
	metrics     *metrics.Metrics
	log         *slog.Logger

	ops  chan hubOp
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Store == nil {
		cfg.Store = room.NewMemoryStore()
	}
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultHubBacklog
	}

	peers := make(map[string]Peer)
	router := &Router{
		store:   cfg.Store,
		peers:   peers,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	return &Hub{
		store:  cfg.Store,
		peers:  peers,
		router: router,
		coordinator: &Coordinator{
			store:   cfg.Store,
			router:  router,
			members: make(map[string]*membership),
			events:  cfg.Events,
			metrics: cfg.Metrics,
			log:     cfg.Logger,
		},
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		ops:     make(chan hubOp, cfg.Backlog),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run processes operations until Close is called. Remaining peers are closed
// on the way out.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for id, p := range h.peers {
				p.Close()
				delete(h.peers, id)
			}
			return
		case op := <-h.ops:
			h.handle(op)
		}
	}
}

// Close stops Run and waits for it to exit. It is safe to call more than
// once, and from any goroutine other than the hub's own.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
}

func (h *Hub) Register(p Peer) error {
	return h.submit(hubOp{kind: opRegister, peer: p, id: p.ID()})
}

// Unregister is the transport-level disconnect.
func (h *Hub) Unregister(connID string) {
	_ = h.submit(hubOp{kind: opUnregister, id: connID})
}

// Submit hands one inbound frame from connID to the hub.
func (h *Hub) Submit(connID string, frame []byte) error {
	return h.submit(hubOp{kind: opMessage, id: connID, frame: frame})
}

// Stats round-trips through the hub so the numbers are consistent with every
// operation submitted before the call.
func (h *Hub) Stats() (Stats, error) {
	reply := make(chan Stats, 1)
	if err := h.submit(hubOp{kind: opStats, reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-h.done:
		return Stats{}, errHubClosed
	}
}

func (h *Hub) submit(op hubOp) error {
	select {
	case <-h.quit:
		return errHubClosed
	default:
	}
	select {
	case h.ops <- op:
		return nil
	case <-h.quit:
		return errHubClosed
	}
}

func (h *Hub) handle(op hubOp) {
	switch op.kind {
	case opRegister:
		h.register(op.peer)
	case opUnregister:
		h.unregister(op.id)
	case opMessage:
		h.dispatch(op.id, op.frame)
	case opStats:
		st := h.store.Stats()
		op.reply <- Stats{Rooms: st.Rooms, Participants: st.Participants, Connections: len(h.peers)}
	}
}

func (h *Hub) register(p Peer) {
	id := p.ID()
	if old, ok := h.peers[id]; ok {
		// Ids are random UUIDs; a collision means a caller bug.
		h.log.Error("duplicate connection id", "conn_id", id)
		old.Close()
	}
	h.peers[id] = p
	h.coordinator.track(id)
	h.metrics.Inc(metrics.ConnectionOpened)
	h.metrics.SetConnections(len(h.peers))

	if frame, err := encodeFrame(TypeConnected, ConnectedPayload{ConnectionID: id}); err == nil {
		h.router.Deliver(id, frame)
	}
	h.log.Debug("connection registered", "conn_id", id)
}

func (h *Hub) unregister(connID string) {
	p, ok := h.peers[connID]
	if !ok {
		return
	}
	h.coordinator.Disconnect(connID)
	delete(h.peers, connID)
	p.Close()
	h.metrics.Inc(metrics.ConnectionClosed)
	h.metrics.SetConnections(len(h.peers))
	h.log.Debug("connection unregistered", "conn_id", connID)
}

// dispatch decodes one frame and runs the matching operation. Bad frames are
// answered with an error event to the sender and change nothing.
func (h *Hub) dispatch(connID string, frame []byte) {
	if _, ok := h.peers[connID]; !ok {
		return
	}
	if err := h.apply(connID, frame); err != nil {
		code := errorCode(err)
		switch code {
		case CodeUnknownType:
			h.metrics.Inc(metrics.UnknownType)
		case CodeBadMessage:
			h.metrics.Inc(metrics.BadMessage)
		default:
			h.metrics.Inc(metrics.JoinRejected)
		}
		h.log.Debug("rejected signaling message", "conn_id", connID, "code", code, "err", err)
		h.router.SendError(connID, code, err.Error())
	}
}

func (h *Hub) apply(connID string, frame []byte) error {
	env, err := parseEnvelope(frame)
	if err != nil {
		return err
	}

	switch env.Type {
	case TypeJoinRoom:
		req, err := decodeJoin(env.Payload)
		if err != nil {
			return err
		}
		return h.coordinator.Join(connID, req.RoomID, req.UserName)

	case TypeOffer, TypeAnswer, TypeICECandidate:
		req, err := decodeRelay(env.Type, env.Payload)
		if err != nil {
			return err
		}
		if req.Body == nil {
			h.metrics.Inc(metrics.NullCandidate)
			return nil
		}
		h.router.RelayTargeted(env.Type, req.To, req.Body, connID)
		return nil

	case TypeSendMessage:
		req, err := decodeChat(env.Payload)
		if err != nil {
			return err
		}
		out, err := chatFrame(connID, req.Message)
		if err != nil {
			return err
		}
		h.metrics.Inc(metrics.ChatMessage)
		h.router.Broadcast(req.RoomID, out, connID)
		return nil

	case TypeToggleCamera, TypeToggleMic:
		req, err := decodeToggle(env.Payload)
		if err != nil {
			return err
		}
		if env.Type == TypeToggleCamera {
			h.coordinator.ToggleCamera(connID, req.RoomID, *req.Enabled)
		} else {
			h.coordinator.ToggleMic(connID, req.RoomID, *req.Enabled)
		}
		return nil

	case TypeLeaveRoom:
		roomID, err := decodeLeave(env.Payload)
		if err != nil {
			return err
		}
		h.coordinator.Leave(connID, roomID)
		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownType, env.Type)
	}
}
