package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/origin"
)

// Config wires the WebSocket transport to a running Hub.
type Config struct {
	Hub *Hub

	// Origins gates the upgrade. Nil admits every origin.
	Origins *origin.Policy

	// IdleTimeout closes connections that send nothing, not even a pong, for
	// this long. PingInterval must be shorter.
	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes int64
	SendQueueBytes  int

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// NewID generates connection ids. Defaults to uuid.NewString.
	NewID func() string
}

// Server serves GET /ws.
type Server struct {
	hub      *Hub
	metrics  *metrics.Metrics
	log      *slog.Logger
	newID    func() string
	upgrader websocket.Upgrader

	idleTimeout     time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64
	sendQueueBytes  int
}

func NewServer(cfg Config) *Server {
	s := &Server{
		hub:             cfg.Hub,
		metrics:         cfg.Metrics,
		log:             cfg.Logger,
		newID:           cfg.NewID,
		idleTimeout:     cfg.IdleTimeout,
		pingInterval:    cfg.PingInterval,
		maxMessageBytes: cfg.MaxMessageBytes,
		sendQueueBytes:  cfg.SendQueueBytes,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = 60 * time.Second
	}
	if s.pingInterval <= 0 || s.pingInterval >= s.idleTimeout {
		s.pingInterval = s.idleTimeout / 3
	}
	if s.maxMessageBytes <= 0 {
		s.maxMessageBytes = 64 * 1024
	}
	if s.sendQueueBytes <= 0 {
		s.sendQueueBytes = 1 << 20
	}

	policy := cfg.Origins
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if policy.CheckRequest(r) {
				return true
			}
			s.metrics.Inc(metrics.ConnectionRejected)
			s.log.Warn("rejected signaling origin", "origin", r.Header.Get("Origin"))
			return false
		},
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "signaling hub not configured", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:              s.newID(),
		conn:            conn,
		hub:             s.hub,
		queue:           newSendQueue(s.sendQueueBytes),
		log:             s.log,
		idleTimeout:     s.idleTimeout,
		pingInterval:    s.pingInterval,
		maxMessageBytes: s.maxMessageBytes,
		stop:            make(chan struct{}),
	}
	if err := s.hub.Register(c); err != nil {
		writeClose(conn, websocket.CloseGoingAway, "server shutting down")
		_ = conn.Close()
		return
	}
	s.log.Debug("signaling websocket connected", "conn_id", c.id, "remote_addr", r.RemoteAddr)

	go c.writePump()
	go c.pingLoop()
	c.readPump()
}
