package main

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/events"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/origin"
	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/signaling"
)

const redisConnectTimeout = 5 * time.Second

// app is the wired process: one hub, its WebSocket endpoint and the HTTP
// surface around it.
type app struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	events  events.Publisher
	hub     *signaling.Hub
	http    *httpserver.Server

	closeOnce sync.Once
}

// newApp builds every component and starts the hub. The hub is running when
// newApp returns, so Shutdown is always safe to call.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, build httpserver.BuildInfo) *app {
	m := metrics.New()
	pub := newEventPublisher(ctx, cfg, m, logger)

	hub := signaling.NewHub(signaling.HubConfig{
		Metrics: m,
		Events:  pub,
		Logger:  logger,
	})
	go hub.Run()

	origins := origin.NewPolicy(cfg.AllowedOrigins)
	sig := signaling.NewServer(signaling.Config{
		Hub:             hub,
		Origins:         origins,
		IdleTimeout:     cfg.SignalingWSIdleTimeout,
		PingInterval:    cfg.SignalingWSPingInterval,
		MaxMessageBytes: cfg.MaxSignalingMessageBytes,
		SendQueueBytes:  cfg.SendQueueBytes,
		Metrics:         m,
		Logger:          logger,
	})

	srv := httpserver.New(cfg, logger, build, httpserver.Options{
		Origins: origins,
		Rooms:   hub,
		Metrics: m.Handler(),
	})
	sig.RegisterRoutes(srv.Mux())

	return &app{
		log:     logger,
		metrics: m,
		events:  pub,
		hub:     hub,
		http:    srv,
	}
}

// newEventPublisher connects the membership event bus when REDIS_URL is set.
// Signaling never depends on it: a failed connection logs and falls back to a
// no-op publisher.
func newEventPublisher(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) events.Publisher {
	if cfg.RedisURL == "" {
		return events.Nop{}
	}

	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	pub, err := events.NewRedisPublisher(connectCtx, events.RedisOptions{
		URL:     cfg.RedisURL,
		Channel: cfg.RedisChannel,
		OnDrop:  func() { m.Inc(metrics.EventBusDropped) },
	}, logger)
	if err != nil {
		logger.Warn("room event bus disabled", "err", err, "redis_host", safeURLHost(cfg.RedisURL))
		return events.Nop{}
	}
	logger.Info("room event bus connected", "redis_host", safeURLHost(cfg.RedisURL), "channel", cfg.RedisChannel)
	return pub
}

func (a *app) Serve(ln net.Listener) error {
	return a.http.Serve(ln)
}

// Shutdown stops accepting HTTP requests, then closes every signaling
// connection and flushes pending membership events.
func (a *app) Shutdown(ctx context.Context) error {
	err := a.http.Shutdown(ctx)
	a.closeBackground()
	return err
}

func (a *app) closeBackground() {
	a.closeOnce.Do(func() {
		a.hub.Close()
		if err := a.events.Close(); err != nil {
			a.log.Warn("room event bus close failed", "err", err)
		}
	})
}
