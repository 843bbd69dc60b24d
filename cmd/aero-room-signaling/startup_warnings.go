package main

import (
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/config"
)

func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	} else if len(cfg.AllowedOrigins) == 0 && cfg.Mode == config.ModeProd {
		logger.Warn("startup security warning: ALLOWED_ORIGINS is unset while --mode=prod (any website can open signaling sockets)",
			"warning_code", "allowed_origins_unset_in_prod",
			"mode", cfg.Mode,
		)
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("startup warning: ICE server configuration is invalid; /webrtc/ice and /readyz will report errors",
			"warning_code", "ice_config_invalid",
			"err", err,
			"mode", cfg.Mode,
		)
	} else if cfg.Mode == config.ModeProd && !hasTURNServer(cfg.ICEServers) {
		// Peers behind symmetric NAT cannot connect with STUN alone.
		logger.Warn("startup warning: no TURN servers configured while --mode=prod",
			"warning_code", "no_turn_servers_in_prod",
			"ice_servers", len(cfg.ICEServers),
			"mode", cfg.Mode,
		)
	}
	if missing := turnServersMissingCredentials(cfg.ICEServers); len(missing) > 0 {
		logger.Warn("startup warning: TURN servers configured without username/credential",
			"warning_code", "turn_missing_credentials",
			"turn_servers", len(missing),
			"mode", cfg.Mode,
		)
	}

	if cfg.MaxSignalingMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message allocation risk)",
			"warning_code", "max_signaling_message_large",
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
			"mode", cfg.Mode,
		)
	}
	if cfg.SendQueueBytes > 16<<20 { // 16MiB
		logger.Warn("startup security warning: SIGNALING_SEND_QUEUE_BYTES is very large (slow clients can pin a lot of memory)",
			"warning_code", "send_queue_large",
			"send_queue_bytes", cfg.SendQueueBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && redisIsPlaintextRemote(cfg.RedisURL) {
		logger.Warn("startup security warning: REDIS_URL uses plaintext redis:// to a non-loopback host while --mode=prod (prefer rediss://)",
			"warning_code", "redis_plaintext_in_prod",
			"redis_host", safeURLHost(cfg.RedisURL),
			"mode", cfg.Mode,
		)
	}
}

func redisIsPlaintextRemote(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.EqualFold(u.Scheme, "redis") {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return false
	}
	ip := net.ParseIP(host)
	return ip == nil || !ip.IsLoopback()
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}

// safeURLHost returns only the host of raw so credentials in the URL never
// reach the logs.
func safeURLHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
