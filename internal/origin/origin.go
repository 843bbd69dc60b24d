// Package origin decides which browser origins may open signaling sockets and
// call the HTTP API.
package origin

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Wildcard in an allow list admits every origin.
const Wildcard = "*"

// NormalizeHeader validates and normalizes a browser Origin header.
//
// It returns the normalized origin (scheme://host[:port], default ports
// dropped) and the host[:port] portion. The special value "null" is returned
// as-is with an empty host.
func NormalizeHeader(originHeader string) (normalizedOrigin string, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalAuthority(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// IsAllowed reports whether a normalized origin may reach requestHost.
//
// A non-empty allow list is matched exactly (or via "*"). An empty list falls
// back to same-host: the origin's host[:port] must equal the request Host
// header. Scheme is not compared so TLS-terminating proxies keep working.
func IsAllowed(normalizedOrigin, originHost, requestHost string, allowedOrigins []string) bool {
	if len(allowedOrigins) > 0 {
		for _, allowed := range allowedOrigins {
			if allowed == Wildcard || allowed == normalizedOrigin {
				return true
			}
		}
		return false
	}

	var scheme string
	switch {
	case strings.HasPrefix(normalizedOrigin, "http://"):
		scheme = "http"
	case strings.HasPrefix(normalizedOrigin, "https://"):
		scheme = "https"
	default:
		return false
	}

	requestAuthority, ok := canonicalAuthority(strings.TrimSpace(requestHost), scheme)
	if !ok {
		return false
	}
	return originHost == requestAuthority
}

// Policy is the origin check applied to signaling upgrades.
//
// Requests without an Origin header come from non-browser clients and are
// admitted; browsers always send one on WebSocket handshakes.
type Policy struct {
	allowed  []string
	sameHost bool
}

// NewPolicy builds a policy from normalized allow-list entries. An empty list
// admits any origin, matching the open CORS stance of the HTTP routes. Use
// SameHostPolicy to restrict to the serving host instead.
func NewPolicy(allowedOrigins []string) *Policy {
	return &Policy{allowed: append([]string(nil), allowedOrigins...)}
}

func SameHostPolicy() *Policy {
	return &Policy{sameHost: true}
}

// AllowsAny reports whether every origin is admitted.
func (p *Policy) AllowsAny() bool {
	if p == nil {
		return true
	}
	if p.sameHost {
		return false
	}
	if len(p.allowed) == 0 {
		return true
	}
	for _, allowed := range p.allowed {
		if allowed == Wildcard {
			return true
		}
	}
	return false
}

// Allowed returns the configured allow list (nil for "any" or same-host).
func (p *Policy) Allowed() []string {
	if p == nil || p.AllowsAny() {
		return nil
	}
	return append([]string(nil), p.allowed...)
}

// CheckRequest is shaped to plug into websocket.Upgrader.CheckOrigin.
func (p *Policy) CheckRequest(r *http.Request) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return true
	}
	normalized, host, ok := NormalizeHeader(raw)
	if !ok {
		return false
	}
	if p.AllowsAny() {
		return true
	}
	if p.sameHost {
		return IsAllowed(normalized, host, r.Host, nil)
	}
	return IsAllowed(normalized, host, r.Host, p.allowed)
}

// canonicalAuthority lowercases host[:port], validates the port, brackets IPv6
// literals and drops the scheme's default port.
func canonicalAuthority(rawHost, scheme string) (string, bool) {
	rawHostname, rawPort, ok := splitHostPort(rawHost)
	if !ok {
		return "", false
	}
	hostname := strings.ToLower(rawHostname)
	if hostname == "" {
		return "", false
	}

	var port uint64
	if rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.FormatUint(port, 10)
	}
	return host, true
}

// splitHostPort splits host[:port]. IPv6 hostnames come back without
// brackets; the port is returned unvalidated.
func splitHostPort(rawHost string) (hostname, port string, ok bool) {
	if rawHost == "" {
		return "", "", false
	}

	if strings.HasPrefix(rawHost, "[") {
		end := strings.IndexByte(rawHost, ']')
		if end < 0 {
			return "", "", false
		}
		hostname = rawHost[1:end]
		rest := rawHost[end+1:]
		if rest == "" {
			return hostname, "", true
		}
		if !strings.HasPrefix(rest, ":") || len(rest) == 1 {
			return "", "", false
		}
		return hostname, rest[1:], true
	}

	switch strings.Count(rawHost, ":") {
	case 0:
		return rawHost, "", true
	case 1:
		hostname, port, _ = strings.Cut(rawHost, ":")
		if hostname == "" || port == "" {
			return "", "", false
		}
		return hostname, port, true
	default:
		// Unbracketed IPv6 is not a valid authority.
		return "", "", false
	}
}
