package main

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

func hasTURNServer(servers []webrtc.ICEServer) bool {
	for _, server := range servers {
		if iceServerHasTURNURL(server) {
			return true
		}
	}
	return false
}

// turnServersMissingCredentials returns the TURN entries browsers will not be
// able to authenticate against.
func turnServersMissingCredentials(servers []webrtc.ICEServer) []webrtc.ICEServer {
	var out []webrtc.ICEServer
	for _, server := range servers {
		if !iceServerHasTURNURL(server) {
			continue
		}
		cred, _ := server.Credential.(string)
		if strings.TrimSpace(server.Username) == "" || strings.TrimSpace(cred) == "" {
			out = append(out, server)
		}
	}
	return out
}

func iceServerHasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		url := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			return true
		}
	}
	return false
}
