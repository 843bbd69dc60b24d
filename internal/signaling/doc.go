// Package signaling relays WebRTC negotiation and room membership events
// between browser peers over WebSocket.
//
// A single Hub goroutine owns all room state. Connections hand it frames in
// arrival order and receive outbound frames through their own bounded send
// queues, so no handler ever waits on a slow socket.
package signaling
