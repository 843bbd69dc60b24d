package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/wilsonzlin/aero/proxy/room-signaling/internal/room"
)

// Event types carried in Envelope.Type.
const (
	TypeConnected = "connected"
	TypeError     = "error"

	TypeJoinRoom             = "join-room"
	TypeExistingParticipants = "existing-participants"
	TypeUserJoined           = "user-joined"
	TypeLeaveRoom            = "leave-room"
	TypeUserLeft             = "user-left"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	TypeSendMessage    = "send-message"
	TypeReceiveMessage = "receive-message"

	TypeToggleCamera     = "toggle-camera"
	TypeToggleMic        = "toggle-mic"
	TypeUserToggleCamera = "user-toggle-camera"
	TypeUserToggleMic    = "user-toggle-mic"
)

// Error codes sent in ErrorPayload.Code.
const (
	CodeBadMessage     = "bad_message"
	CodeUnknownType    = "unknown_type"
	CodeAlreadyJoined  = "already_joined"
	CodeConnectionLeft = "connection_left"
)

var (
	errMalformed      = errors.New("signaling: malformed message")
	errMissingField   = errors.New("signaling: missing required field")
	errUnknownType    = errors.New("signaling: unknown message type")
	errMessageNotJSON = errors.New("signaling: chat message must be a JSON object")
	errAlreadyJoined  = errors.New("signaling: connection already joined a room")
	errConnectionLeft = errors.New("signaling: connection already left its room")
	errHubClosed      = errors.New("signaling: hub closed")
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type joinRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// relayRequest covers offer, answer and ice-candidate. Body holds the
// negotiation payload untouched, under the field named after the kind.
type relayRequest struct {
	To   string
	Body json.RawMessage
}

type chatRequest struct {
	RoomID  string
	Message map[string]json.RawMessage
}

type toggleRequest struct {
	RoomID  string `json:"roomId"`
	Enabled *bool  `json:"enabled"`
}

type ToggleNotice struct {
	ConnectionID string `json:"connectionId"`
	Enabled      bool   `json:"enabled"`
}

type LeftNotice struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
}

// relayField names the payload field that carries each negotiation kind.
var relayField = map[string]string{
	TypeOffer:        "offer",
	TypeAnswer:       "answer",
	TypeICECandidate: "candidate",
}

// parseEnvelope decodes one frame. Unknown top-level fields and trailing data
// are rejected.
func parseEnvelope(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("%w: unexpected trailing data", errMalformed)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: type", errMissingField)
	}
	return env, nil
}

func decodeJoin(raw json.RawMessage) (joinRequest, error) {
	var req joinRequest
	if err := decodeObject(raw, &req); err != nil {
		return joinRequest{}, err
	}
	if req.RoomID == "" {
		return joinRequest{}, fmt.Errorf("%w: roomId", errMissingField)
	}
	return req, nil
}

// decodeRelay extracts the target and the raw negotiation body. For
// ice-candidate a null or absent candidate yields a nil Body and no error;
// the caller drops it.
func decodeRelay(kind string, raw json.RawMessage) (relayRequest, error) {
	var fields map[string]json.RawMessage
	if err := decodeObject(raw, &fields); err != nil {
		return relayRequest{}, err
	}

	var req relayRequest
	if err := decodeString(fields["to"], &req.To); err != nil {
		return relayRequest{}, fmt.Errorf("%w: to", err)
	}
	if req.To == "" {
		return relayRequest{}, fmt.Errorf("%w: to", errMissingField)
	}

	field := relayField[kind]
	body := fields[field]
	if isNull(body) {
		if kind == TypeICECandidate {
			return req, nil
		}
		return relayRequest{}, fmt.Errorf("%w: %s", errMissingField, field)
	}
	req.Body = body
	return req, nil
}

func decodeChat(raw json.RawMessage) (chatRequest, error) {
	var fields map[string]json.RawMessage
	if err := decodeObject(raw, &fields); err != nil {
		return chatRequest{}, err
	}

	var req chatRequest
	if err := decodeString(fields["roomId"], &req.RoomID); err != nil {
		return chatRequest{}, fmt.Errorf("%w: roomId", err)
	}
	if req.RoomID == "" {
		return chatRequest{}, fmt.Errorf("%w: roomId", errMissingField)
	}
	msg := fields["message"]
	if isNull(msg) {
		return chatRequest{}, fmt.Errorf("%w: message", errMissingField)
	}
	if err := json.Unmarshal(msg, &req.Message); err != nil || req.Message == nil {
		return chatRequest{}, errMessageNotJSON
	}
	return req, nil
}

func decodeToggle(raw json.RawMessage) (toggleRequest, error) {
	var req toggleRequest
	if err := decodeObject(raw, &req); err != nil {
		return toggleRequest{}, err
	}
	if req.RoomID == "" {
		return toggleRequest{}, fmt.Errorf("%w: roomId", errMissingField)
	}
	if req.Enabled == nil {
		return toggleRequest{}, fmt.Errorf("%w: enabled", errMissingField)
	}
	return req, nil
}

// decodeLeave accepts the bare JSON string form: "payload": "room-id".
func decodeLeave(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", fmt.Errorf("%w: roomId", errMissingField)
	}
	var roomID string
	if err := json.Unmarshal(raw, &roomID); err != nil {
		return "", fmt.Errorf("%w: leave-room payload must be a string", errMalformed)
	}
	if roomID == "" {
		return "", fmt.Errorf("%w: roomId", errMissingField)
	}
	return roomID, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return fmt.Errorf("%w: payload", errMissingField)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func decodeString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errMalformed
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// errorCode maps a decode or dispatch error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errUnknownType):
		return CodeUnknownType
	case errors.Is(err, errAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, errConnectionLeft):
		return CodeConnectionLeft
	default:
		return CodeBadMessage
	}
}

func encodeFrame(kind string, payload any) ([]byte, error) {
	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: kind, Payload: raw})
}

func relayFrame(kind, from string, body json.RawMessage) ([]byte, error) {
	fromJSON, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	return encodeFrame(kind, map[string]json.RawMessage{
		"from":           fromJSON,
		relayField[kind]: body,
	})
}

// chatFrame stamps senderId over whatever the client supplied.
func chatFrame(senderID string, message map[string]json.RawMessage) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(message)+1)
	for k, v := range message {
		out[k] = v
	}
	sender, err := json.Marshal(senderID)
	if err != nil {
		return nil, err
	}
	out["senderId"] = sender
	return encodeFrame(TypeReceiveMessage, out)
}

func rosterFrame(participants []room.Participant) ([]byte, error) {
	if participants == nil {
		participants = []room.Participant{}
	}
	return encodeFrame(TypeExistingParticipants, participants)
}
