package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"type":"leave-room","payload":"r1"}`))
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if env.Type != TypeLeaveRoom || string(env.Payload) != `"r1"` {
		t.Fatalf("env=%+v", env)
	}

	for _, raw := range []string{
		``,
		`[]`,
		`{"type":1}`,
		`{"type":"x","payload":{}}{"type":"y"}`,
		`{"type":"x","id":7}`,
		`{"payload":{}}`,
	} {
		if _, err := parseEnvelope([]byte(raw)); err == nil {
			t.Errorf("parseEnvelope(%q) succeeded", raw)
		}
	}
}

func TestDecodeRelay(t *testing.T) {
	req, err := decodeRelay(TypeOffer, json.RawMessage(`{"to":"b","from":"ignored","offer":{"sdp":"x"}}`))
	if err != nil {
		t.Fatalf("decodeRelay: %v", err)
	}
	if req.To != "b" || string(req.Body) != `{"sdp":"x"}` {
		t.Fatalf("req=%+v", req)
	}

	req, err = decodeRelay(TypeICECandidate, json.RawMessage(`{"to":"b","candidate":null}`))
	if err != nil || req.Body != nil {
		t.Fatalf("null candidate: req=%+v err=%v, want nil body and no error", req, err)
	}

	_, err = decodeRelay(TypeAnswer, json.RawMessage(`{"to":"b","answer":null}`))
	if !errors.Is(err, errMissingField) {
		t.Fatalf("null answer err=%v, want missing field", err)
	}
	_, err = decodeRelay(TypeAnswer, json.RawMessage(`{"to":7,"answer":{}}`))
	if !errors.Is(err, errMalformed) {
		t.Fatalf("numeric target err=%v, want malformed", err)
	}
}

func TestDecodeLeave(t *testing.T) {
	if id, err := decodeLeave(json.RawMessage(`"r1"`)); err != nil || id != "r1" {
		t.Fatalf("decodeLeave=(%q, %v)", id, err)
	}
	for _, raw := range []string{``, `null`, `""`, `{"roomId":"r1"}`, `5`} {
		if _, err := decodeLeave(json.RawMessage(raw)); err == nil {
			t.Errorf("decodeLeave(%q) succeeded", raw)
		}
	}
}

func TestDecodeToggleRequiresEnabled(t *testing.T) {
	req, err := decodeToggle(json.RawMessage(`{"roomId":"r","enabled":false}`))
	if err != nil || req.Enabled == nil || *req.Enabled {
		t.Fatalf("decodeToggle=(%+v, %v), want enabled=false", req, err)
	}
	if _, err := decodeToggle(json.RawMessage(`{"roomId":"r"}`)); !errors.Is(err, errMissingField) {
		t.Fatalf("err=%v, want missing field", err)
	}
	if _, err := decodeToggle(json.RawMessage(`{"roomId":"r","enabled":"yes"}`)); !errors.Is(err, errMalformed) {
		t.Fatalf("err=%v, want malformed", err)
	}
}

func TestChatFrameOverridesSenderID(t *testing.T) {
	frame, err := chatFrame("real", map[string]json.RawMessage{
		"text":     json.RawMessage(`"hello"`),
		"senderId": json.RawMessage(`"forged"`),
	})
	if err != nil {
		t.Fatalf("chatFrame: %v", err)
	}
	var env struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeReceiveMessage || env.Payload["senderId"] != "real" || env.Payload["text"] != "hello" {
		t.Fatalf("frame=%s", frame)
	}
}

func TestRosterFrameEncodesEmptyList(t *testing.T) {
	frame, err := rosterFrame(nil)
	if err != nil {
		t.Fatalf("rosterFrame: %v", err)
	}
	if got, want := string(frame), `{"type":"existing-participants","payload":[]}`; got != want {
		t.Fatalf("frame=%s, want %s", got, want)
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", errUnknownType), CodeUnknownType},
		{errAlreadyJoined, CodeAlreadyJoined},
		{errConnectionLeft, CodeConnectionLeft},
		{errMessageNotJSON, CodeBadMessage},
		{fmt.Errorf("%w: roomId", errMissingField), CodeBadMessage},
	}
	for _, tc := range cases {
		if got := errorCode(tc.err); got != tc.want {
			t.Errorf("errorCode(%v)=%q, want %q", tc.err, got, tc.want)
		}
	}
}
