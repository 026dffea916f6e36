package protocol_test

import (
	"errors"
	"testing"

	"github.com/chatfabric/chatfabric/pkg/protocol"
)

func TestDecodeClientEvent(t *testing.T) {
	ev, err := protocol.DecodeClientEvent([]byte(`{"type":"JOIN_GROUP","groupId":"eng"}`))
	if err != nil {
		t.Fatalf("decode JOIN_GROUP failed: %v", err)
	}
	join, ok := ev.(protocol.JoinGroup)
	if !ok {
		t.Fatalf("expected JoinGroup, got %T", ev)
	}
	if join.GroupID != "eng" {
		t.Errorf("expected groupId eng, got %q", join.GroupID)
	}

	ev, err = protocol.DecodeClientEvent([]byte(`{"type":"SEND_GROUP_MESSAGE","groupId":"eng","content":"hi"}`))
	if err != nil {
		t.Fatalf("decode SEND_GROUP_MESSAGE failed: %v", err)
	}
	send, ok := ev.(protocol.SendGroupMessage)
	if !ok {
		t.Fatalf("expected SendGroupMessage, got %T", ev)
	}
	if send.Content != "hi" {
		t.Errorf("expected content hi, got %q", send.Content)
	}

	ev, err = protocol.DecodeClientEvent([]byte(`{"type":"SEND_PRIVATE_MESSAGE","recipientUsername":"bob","content":"yo"}`))
	if err != nil {
		t.Fatalf("decode SEND_PRIVATE_MESSAGE failed: %v", err)
	}
	if pm := ev.(protocol.SendPrivateMessage); pm.RecipientUsername != "bob" {
		t.Errorf("expected recipient bob, got %q", pm.RecipientUsername)
	}

	ev, err = protocol.DecodeClientEvent([]byte(`{"type":"TYPING","roomId":"room:eng","isTyping":true}`))
	if err != nil {
		t.Fatalf("decode TYPING failed: %v", err)
	}
	if ty := ev.(protocol.Typing); !ty.IsTyping || ty.RoomID != "room:eng" {
		t.Errorf("unexpected typing event: %+v", ty)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := protocol.DecodeClientEvent([]byte(`{"type":"SELF_DESTRUCT"}`))
	if !errors.Is(err, protocol.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"type":42}`),
		[]byte(`{"groupId":"eng"}`),
	}
	for _, raw := range cases {
		if _, err := protocol.DecodeClientEvent(raw); !errors.Is(err, protocol.ErrMalformed) {
			t.Errorf("DecodeClientEvent(%s): expected ErrMalformed, got %v", raw, err)
		}
	}
}
