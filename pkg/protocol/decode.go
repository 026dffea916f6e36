package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrMalformed   = errors.New("malformed client event")
	ErrUnknownType = errors.New("unknown event type")
)

// DecodeClientEvent parses a raw inbound frame into one of the closed set
// of client events. The type tag is peeked first so an unknown tag is
// reported as such rather than as a generic parse failure.
func DecodeClientEvent(raw []byte) (ClientEvent, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	tag := gjson.GetBytes(raw, "type")
	if !tag.Exists() || tag.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformed)
	}

	switch tag.String() {
	case EventJoinGroup:
		var ev JoinGroup
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventSendGroupMessage:
		var ev SendGroupMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventSendPrivateMessage:
		var ev SendPrivateMessage
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventTyping:
		var ev Typing
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag.String())
}
