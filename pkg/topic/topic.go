// Package topic defines the conversation-topic key scheme used for
// publish/subscribe routing: one topic per room, one per user inbox, and a
// shared presence topic.
package topic

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindRoom Kind = "room"
	KindUser Kind = "user"
)

// Status is the presence broadcast topic. It deliberately shares the
// "user:" prefix so a single pattern subscription covers it.
const Status = "user:status"

// Patterns are the subscriptions a bridge needs to receive every
// conversation and presence event.
var Patterns = []string{"room:*", "user:*"}

var ErrInvalidTopic = errors.New("invalid conversation topic")

// Room returns the topic for a group conversation.
func Room(roomID string) string {
	return "room:" + roomID
}

// User returns the topic for a user's personal inbox.
func User(userID string) string {
	return "user:" + userID
}

// Parse splits a topic into its kind and id. It rejects anything outside
// the closed room/user scheme so unknown topics fail at the boundary.
func Parse(t string) (Kind, string, error) {
	kind, id, ok := strings.Cut(t, ":")
	if !ok || id == "" {
		return "", "", ErrInvalidTopic
	}
	switch Kind(kind) {
	case KindRoom:
		return KindRoom, id, nil
	case KindUser:
		return KindUser, id, nil
	}
	return "", "", ErrInvalidTopic
}
