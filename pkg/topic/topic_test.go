package topic_test

import (
	"testing"

	"github.com/chatfabric/chatfabric/pkg/topic"
)

func TestRoomAndUserTopics(t *testing.T) {
	if got := topic.Room("eng"); got != "room:eng" {
		t.Errorf("Room(eng) = %q", got)
	}
	if got := topic.User("u1"); got != "user:u1" {
		t.Errorf("User(u1) = %q", got)
	}
}

func TestParse(t *testing.T) {
	kind, id, err := topic.Parse("room:eng")
	if err != nil {
		t.Fatalf("Parse(room:eng) failed: %v", err)
	}
	if kind != topic.KindRoom || id != "eng" {
		t.Errorf("Parse(room:eng) = %s, %s", kind, id)
	}

	kind, id, err = topic.Parse("user:u1")
	if err != nil {
		t.Fatalf("Parse(user:u1) failed: %v", err)
	}
	if kind != topic.KindUser || id != "u1" {
		t.Errorf("Parse(user:u1) = %s, %s", kind, id)
	}

	// The status topic parses as a user topic; the bridge special-cases it.
	kind, id, err = topic.Parse(topic.Status)
	if err != nil {
		t.Fatalf("Parse(user:status) failed: %v", err)
	}
	if kind != topic.KindUser || id != "status" {
		t.Errorf("Parse(user:status) = %s, %s", kind, id)
	}
}

func TestParseRejectsUnknownTopics(t *testing.T) {
	for _, bad := range []string{"", "eng", "group:eng", "room:", ":eng", "room"} {
		if _, _, err := topic.Parse(bad); err == nil {
			t.Errorf("Parse(%q) should have failed", bad)
		}
	}
}
