package store_test

import (
	"testing"

	"github.com/chatfabric/chatfabric/internal/store"
)

func TestPairChatIDIsDirectionless(t *testing.T) {
	ab := store.PairChatID("alice", "bob")
	ba := store.PairChatID("bob", "alice")
	if ab != ba {
		t.Errorf("pair id must not depend on direction: %q vs %q", ab, ba)
	}
	if ab != "alice:bob" {
		t.Errorf("expected sorted concatenation, got %q", ab)
	}
}

func TestPairChatIDSelfChat(t *testing.T) {
	if got := store.PairChatID("alice", "alice"); got != "alice:alice" {
		t.Errorf("unexpected self pair id %q", got)
	}
}
