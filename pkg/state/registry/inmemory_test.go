package registry_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chatfabric/chatfabric/pkg/state"
	"github.com/chatfabric/chatfabric/pkg/state/registry"
	"github.com/chatfabric/chatfabric/pkg/topic"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRegistry() *registry.InMemoryRegistry {
	return registry.NewInMemoryRegistry(newTestLogger())
}

// fakeTransport satisfies state.Transport without a real socket.
type fakeTransport struct {
	id   uuid.UUID
	sent [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (f *fakeTransport) ID() uuid.UUID      { return f.id }
func (f *fakeTransport) Send(msg []byte)    { f.sent = append(f.sent, msg) }
func (f *fakeTransport) Close(err error)    {}

// --- Connection and User Management Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestRegistry()
	ft := newFakeTransport()

	conn, err := m.RegisterConnection(ft, "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if conn.ID != ft.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	if _, err := m.RegisterConnection(ft, "127.0.0.1"); err == nil {
		t.Error("Expected duplicate registration to fail")
	}

	retrieved, found := m.GetConnection(ft.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrieved.ID != ft.ID() {
		t.Errorf("Retrieved connection ID mismatch")
	}

	if err := m.DeregisterConnection(ft.ID()); err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if _, found := m.GetConnection(ft.ID()); found {
		t.Error("Found connection after it should have been deregistered")
	}

	// A second deregister is a quiet no-op.
	if err := m.DeregisterConnection(ft.ID()); err != nil {
		t.Errorf("Repeated DeregisterConnection failed: %v", err)
	}
}

func TestAssociateUserSubscribesOwnTopic(t *testing.T) {
	m := newTestRegistry()
	ft := newFakeTransport()
	m.RegisterConnection(ft, "1.1.1.1")

	user, err := m.AssociateUser(ft.ID(), "user-1")
	if err != nil {
		t.Fatalf("AssociateUser failed: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("Expected user ID user-1, got %s", user.ID)
	}

	conn, _ := m.GetConnection(ft.ID())
	if _, ok := conn.Topics[topic.User("user-1")]; !ok {
		t.Error("Expected connection to be subscribed to its own user topic")
	}

	targets := m.LocalTargets(topic.User("user-1"))
	if len(targets) != 1 || targets[0].ID != ft.ID() {
		t.Errorf("Expected own connection as target for user topic, got %d targets", len(targets))
	}
}

func TestMultiDeviceConnectionCount(t *testing.T) {
	m := newTestRegistry()
	userID := "user-1"
	ft1, ft2 := newFakeTransport(), newFakeTransport()

	m.RegisterConnection(ft1, "1.1.1.1")
	m.RegisterConnection(ft2, "2.2.2.2")
	m.AssociateUser(ft1.ID(), userID)
	m.AssociateUser(ft2.ID(), userID)

	count, _ := m.GetUserConnectionCount(userID)
	if count != 2 {
		t.Errorf("Expected connection count 2, got %d", count)
	}

	// Both devices are independent targets of the same user topic.
	targets := m.LocalTargets(topic.User(userID))
	if len(targets) != 2 {
		t.Errorf("Expected 2 targets for user topic, got %d", len(targets))
	}

	m.DeregisterConnection(ft1.ID())
	count, _ = m.GetUserConnectionCount(userID)
	if count != 1 {
		t.Errorf("Expected connection count 1 after deregister, got %d", count)
	}

	m.DeregisterConnection(ft2.ID())
	count, _ = m.GetUserConnectionCount(userID)
	if count != 0 {
		t.Errorf("Expected connection count 0 after last deregister, got %d", count)
	}
}

func TestFindOldestUserConnection(t *testing.T) {
	m := newTestRegistry()
	userID := "user-cycle"
	ft1 := newFakeTransport()
	ft2 := newFakeTransport()

	m.RegisterConnection(ft1, "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	m.RegisterConnection(ft2, "2.2.2.2")
	m.AssociateUser(ft1.ID(), userID)
	m.AssociateUser(ft2.ID(), userID)

	oldest, found := m.FindOldestUserConnection(userID)
	if !found {
		t.Fatal("Expected to find oldest connection, but did not")
	}
	if oldest.ID != ft1.ID() {
		t.Errorf("Expected oldest connection ID to be %s, got %s", ft1.ID(), oldest.ID)
	}
}

// --- Session Topic Tests ---

func TestJoinRoomTargets(t *testing.T) {
	m := newTestRegistry()
	ft1, ft2, ft3 := newFakeTransport(), newFakeTransport(), newFakeTransport()
	for i, ft := range []*fakeTransport{ft1, ft2, ft3} {
		m.RegisterConnection(ft, "1.1.1.1")
		m.AssociateUser(ft.ID(), "user-"+string(rune('a'+i)))
	}

	m.JoinRoom(ft1.ID(), "eng")
	m.JoinRoom(ft2.ID(), "eng")

	targets := m.LocalTargets(topic.Room("eng"))
	if len(targets) != 2 {
		t.Fatalf("Expected 2 targets for room topic, got %d", len(targets))
	}
	for _, conn := range targets {
		if conn.ID == ft3.ID() {
			t.Error("Connection that never joined must not be a target")
		}
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	m := newTestRegistry()
	ft := newFakeTransport()
	m.RegisterConnection(ft, "1.1.1.1")
	m.AssociateUser(ft.ID(), "user-1")

	m.JoinRoom(ft.ID(), "eng")
	m.JoinRoom(ft.ID(), "eng")

	targets := m.LocalTargets(topic.Room("eng"))
	if len(targets) != 1 {
		t.Errorf("Double join must not double-subscribe: got %d targets", len(targets))
	}
}

func TestJoinRoomUnknownConnection(t *testing.T) {
	m := newTestRegistry()
	if err := m.JoinRoom(uuid.New(), "eng"); err == nil {
		t.Error("Expected JoinRoom on unknown connection to fail")
	}
}

func TestConnections(t *testing.T) {
	m := newTestRegistry()
	ft1, ft2 := newFakeTransport(), newFakeTransport()
	m.RegisterConnection(ft1, "1.1.1.1")
	m.RegisterConnection(ft2, "2.2.2.2")

	if got := len(m.Connections()); got != 2 {
		t.Errorf("Expected 2 connections, got %d", got)
	}

	m.DeregisterConnection(ft1.ID())
	if got := len(m.Connections()); got != 1 {
		t.Errorf("Expected 1 connection after deregister, got %d", got)
	}
}

var _ state.Manager = (*registry.InMemoryRegistry)(nil)
