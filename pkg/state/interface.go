package state

import "github.com/google/uuid"

// Manager is the live-connection registry for one process. It is mutated
// only by this process and holds no authoritative state: room membership
// is re-derived from the store at join time, and everything here vanishes
// with the process.
type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Transport, ipAddr string) (*Connection, error)
	// AssociateUser binds the authenticated user to a registered connection
	// and subscribes the connection to the user's own topic.
	AssociateUser(connID uuid.UUID, userID string) (*User, error)
	DeregisterConnection(connID uuid.UUID) error
	GetConnection(connID uuid.UUID) (*Connection, bool)

	// --- Session Topic Management ---
	// JoinRoom adds the room's topic to the connection's session set.
	// Re-joining an already-joined room is a no-op.
	JoinRoom(connID uuid.UUID, roomID string) error

	// --- Fan-out ---
	// LocalTargets returns every local connection subscribed to the topic.
	// Computed on demand, never cached.
	LocalTargets(topic string) []*Connection
	// Connections returns all live connections on this process.
	Connections() []*Connection

	// --- Multi-device Accounting ---
	GetUserConnectionCount(userID string) (int, error)
	FindOldestUserConnection(userID string) (*Connection, bool)
}
