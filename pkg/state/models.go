package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the outbound side of a client connection. Send must not
// block; delivery is best-effort.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the registry's record of a single live transport. Topics
// holds every conversation topic this connection receives in the current
// session; it always contains the owning user's own topic and is never
// persisted.
type Connection struct {
	ID        uuid.UUID
	UserID    string
	IPAddress string
	Transport Transport
	Topics    map[string]struct{}
	CreatedAt time.Time
}

// User aggregates all live connections of one user on this process.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection
}
