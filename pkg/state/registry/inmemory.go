package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatfabric/chatfabric/pkg/state"
	"github.com/chatfabric/chatfabric/pkg/topic"
)

// InMemoryRegistry tracks all live connections on this process. It is the
// only writer of session state; cross-process coordination happens through
// the broker, never through this registry.
type InMemoryRegistry struct {
	conns map[uuid.UUID]*state.Connection
	users map[string]*state.User

	mu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[string]*state.User),
		logger: logger.With(slog.String("component", "registry_inmemory")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Manager.
var _ state.Manager = (*InMemoryRegistry)(nil)

func (m *InMemoryRegistry) RegisterConnection(t state.Transport, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		Topics:    make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

func (m *InMemoryRegistry) AssociateUser(connID uuid.UUID, userID string) (*state.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, errors.New("cannot associate user with unknown connection")
	}

	user, exists := m.users[userID]
	if !exists {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
		}
		m.users[userID] = user
	}

	conn.UserID = userID
	user.Connections[connID] = conn
	// Every connection receives its owner's personal topic for the whole
	// session; private messages need no explicit join.
	conn.Topics[topic.User(userID)] = struct{}{}

	m.logger.Debug("Associated connection with user", slog.String("connID", connID.String()), slog.String("userID", userID))
	return user, nil
}

func (m *InMemoryRegistry) DeregisterConnection(connID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// Already deregistered.
		return nil
	}
	delete(m.conns, connID)

	if conn.UserID != "" {
		if user, ok := m.users[conn.UserID]; ok {
			delete(user.Connections, connID)
			if len(user.Connections) == 0 {
				delete(m.users, conn.UserID)
			}
		}
	}
	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return nil
}

func (m *InMemoryRegistry) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryRegistry) JoinRoom(connID uuid.UUID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return errors.New("cannot join room on unknown connection")
	}
	// Idempotent: the set absorbs duplicate joins.
	conn.Topics[topic.Room(roomID)] = struct{}{}
	m.logger.Debug("Connection joined room", slog.String("connID", connID.String()), slog.String("roomID", roomID))
	return nil
}

func (m *InMemoryRegistry) LocalTargets(t string) []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []*state.Connection
	for _, conn := range m.conns {
		if _, ok := conn.Topics[t]; ok {
			targets = append(targets, conn)
		}
	}
	return targets
}

func (m *InMemoryRegistry) Connections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (m *InMemoryRegistry) GetUserConnectionCount(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil // User has no live connections.
	}
	return len(user.Connections), nil
}

func (m *InMemoryRegistry) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}

	var oldestConn *state.Connection
	var oldestTime time.Time

	for _, conn := range user.Connections {
		if oldestConn == nil || conn.CreatedAt.Before(oldestTime) {
			oldestConn = conn
			oldestTime = conn.CreatedAt
		}
	}

	if oldestConn == nil {
		return nil, false
	}
	return oldestConn, true
}
