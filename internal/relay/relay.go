// Package relay is the per-event state machine between validated client
// requests and the system's collaborators: it checks preconditions,
// persists through the store, updates the recency cache, and publishes to
// the broker. It never writes to a socket other than the originating
// connection's; fan-out belongs to the broker bridge.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chatfabric/chatfabric/internal/metrics"
	"github.com/chatfabric/chatfabric/internal/models"
	"github.com/chatfabric/chatfabric/pkg/protocol"
	"github.com/chatfabric/chatfabric/pkg/state"
	"github.com/chatfabric/chatfabric/pkg/topic"
)

// Store is the slice of the persistent store the relay needs.
type Store interface {
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	SetUserPresence(ctx context.Context, userID string, online bool) error
	IsGroupMember(ctx context.Context, userID, groupID string) (bool, error)
	GroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	SaveGroupMessage(ctx context.Context, senderID, groupID, content string) (*models.Message, error)
	SavePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	GroupMessages(ctx context.Context, groupID string, page, limit int) ([]models.Message, error)
}

// Cache is the recency-cache surface the relay needs.
type Cache interface {
	AppendGroup(ctx context.Context, groupID string, entry []byte) error
	AppendPrivate(ctx context.Context, chatID string, entry []byte) error
	ReadGroup(ctx context.Context, groupID string, page, limit int) ([]json.RawMessage, error)
	ReplaceGroup(ctx context.Context, groupID string, newestFirst []json.RawMessage) error
}

// Publisher sends one event payload to a conversation topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type Relay struct {
	logger    *slog.Logger
	registry  state.Manager
	store     Store
	cache     Cache
	pub       Publisher
	pageLimit int
}

func New(logger *slog.Logger, registry state.Manager, store Store, cache Cache, pub Publisher, pageLimit int) *Relay {
	return &Relay{
		logger:    logger.With(slog.String("component", "relay")),
		registry:  registry,
		store:     store,
		cache:     cache,
		pub:       pub,
		pageLimit: pageLimit,
	}
}

// HandleOpen runs once a connection is registered and associated: mark the
// user online, announce presence, replay warm caches for the user's
// groups, then confirm the session.
func (r *Relay) HandleOpen(ctx context.Context, connID uuid.UUID) {
	conn, ok := r.registry.GetConnection(connID)
	if !ok {
		r.logger.Error("HandleOpen on unknown connection", slog.String("connID", connID.String()))
		return
	}
	userID := conn.UserID

	if err := r.store.SetUserPresence(ctx, userID, true); err != nil {
		r.logger.Error("Failed to mark user online", slog.String("userID", userID), slog.Any("error", err))
	}
	if err := r.publishJSON(ctx, topic.Status, protocol.NewUserOnline(userID)); err != nil {
		r.logger.Error("Failed to publish presence", slog.String("userID", userID), slog.Any("error", err))
	}

	// Push cached recent messages for every group the user is a store
	// member of. A cold cache is silently skipped; the client reads full
	// history through the paginated surface.
	groups, err := r.store.GroupsForUser(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to list user groups", slog.String("userID", userID), slog.Any("error", err))
	}
	for _, g := range groups {
		msgs, err := r.cache.ReadGroup(ctx, g.ID, 1, r.pageLimit)
		if err != nil {
			r.logger.Error("Cache read failed", slog.String("groupID", g.ID), slog.Any("error", err))
			continue
		}
		if len(msgs) > 0 {
			r.send(conn, protocol.NewCachedGroupMessages(g.ID, msgs))
		}
	}

	r.send(conn, protocol.NewConnectionEstablished(userID))
}

// HandleMessage is the transport's inbound callback: decode into the
// closed event union and dispatch. Any rejection becomes a single ERROR
// event back to this connection.
func (r *Relay) HandleMessage(ctx context.Context, connID uuid.UUID, raw []byte) {
	conn, ok := r.registry.GetConnection(connID)
	if !ok {
		r.logger.Error("Message from unknown connection", slog.String("connID", connID.String()))
		return
	}

	ev, err := protocol.DecodeClientEvent(raw)
	if err != nil {
		r.reportError(conn, validationError("invalid message format"))
		return
	}

	switch ev := ev.(type) {
	case protocol.JoinGroup:
		err = r.handleJoinGroup(ctx, conn, ev)
	case protocol.SendGroupMessage:
		err = r.handleSendGroupMessage(ctx, conn, ev)
	case protocol.SendPrivateMessage:
		err = r.handleSendPrivateMessage(ctx, conn, ev)
	case protocol.Typing:
		err = r.handleTyping(ctx, conn, ev)
	}
	if err != nil {
		r.reportError(conn, err)
	}
}

// HandleClose runs exactly once per connection, on transport close.
func (r *Relay) HandleClose(ctx context.Context, connID uuid.UUID) {
	conn, ok := r.registry.GetConnection(connID)
	if !ok {
		return
	}
	if err := r.registry.DeregisterConnection(connID); err != nil {
		r.logger.Error("Failed to deregister connection", slog.String("connID", connID.String()), slog.Any("error", err))
	}

	userID := conn.UserID
	if userID == "" {
		return
	}
	if err := r.store.SetUserPresence(ctx, userID, false); err != nil {
		r.logger.Error("Failed to mark user offline", slog.String("userID", userID), slog.Any("error", err))
	}
	if err := r.publishJSON(ctx, topic.Status, protocol.NewUserOffline(userID)); err != nil {
		r.logger.Error("Failed to publish presence", slog.String("userID", userID), slog.Any("error", err))
	}
}

func (r *Relay) handleJoinGroup(ctx context.Context, conn *state.Connection, ev protocol.JoinGroup) error {
	if ev.GroupID == "" {
		return validationError("groupId is required")
	}

	member, err := r.store.IsGroupMember(ctx, conn.UserID, ev.GroupID)
	if err != nil {
		return dependencyError("failed to verify group membership", err)
	}
	if !member {
		return authorizationError("you are not a member of this group")
	}

	if err := r.registry.JoinRoom(conn.ID, ev.GroupID); err != nil {
		return dependencyError("failed to join group", err)
	}

	history, err := r.groupHistory(ctx, ev.GroupID)
	if err != nil {
		return err
	}
	r.send(conn, protocol.NewHistoricalMessages(history))

	if err := r.publishJSON(ctx, topic.Room(ev.GroupID), protocol.NewUserJoined(conn.UserID, ev.GroupID)); err != nil {
		return dependencyError("failed to announce join", err)
	}
	return nil
}

func (r *Relay) handleSendGroupMessage(ctx context.Context, conn *state.Connection, ev protocol.SendGroupMessage) error {
	if ev.GroupID == "" || ev.Content == "" {
		return validationError("groupId and content are required")
	}

	member, err := r.store.IsGroupMember(ctx, conn.UserID, ev.GroupID)
	if err != nil {
		return dependencyError("failed to verify group membership", err)
	}
	if !member {
		return authorizationError("you are not a member of this group")
	}

	// Persist first; the message is never fanned out before it is durable.
	msg, err := r.store.SaveGroupMessage(ctx, conn.UserID, ev.GroupID, ev.Content)
	if err != nil {
		return dependencyError("failed to save message", err)
	}

	entry, err := json.Marshal(msg)
	if err != nil {
		return dependencyError("failed to encode message", err)
	}
	if err := r.cache.AppendGroup(ctx, ev.GroupID, entry); err != nil {
		// Cache is non-authoritative; losing recency must not block fan-out.
		r.logger.Error("Cache append failed", slog.String("groupID", ev.GroupID), slog.Any("error", err))
	}

	if err := r.publishJSON(ctx, topic.Room(ev.GroupID), protocol.NewGroupMessage(entry, conn.UserID)); err != nil {
		return dependencyError("failed to publish message", err)
	}
	metrics.MessagesSent.WithLabelValues(models.ChatTypeGroup).Inc()
	return nil
}

func (r *Relay) handleSendPrivateMessage(ctx context.Context, conn *state.Connection, ev protocol.SendPrivateMessage) error {
	if ev.RecipientUsername == "" || ev.Content == "" {
		return validationError("recipientUsername and content are required")
	}

	recipient, err := r.store.UserByUsername(ctx, ev.RecipientUsername)
	if err != nil {
		return dependencyError("failed to resolve recipient", err)
	}
	if recipient == nil {
		return notFoundError("recipient not found")
	}

	msg, err := r.store.SavePrivateMessage(ctx, conn.UserID, recipient.ID, ev.Content)
	if err != nil {
		return dependencyError("failed to save message", err)
	}

	view := models.PrivateMessageView{
		Message:           *msg,
		RecipientID:       recipient.ID,
		RecipientUsername: recipient.Username,
	}
	entry, err := json.Marshal(view)
	if err != nil {
		return dependencyError("failed to encode message", err)
	}
	if err := r.cache.AppendPrivate(ctx, msg.ChatID, entry); err != nil {
		r.logger.Error("Cache append failed", slog.String("chatID", msg.ChatID), slog.Any("error", err))
	}

	// Publish to both personal topics so every device of either party,
	// on every process, receives it.
	event := protocol.NewPrivateMessage(entry, conn.UserID)
	if err := r.publishJSON(ctx, topic.User(conn.UserID), event); err != nil {
		return dependencyError("failed to publish message", err)
	}
	if err := r.publishJSON(ctx, topic.User(recipient.ID), event); err != nil {
		return dependencyError("failed to publish message", err)
	}
	metrics.MessagesSent.WithLabelValues(models.ChatTypePrivate).Inc()
	return nil
}

func (r *Relay) handleTyping(ctx context.Context, conn *state.Connection, ev protocol.Typing) error {
	if ev.RoomID == "" {
		return validationError("roomId is required")
	}
	// The client addresses a conversation topic directly; anything outside
	// the closed scheme is rejected. No persistence, no caching.
	if _, _, err := topic.Parse(ev.RoomID); err != nil {
		return validationError("invalid conversation topic")
	}
	if err := r.publishJSON(ctx, ev.RoomID, protocol.NewTyping(conn.UserID, ev.IsTyping)); err != nil {
		return dependencyError("failed to publish typing event", err)
	}
	return nil
}

// groupHistory serves one page of history cache-first. A cache miss falls
// back to the store and repopulates the cache; an empty cache is never
// trusted to mean an empty conversation.
func (r *Relay) groupHistory(ctx context.Context, groupID string) ([]json.RawMessage, error) {
	cached, err := r.cache.ReadGroup(ctx, groupID, 1, r.pageLimit)
	if err != nil {
		r.logger.Error("Cache read failed", slog.String("groupID", groupID), slog.Any("error", err))
	}
	if len(cached) > 0 {
		metrics.CacheHits.Inc()
		return cached, nil
	}
	metrics.CacheMisses.Inc()

	stored, err := r.store.GroupMessages(ctx, groupID, 1, r.pageLimit)
	if err != nil {
		return nil, dependencyError("failed to load history", err)
	}

	entries := make([]json.RawMessage, 0, len(stored))
	for _, m := range stored {
		entry, err := json.Marshal(m)
		if err != nil {
			return nil, dependencyError("failed to encode history", err)
		}
		entries = append(entries, entry)
	}
	if len(entries) > 0 {
		if err := r.cache.ReplaceGroup(ctx, groupID, entries); err != nil {
			r.logger.Error("Cache repopulation failed", slog.String("groupID", groupID), slog.Any("error", err))
		}
	}
	return entries, nil
}

// send writes one event to the originating connection.
func (r *Relay) send(conn *state.Connection, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("Failed to marshal outbound event", slog.Any("error", err))
		return
	}
	conn.Transport.Send(payload)
}

func (r *Relay) publishJSON(ctx context.Context, t string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.pub.Publish(ctx, t, payload)
}

// reportError turns a rejection into an ERROR event for the originating
// connection. Nothing here touches other connections or the broker.
func (r *Relay) reportError(conn *state.Connection, err error) {
	var evErr *EventError
	if !errors.As(err, &evErr) {
		evErr = dependencyError("failed to process message", err)
	}
	r.logger.Warn("Rejected client event",
		slog.String("connID", conn.ID.String()),
		slog.String("kind", string(evErr.Kind)),
		slog.Any("error", evErr),
	)
	metrics.EventErrors.WithLabelValues(string(evErr.Kind)).Inc()
	r.send(conn, protocol.NewError(evErr.Message))
}
