// Package store is the boundary to the authoritative persistence layer.
// The core treats it as a collaborator: membership checks, message
// persistence, and presence updates go through the Store interface, and
// both SQL backends implement it.
package store

import (
	"context"

	"github.com/chatfabric/chatfabric/internal/models"
)

// Store is the persistent, authoritative side of the system. All writes
// are single-row upserts scoped to one entity, so concurrent processes
// never corrupt each other.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	SetUserPresence(ctx context.Context, userID string, online bool) error

	// Group membership (authoritative; checked at join and send time)
	IsGroupMember(ctx context.Context, userID, groupID string) (bool, error)
	GroupsForUser(ctx context.Context, userID string) ([]models.Group, error)

	// Message persistence. Save operations assign the message id and
	// advance the conversation's last-message pointer.
	SaveGroupMessage(ctx context.Context, senderID, groupID, content string) (*models.Message, error)
	SavePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)

	// GroupMessages returns one page of history, newest first.
	GroupMessages(ctx context.Context, groupID string, page, limit int) ([]models.Message, error)
}

// Lookup misses are returned as (nil, nil) by UserByID/UserByUsername;
// callers distinguish "not found" from store failure that way.
