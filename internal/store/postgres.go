package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/chatfabric/chatfabric/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		online BOOLEAN NOT NULL DEFAULT FALSE,
		last_active TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		last_message_id TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL REFERENCES groups(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (group_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS private_chats (
		id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL REFERENCES users(id),
		user_b TEXT NOT NULL REFERENCES users(id),
		last_message_id TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		chat_type TEXT NOT NULL,
		sender_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, chat_type, created_at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UserByID retrieves a user by id. Returns (nil, nil) when absent.
func (s *PostgresStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, name, avatar, online, last_active
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Avatar,
		&user.Online,
		&user.LastActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UserByUsername retrieves a user by username. Returns (nil, nil) when absent.
func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, name, avatar, online, last_active
		FROM users WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Avatar,
		&user.Online,
		&user.LastActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// SetUserPresence flips the online flag and refreshes last_active.
func (s *PostgresStore) SetUserPresence(ctx context.Context, userID string, online bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET online = $2, last_active = NOW() WHERE id = $1
	`, userID, online)
	return err
}

// IsGroupMember reports whether the user belongs to the group.
func (s *PostgresStore) IsGroupMember(ctx context.Context, userID, groupID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GroupsForUser lists every group the user is a member of.
func (s *PostgresStore) GroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.last_message_id
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.LastMessageID); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// SaveGroupMessage persists a group message and advances the group's
// last-message pointer.
func (s *PostgresStore) SaveGroupMessage(ctx context.Context, senderID, groupID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Content:   content,
		SenderID:  senderID,
		ChatID:    groupID,
		ChatType:  models.ChatTypeGroup,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		SELECT username FROM users WHERE id = $1
	`, senderID).Scan(&msg.SenderUsername)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, chat_type, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ChatID, msg.ChatType, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE groups SET last_message_id = $2 WHERE id = $1
	`, groupID, msg.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// SavePrivateMessage persists a private message, creating the pair chat on
// first contact. The chat id is the sorted participant pair, so both
// directions land in the same conversation.
func (s *PostgresStore) SavePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	chatID := PairChatID(senderID, recipientID)
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Content:   content,
		SenderID:  senderID,
		ChatID:    chatID,
		ChatType:  models.ChatTypePrivate,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		SELECT username FROM users WHERE id = $1
	`, senderID).Scan(&msg.SenderUsername)
	if err != nil {
		return nil, err
	}

	a, b := orderPair(senderID, recipientID)
	_, err = tx.Exec(ctx, `
		INSERT INTO private_chats (id, user_a, user_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, chatID, a, b)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, chat_type, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ChatID, msg.ChatType, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE private_chats SET last_message_id = $2 WHERE id = $1
	`, chatID, msg.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// GroupMessages returns one page of a group's history, newest first.
func (s *PostgresStore) GroupMessages(ctx context.Context, groupID string, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.content, m.sender_id, u.username, m.chat_id, m.chat_type, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1 AND m.chat_type = $2
		ORDER BY m.created_at DESC
		LIMIT $3 OFFSET $4
	`, groupID, models.ChatTypeGroup, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.SenderID, &m.SenderUsername, &m.ChatID, &m.ChatType, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
