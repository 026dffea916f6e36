package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/chatfabric/chatfabric/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// backend; production runs on PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatfabric.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatfabric.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		online INTEGER NOT NULL DEFAULT 0,
		last_active TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
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
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, chat_type, created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UserByID retrieves a user by id. Returns (nil, nil) when absent.
func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, avatar, online, last_active
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Avatar,
		&user.Online,
		&user.LastActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UserByUsername retrieves a user by username. Returns (nil, nil) when absent.
func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, avatar, online, last_active
		FROM users WHERE username = ?
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Avatar,
		&user.Online,
		&user.LastActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// SetUserPresence flips the online flag and refreshes last_active.
func (s *SQLiteStore) SetUserPresence(ctx context.Context, userID string, online bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET online = ?, last_active = CURRENT_TIMESTAMP WHERE id = ?
	`, online, userID)
	return err
}

// IsGroupMember reports whether the user belongs to the group.
func (s *SQLiteStore) IsGroupMember(ctx context.Context, userID, groupID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// GroupsForUser lists every group the user is a member of.
func (s *SQLiteStore) GroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.last_message_id
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
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
func (s *SQLiteStore) SaveGroupMessage(ctx context.Context, senderID, groupID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Content:   content,
		SenderID:  senderID,
		ChatID:    groupID,
		ChatType:  models.ChatTypeGroup,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		SELECT username FROM users WHERE id = ?
	`, senderID).Scan(&msg.SenderUsername)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, chat_type, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID, msg.ChatType, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE groups SET last_message_id = ? WHERE id = ?
	`, msg.ID, groupID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// SavePrivateMessage persists a private message, creating the pair chat on
// first contact.
func (s *SQLiteStore) SavePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	chatID := PairChatID(senderID, recipientID)
	msg := &models.Message{
		ID:        ulid.Make().String(),
		Content:   content,
		SenderID:  senderID,
		ChatID:    chatID,
		ChatType:  models.ChatTypePrivate,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		SELECT username FROM users WHERE id = ?
	`, senderID).Scan(&msg.SenderUsername)
	if err != nil {
		return nil, err
	}

	a, b := orderPair(senderID, recipientID)
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO private_chats (id, user_a, user_b)
		VALUES (?, ?, ?)
	`, chatID, a, b)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, chat_type, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID, msg.ChatType, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE private_chats SET last_message_id = ? WHERE id = ?
	`, msg.ID, chatID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// GroupMessages returns one page of a group's history, newest first.
func (s *SQLiteStore) GroupMessages(ctx context.Context, groupID string, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.content, m.sender_id, u.username, m.chat_id, m.chat_type, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ? AND m.chat_type = ?
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?
	`, groupID, models.ChatTypeGroup, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

// compile-time checks that both backends satisfy Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
