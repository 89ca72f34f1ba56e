// Package store provides the SQLite-backed relational layer: chatbot
// registrations, chat sessions with their message history, and upload
// records. The vector index and chunk metadata live in their own files and
// are owned by the knowledge-base engine; this store only tracks the
// conversational and administrative state around them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser is a message sent by the end user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the generation model.
	RoleAssistant Role = "assistant"
)

// Chatbot is a registered tenant. Its ID doubles as the tenant ID that keys
// the vector index and document metadata.
type Chatbot struct {
	// ID is the chatbot's unique identifier.
	ID string
	// Name is the operator-facing display name.
	Name string
	// CreatedAt is when the chatbot was registered.
	CreatedAt time.Time
}

// Session is one conversation thread with a chatbot.
type Session struct {
	// ID is the session's unique identifier.
	ID string
	// ChatbotID is the owning chatbot.
	ChatbotID string
	// Name is the session's display name.
	Name string
	// CreatedAt is when the session was opened.
	CreatedAt time.Time
}

// Message is a single turn in a chat session.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Upload is the relational record of an ingested file.
type Upload struct {
	// DocumentID matches the ID under which the file was indexed.
	DocumentID string
	// ChatbotID is the owning chatbot.
	ChatbotID string
	// FileName is the original name of the uploaded file.
	FileName string
	// FilePath is where the file was stored on disk.
	FilePath string
	// NumChunks is how many chunks the file produced at ingestion.
	NumChunks int
	// CreatedAt is when the upload was recorded.
	CreatedAt time.Time
}

// Store persists chatbots, sessions, messages, and upload records in a local
// SQLite database. It is safe for concurrent use.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the database. It resolves to
// ~/.chatkb/chatkb.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".chatkb")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "chatkb.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chatbots (
    id          TEXT PRIMARY KEY,
    name        TEXT    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);

CREATE TABLE IF NOT EXISTS chat_sessions (
    id          TEXT PRIMARY KEY,
    chatbot_id  TEXT    NOT NULL REFERENCES chatbots(id),
    name        TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_chatbot
    ON chat_sessions (chatbot_id, created_at);

CREATE TABLE IF NOT EXISTS chat_messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES chat_sessions(id),
    role        TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content     TEXT    NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_created
    ON chat_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS uploads (
    document_id TEXT PRIMARY KEY,
    chatbot_id  TEXT    NOT NULL REFERENCES chatbots(id),
    file_name   TEXT    NOT NULL,
    file_path   TEXT    NOT NULL,
    num_chunks  INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_chatbot
    ON uploads (chatbot_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateChatbot registers a new chatbot and returns it. The generated ID is
// a UUID, which satisfies the tenant-ID charset used by the index files.
func (s *Store) CreateChatbot(ctx context.Context, name string) (Chatbot, error) {
	if name == "" {
		return Chatbot{}, fmt.Errorf("store: chatbot name must not be empty")
	}
	bot := Chatbot{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO chatbots (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, bot.ID, bot.Name, bot.CreatedAt.Unix()); err != nil {
		return Chatbot{}, fmt.Errorf("store: create chatbot: %w", err)
	}
	return bot, nil
}

// GetChatbot returns the chatbot with the given ID. It returns sql.ErrNoRows
// (wrapped) when no such chatbot exists.
func (s *Store) GetChatbot(ctx context.Context, id string) (Chatbot, error) {
	const q = `SELECT id, name, created_at FROM chatbots WHERE id = ?`
	var bot Chatbot
	var ts int64
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&bot.ID, &bot.Name, &ts); err != nil {
		return Chatbot{}, fmt.Errorf("store: get chatbot %s: %w", id, err)
	}
	bot.CreatedAt = time.Unix(ts, 0)
	return bot, nil
}

// ListChatbots returns all registered chatbots ordered by creation time.
func (s *Store) ListChatbots(ctx context.Context) ([]Chatbot, error) {
	const q = `SELECT id, name, created_at FROM chatbots ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list chatbots: %w", err)
	}
	defer rows.Close()

	var bots []Chatbot
	for rows.Next() {
		var bot Chatbot
		var ts int64
		if err := rows.Scan(&bot.ID, &bot.Name, &ts); err != nil {
			return nil, fmt.Errorf("store: list chatbots scan: %w", err)
		}
		bot.CreatedAt = time.Unix(ts, 0)
		bots = append(bots, bot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list chatbots rows: %w", err)
	}
	return bots, nil
}

// CreateSession opens a new chat session for the chatbot and returns it.
func (s *Store) CreateSession(ctx context.Context, chatbotID, name string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		ChatbotID: chatbotID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO chat_sessions (id, chatbot_id, name, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.ChatbotID, sess.Name, sess.CreatedAt.Unix()); err != nil {
		return Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// AppendMessage persists a single message for the given session.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role Role, content string) error {
	const q = `INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent n messages for the session, ordered
// oldest-first so they can be prepended to the model message slice directly.
// If fewer than n messages exist, all are returned.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   chat_messages
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent messages scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent messages rows: %w", err)
	}
	return msgs, nil
}

// RecordUpload persists the relational record of an ingested file. Re-using
// a document ID replaces the previous record, mirroring the index behavior.
func (s *Store) RecordUpload(ctx context.Context, up Upload) error {
	const q = `
INSERT INTO uploads (document_id, chatbot_id, file_name, file_path, num_chunks, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(document_id) DO UPDATE SET
    chatbot_id = excluded.chatbot_id,
    file_name  = excluded.file_name,
    file_path  = excluded.file_path,
    num_chunks = excluded.num_chunks,
    created_at = excluded.created_at`
	if _, err := s.db.ExecContext(ctx, q,
		up.DocumentID, up.ChatbotID, up.FileName, up.FilePath, up.NumChunks, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record upload: %w", err)
	}
	return nil
}

// ListUploads returns the chatbot's upload records ordered by creation time.
func (s *Store) ListUploads(ctx context.Context, chatbotID string) ([]Upload, error) {
	const q = `
SELECT document_id, file_name, file_path, num_chunks, created_at
FROM   uploads
WHERE  chatbot_id = ?
ORDER  BY created_at ASC, document_id ASC`

	rows, err := s.db.QueryContext(ctx, q, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("store: list uploads: %w", err)
	}
	defer rows.Close()

	var ups []Upload
	for rows.Next() {
		var up Upload
		var ts int64
		if err := rows.Scan(&up.DocumentID, &up.FileName, &up.FilePath, &up.NumChunks, &ts); err != nil {
			return nil, fmt.Errorf("store: list uploads scan: %w", err)
		}
		up.ChatbotID = chatbotID
		up.CreatedAt = time.Unix(ts, 0)
		ups = append(ups, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list uploads rows: %w", err)
	}
	return ups, nil
}

// Ping verifies the database connection is alive. Used by GET /api/ready.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
