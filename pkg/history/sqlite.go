package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"multimind-hq/relay/pkg/providers"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_created ON chats(created_at);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);
`

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps everything in memory.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements Store on SQLite through the pure-Go modernc driver.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
			return nil, storageError("sqlite", "create_dir", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageError("sqlite", "create_schema", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "history.sqlite"),
	}
	s.logger.Info("chat history opened", "path", cfg.Path)
	return s, nil
}

// CreateChat implements Store.
func (s *SQLiteStore) CreateChat(ctx context.Context, c *Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, string(c.Provider), c.Model, toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return storageError("sqlite", "create_chat", err)
	}
	return nil
}

// GetChat implements Store.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*Chat, error) {
	var (
		c                Chat
		provider         string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, provider, model, created_at, updated_at
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &provider, &c.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("sqlite", "get_chat", err)
	}
	c.Provider = providers.Provider(provider)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, provider, model, created_at
		FROM messages WHERE chat_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storageError("sqlite", "get_messages", err)
	}
	defer rows.Close()

	c.Messages = []Message{}
	for rows.Next() {
		var (
			m         Message
			role      string
			mp        string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &mp, &m.Model, &createdAt); err != nil {
			return nil, storageError("sqlite", "scan_message", err)
		}
		m.ChatID = id
		m.Role = Role(role)
		m.Provider = providers.Provider(mp)
		m.CreatedAt = fromMillis(createdAt)
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("sqlite", "get_messages", err)
	}
	return &c, nil
}

// ListChats implements Store.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, provider, model, created_at, updated_at
		FROM chats ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageError("sqlite", "list_chats", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var (
			c                Chat
			provider         string
			created, updated int64
		)
		if err := rows.Scan(&c.ID, &c.Title, &provider, &c.Model, &created, &updated); err != nil {
			return nil, storageError("sqlite", "scan_chat", err)
		}
		c.Provider = providers.Provider(provider)
		c.CreatedAt = fromMillis(created)
		c.UpdatedAt = fromMillis(updated)
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("sqlite", "list_chats", err)
	}
	return chats, nil
}

// UpdateChat implements Store.
func (s *SQLiteStore) UpdateChat(ctx context.Context, c *Chat) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chats SET title = ?, provider = ?, model = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, string(c.Provider), c.Model, toMillis(c.UpdatedAt), c.ID)
	if err != nil {
		return storageError("sqlite", "update_chat", err)
	}
	return requireRow(res)
}

// AppendMessages implements Store. All messages share one transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, msgs ...*Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("sqlite", "begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, m := range msgs {
		res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`,
			toMillis(m.CreatedAt), m.ChatID)
		if err != nil {
			return storageError("sqlite", "touch_chat", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, chat_id, seq, role, content, provider, model, created_at)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = ?), ?, ?, ?, ?, ?)`,
			m.ID, m.ChatID, m.ChatID, string(m.Role), m.Content, string(m.Provider), m.Model, toMillis(m.CreatedAt))
		if err != nil {
			return storageError("sqlite", "append_message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("sqlite", "commit", err)
	}
	return nil
}

// ClearMessages implements Store.
func (s *SQLiteStore) ClearMessages(ctx context.Context, chatID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chats WHERE id = ?`, chatID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageError("sqlite", "clear_messages", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return storageError("sqlite", "clear_messages", err)
	}
	return nil
}

// DeleteChat implements Store.
func (s *SQLiteStore) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return storageError("sqlite", "delete_chat", err)
	}
	return requireRow(res)
}

// DeleteAll implements Store.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats`)
	if err != nil {
		return 0, storageError("sqlite", "delete_all", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PruneBefore implements Store.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE updated_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, storageError("sqlite", "prune", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("sqlite", "rows_affected", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
