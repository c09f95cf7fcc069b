package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout matches strftime('%Y-%m-%d %H:%M:%f') as written by the schema defaults.
const timeLayout = "2006-01-02 15:04:05.000"

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// DefaultDBPath returns the default database path (~/.local/share/termwave/chat_history.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "termwave", "chat_history.db"), nil
}

// Open opens (or creates) a SQLite database at dbPath and migrates the schema
// to the latest version.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single user, single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) CreateChat(ctx context.Context, title string) (ID, error) {
	if title == "" {
		title = DefaultTitle
	}
	res, err := s.db.ExecContext(ctx, "INSERT INTO chats (title) VALUES (?)", title)
	if err != nil {
		return NoChat, fmt.Errorf("create chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return NoChat, fmt.Errorf("create chat: %w", err)
	}
	return ID(id), nil
}

func (s *SQLiteStore) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, title_set, created_at
		FROM chats
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, id ID) (Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, title_set, created_at
		FROM chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, fmt.Errorf("chat %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Chat{}, err
	}
	return c, nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, id ID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, timestamp
		FROM messages
		WHERE chat_id = ?
		ORDER BY timestamp ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var role, ts string
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		m.Timestamp = parseTime(ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, id ID, role Role, content string) (bool, error) {
	if id == NoChat {
		return false, nil
	}
	if !role.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save message: %w", err)
	}
	defer tx.Rollback()

	var titleSet bool
	err = tx.QueryRowContext(ctx, "SELECT title_set FROM chats WHERE id = ?", id).Scan(&titleSet)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("save message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)",
		id, string(role), content,
	); err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}

	// The first user message fixes the title for good. A blank message keeps
	// the placeholder.
	if role == RoleUser && !titleSet {
		if _, err := tx.ExecContext(ctx,
			"UPDATE chats SET title = COALESCE(NULLIF(?, ''), title), title_set = 1 WHERE id = ? AND title_set = 0",
			Title(content), id,
		); err != nil {
			return false, fmt.Errorf("update chat title: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save message: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) CountMessages(ctx context.Context, id ID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE chat_id = ?", id,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, id ID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (Chat, error) {
	var c Chat
	var createdAt string
	if err := r.Scan(&c.ID, &c.Title, &c.TitleSet, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, err
		}
		return Chat{}, fmt.Errorf("scan chat: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
