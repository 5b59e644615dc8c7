package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/lumen/internal/cell"
)

// SQLiteStore implements CellStore and SuggestionCache on SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ CellStore       = (*SQLiteStore)(nil)
	_ SuggestionCache = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{now: time.Now}
}

// OpenStore opens path, creating parent directories, and migrates it.
func OpenStore(path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if path != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	dsn := "file:" + path + "?" + params.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// --- Cells ---

// Append implements CellStore.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, c *cell.Cell) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if c == nil {
		return fmt.Errorf("cannot append nil cell")
	}

	body, err := cell.Canonical(c)
	if err != nil {
		return fmt.Errorf("failed to encode cell: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conversationID, c.Title, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	position := c.Context.Position
	if position <= 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM cells WHERE conversation_id = ?`,
			conversationID).Scan(&position); err != nil {
			return fmt.Errorf("failed to compute position: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cells (id, conversation_id, position, parent_id, question, title, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, conversationID, position, nullString(c.Context.ParentCellID),
		c.Question, c.Title, c.CreatedAt, string(body))
	if err != nil {
		return fmt.Errorf("failed to insert cell: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cell: %w", err)
	}
	return nil
}

// Get implements CellStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*cell.Cell, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM cells WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}
	return decodeCell(body)
}

// Update implements CellStore.
func (s *SQLiteStore) Update(ctx context.Context, id string, p Patch) (*cell.Cell, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM cells WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}

	c, err := decodeCell(body)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}

	updated, err := cell.Canonical(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cell: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE cells SET title = ?, body = ? WHERE id = ?`,
		c.Title, string(updated), id); err != nil {
		return nil, fmt.Errorf("failed to update cell: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cell update: %w", err)
	}
	return c, nil
}

// Delete implements CellStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM cells WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	return nil
}

// LatestForConversation implements CellStore.
func (s *SQLiteStore) LatestForConversation(ctx context.Context, conversationID string, limit int) ([]*cell.Cell, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM (
			SELECT body, position FROM cells
			WHERE conversation_id = ?
			ORDER BY position DESC
			LIMIT ?
		) ORDER BY position ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cells []*cell.Cell
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		c, err := decodeCell(body)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// NextPosition implements CellStore.
func (s *SQLiteStore) NextPosition(ctx context.Context, conversationID string) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	// Deletes leave gaps, so count-based positions would collide.
	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM cells WHERE conversation_id = ?`, conversationID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute position: %w", err)
	}
	return next, nil
}

// ConversationOf implements CellStore.
func (s *SQLiteStore) ConversationOf(ctx context.Context, id string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var conv string
	err := s.db.QueryRowContext(ctx, `SELECT conversation_id FROM cells WHERE id = ?`, id).Scan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cell conversation: %w", err)
	}
	return conv, nil
}

// --- Conversations ---

// ListConversations returns every conversation, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]Conversation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(x.id)
		FROM conversations c
		LEFT JOIN cells x ON x.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.CellCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Suggestions ---

// Suggestions implements SuggestionCache.
func (s *SQLiteStore) Suggestions(ctx context.Context, schemaHash string) ([]string, bool, error) {
	if s.db == nil {
		return nil, false, fmt.Errorf("database not opened")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT questions FROM suggestions WHERE schema_hash = ?`, schemaHash).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get suggestions: %w", err)
	}

	var qs []string
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, false, fmt.Errorf("failed to decode suggestions: %w", err)
	}
	return qs, true, nil
}

// SaveSuggestions implements SuggestionCache.
func (s *SQLiteStore) SaveSuggestions(ctx context.Context, schemaHash string, questions []string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestions (schema_hash, questions, created_at) VALUES (?, ?, ?)
		ON CONFLICT(schema_hash) DO UPDATE SET questions = excluded.questions, created_at = excluded.created_at`,
		schemaHash, string(raw), s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	return nil
}

func decodeCell(body string) (*cell.Cell, error) {
	var c cell.Cell
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("failed to decode cell: %w", err)
	}
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
