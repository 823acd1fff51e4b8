package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"askmom/internal/core"
)

// SQLiteStore implements core.ConversationStore on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the database file with WAL mode
// enabled for concurrent reads, then ensures the schema exists.
func NewSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		cfg.Path = "data/askmom.db"
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows one writer at a time; a small pool is enough.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			last_message_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS blocked_artifacts (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			turn_id TEXT,
			reasons TEXT NOT NULL,
			redacted_content TEXT NOT NULL,
			fingerprint INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *core.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, status, risk_level, last_message_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.Status, string(conv.RiskLevel),
		conv.LastMessageAt.UTC(), conv.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, risk_level, last_message_at, created_at
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row, id)
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID, query string, limit int) ([]core.Conversation, error) {
	limit = clampListLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		rows, err = s.db.QueryContext(ctx,
			`SELECT DISTINCT c.id, c.user_id, c.title, c.status, c.risk_level, c.last_message_at, c.created_at
			 FROM conversations c
			 JOIN turns t ON t.conversation_id = c.id
			 WHERE c.user_id = ? AND LOWER(t.text) LIKE LOWER(?) ESCAPE '\'
			 ORDER BY c.last_message_at DESC LIMIT ?`,
			userID, pattern, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, user_id, title, status, risk_level, last_message_at, created_at
			 FROM conversations WHERE user_id = ?
			 ORDER BY last_message_at DESC LIMIT ?`,
			userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	return collectConversations(rows)
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *core.Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, text, risk_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationID, string(turn.Role), turn.Text,
		string(turn.RiskLevel), turn.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert turn: %w", err)
	}
	return turn.ID, nil
}

func (s *SQLiteStore) RecentTurns(ctx context.Context, conversationID string, filter core.TurnFilter) ([]core.Turn, error) {
	limit := clampTurnsLimit(filter.Limit)

	q := `SELECT id, conversation_id, role, text, risk_level, created_at
	      FROM turns WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if filter.Role != "" {
		q += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if !filter.Since.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	// Newest first under the limit, reversed to ascending below.
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var out []core.Turn
	for rows.Next() {
		var t core.Turn
		var role, riskLevel string
		if err := rows.Scan(&t.ID, &t.ConversationID, &role, &t.Text, &riskLevel, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = core.Role(role)
		t.RiskLevel = core.RiskLevel(riskLevel)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverseTurns(out)
	return out, nil
}

func (s *SQLiteStore) UpdateConversationSummary(ctx context.Context, conv *core.Conversation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET
			title = CASE WHEN ? != '' THEN ? ELSE title END,
			status = CASE WHEN ? != '' THEN ? ELSE status END,
			risk_level = CASE WHEN ? != '' THEN ? ELSE risk_level END,
			last_message_at = ?
		 WHERE id = ?`,
		conv.Title, conv.Title,
		conv.Status, conv.Status,
		string(conv.RiskLevel), string(conv.RiskLevel),
		conv.LastMessageAt.UTC(), conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("conversation not found: " + conv.ID)
	}
	return nil
}

func (s *SQLiteStore) RecordRedaction(ctx context.Context, artifact *core.BlockedArtifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocked_artifacts (id, conversation_id, turn_id, reasons, redacted_content, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.ConversationID, artifact.TurnID,
		joinReasons(artifact.Reasons), artifact.RedactedContent,
		int64(artifact.Fingerprint), artifact.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert blocked artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE status = ? AND last_message_at < ?`,
		core.StatusClosed, olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned conversations: %w", err)
	}

	// Orphaned turns go with their conversations.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE conversation_id NOT IN (SELECT id FROM conversations)`)
	if err != nil {
		return removed, fmt.Errorf("failed to prune turns: %w", err)
	}
	return removed, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---------------------------------------------------------------------
// Shared row helpers
// ---------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner, id string) (*core.Conversation, error) {
	var conv core.Conversation
	var title sql.NullString
	var riskLevel string
	err := row.Scan(&conv.ID, &conv.UserID, &title, &conv.Status, &riskLevel,
		&conv.LastMessageAt, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("conversation not found: " + id)
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	conv.Title = title.String
	conv.RiskLevel = core.RiskLevel(riskLevel)
	return &conv, nil
}

func collectConversations(rows *sql.Rows) ([]core.Conversation, error) {
	var out []core.Conversation
	for rows.Next() {
		var conv core.Conversation
		var title sql.NullString
		var riskLevel string
		if err := rows.Scan(&conv.ID, &conv.UserID, &title, &conv.Status, &riskLevel,
			&conv.LastMessageAt, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.Title = title.String
		conv.RiskLevel = core.RiskLevel(riskLevel)
		out = append(out, conv)
	}
	return out, rows.Err()
}

func reverseTurns(turns []core.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func joinReasons(reasons []core.RedactionReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// escapeLike escapes LIKE wildcards in user-supplied search strings.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
