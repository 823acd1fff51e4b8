package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"askmom/internal/core"
)

// PostgreSQLStore implements core.ConversationStore on a PostgreSQL pool.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQL connects to PostgreSQL and ensures the schema exists.
func NewPostgreSQL(ctx context.Context, cfg PostgreSQLConfig) (*PostgreSQLStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgresql URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &PostgreSQLStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgreSQLStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			last_message_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, last_message_at DESC)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS blocked_artifacts (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			turn_id TEXT,
			reasons TEXT NOT NULL,
			redacted_content TEXT NOT NULL,
			fingerprint BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *PostgreSQLStore) CreateConversation(ctx context.Context, conv *core.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, title, status, risk_level, last_message_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conv.ID, conv.UserID, conv.Title, conv.Status, string(conv.RiskLevel),
		conv.LastMessageAt.UTC(), conv.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(title, ''), status, risk_level, last_message_at, created_at
		 FROM conversations WHERE id = $1`, id)

	var conv core.Conversation
	var riskLevel string
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Status, &riskLevel,
		&conv.LastMessageAt, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("conversation not found: " + id)
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	conv.RiskLevel = core.RiskLevel(riskLevel)
	return &conv, nil
}

func (s *PostgreSQLStore) ListConversations(ctx context.Context, userID, query string, limit int) ([]core.Conversation, error) {
	limit = clampListLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		rows, err = s.pool.Query(ctx,
			`SELECT DISTINCT c.id, c.user_id, COALESCE(c.title, ''), c.status, c.risk_level, c.last_message_at, c.created_at
			 FROM conversations c
			 JOIN turns t ON t.conversation_id = c.id
			 WHERE c.user_id = $1 AND t.text ILIKE $2
			 ORDER BY c.last_message_at DESC LIMIT $3`,
			userID, pattern, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, COALESCE(title, ''), status, risk_level, last_message_at, created_at
			 FROM conversations WHERE user_id = $1
			 ORDER BY last_message_at DESC LIMIT $2`,
			userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []core.Conversation
	for rows.Next() {
		var conv core.Conversation
		var riskLevel string
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Status, &riskLevel,
			&conv.LastMessageAt, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.RiskLevel = core.RiskLevel(riskLevel)
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) AppendTurn(ctx context.Context, turn *core.Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO turns (id, conversation_id, role, text, risk_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.ConversationID, string(turn.Role), turn.Text,
		string(turn.RiskLevel), turn.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert turn: %w", err)
	}
	return turn.ID, nil
}

func (s *PostgreSQLStore) RecentTurns(ctx context.Context, conversationID string, filter core.TurnFilter) ([]core.Turn, error) {
	limit := clampTurnsLimit(filter.Limit)

	q := `SELECT id, conversation_id, role, text, risk_level, created_at
	      FROM turns WHERE conversation_id = $1`
	args := []interface{}{conversationID}

	if filter.Role != "" {
		args = append(args, string(filter.Role))
		q += fmt.Sprintf(` AND role = $%d`, len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		q += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
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

func (s *PostgreSQLStore) UpdateConversationSummary(ctx context.Context, conv *core.Conversation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET
			title = CASE WHEN $1 != '' THEN $1 ELSE title END,
			status = CASE WHEN $2 != '' THEN $2 ELSE status END,
			risk_level = CASE WHEN $3 != '' THEN $3 ELSE risk_level END,
			last_message_at = $4
		 WHERE id = $5`,
		conv.Title, conv.Status, string(conv.RiskLevel),
		conv.LastMessageAt.UTC(), conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFoundError("conversation not found: " + conv.ID)
	}
	return nil
}

func (s *PostgreSQLStore) RecordRedaction(ctx context.Context, artifact *core.BlockedArtifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocked_artifacts (id, conversation_id, turn_id, reasons, redacted_content, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		artifact.ID, artifact.ConversationID, artifact.TurnID,
		joinReasons(artifact.Reasons), artifact.RedactedContent,
		int64(artifact.Fingerprint), artifact.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert blocked artifact: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE status = $1 AND last_message_at < $2`,
		core.StatusClosed, olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	removed := tag.RowsAffected()

	_, err = s.pool.Exec(ctx,
		`DELETE FROM turns WHERE conversation_id NOT IN (SELECT id FROM conversations)`)
	if err != nil {
		return removed, fmt.Errorf("failed to prune turns: %w", err)
	}
	return removed, nil
}

func (s *PostgreSQLStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
