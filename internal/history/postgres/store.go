package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shoptalk/shoptalk/internal/history"
)

// Store persists sessions and messages in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// Append records one message. The session row is created on first
// append and its last_activity bumped on every subsequent one, all in a
// single transaction so a session never exists without its message.
func (s *Store) Append(ctx context.Context, in history.AppendInput) (history.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return history.Message{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_session (session_id, name)
VALUES ($1, $2)
ON CONFLICT (session_id)
DO UPDATE SET last_activity = NOW()`, in.SessionID, in.SessionName); err != nil {
		return history.Message{}, fmt.Errorf("upsert session: %w", err)
	}

	message := history.Message{
		SessionID:   in.SessionID,
		Role:        in.Role,
		Content:     in.Content,
		SQL:         in.SQL,
		ResultCount: in.ResultCount,
		Success:     in.Success,
	}
	if err := tx.QueryRowContext(ctx, `
INSERT INTO chat_message (session_id, role, content, sql_query, result_count, success)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`, in.SessionID, in.Role, in.Content, in.SQL, in.ResultCount, in.Success).Scan(
		&message.ID,
		&message.CreatedAt,
	); err != nil {
		return history.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return history.Message{}, fmt.Errorf("commit append tx: %w", err)
	}
	return message, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]history.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.session_id, s.name, s.created_at, s.last_activity,
       (SELECT COUNT(*) FROM chat_message AS m WHERE m.session_id = s.session_id) AS message_count
FROM chat_session AS s
ORDER BY s.last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]history.Session, 0)
	for rows.Next() {
		var session history.Session
		if err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.CreatedAt,
			&session.LastActivity,
			&session.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

// LoadMessages returns the full transcript of a session in insertion
// order. A limit of zero loads everything; a positive limit keeps only
// the most recent messages, still oldest first.
func (s *Store) LoadMessages(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	query := `
SELECT id, session_id, role, content, sql_query, result_count, success, created_at
FROM chat_message
WHERE session_id = $1
ORDER BY id ASC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, sql_query, result_count, success, created_at
FROM (
    SELECT id, session_id, role, content, sql_query, result_count, success, created_at
    FROM chat_message
    WHERE session_id = $1
    ORDER BY id DESC
    LIMIT $2
) AS recent
ORDER BY id ASC`, sessionID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]history.Message, 0)
	for rows.Next() {
		var message history.Message
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Role,
			&message.Content,
			&message.SQL,
			&message.ResultCount,
			&message.Success,
			&message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// DeleteSession removes a session and its messages. It reports whether
// the session existed.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM chat_message
WHERE session_id = $1`, sessionID); err != nil {
		return false, fmt.Errorf("delete session messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
DELETE FROM chat_session
WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	return rows > 0, nil
}
