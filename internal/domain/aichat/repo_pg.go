package aichat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/health-assistant/health-assistant/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const sessionCols = `id, user_id, dify_conversation_id, title, created_at, updated_at, deleted_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.DifyConversationID, &s.Title,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	return &s, err
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO ai_session (id, user_id, dify_conversation_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.DifyConversationID, s.Title, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *sessionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM ai_session WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *sessionRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+sessionCols+` FROM ai_session
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepoPG) Touch(ctx context.Context, id uuid.UUID, difyConversationID string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE ai_session SET dify_conversation_id = $2, updated_at = now() WHERE id = $1`,
		id, difyConversationID)
	return err
}

func (r *sessionRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE ai_session SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const messageCols = `id, session_id, role, content, input_type, safety_hint, created_at`

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO ai_message (id, session_id, role, content, input_type, safety_hint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SessionID, m.Role, m.Content, m.InputType, m.SafetyHint, m.CreatedAt)
	return err
}

func (r *messageRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+messageCols+` FROM ai_message
		 WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.InputType, &m.SafetyHint, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
