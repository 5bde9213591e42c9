package aichat

import (
	"context"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	// Touch records a completed exchange: it stores the upstream
	// conversation id and bumps updated_at.
	Touch(ctx context.Context, id uuid.UUID, difyConversationID string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Message, error)
}
