package aichat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// ChatStreamer is the upstream chat capability the service depends on.
// *DifyClient satisfies it; tests substitute a scripted stub.
type ChatStreamer interface {
	StreamChat(ctx context.Context, query, conversationID, user string, emit func(data []byte) error) (*StreamResult, error)
}

type Service struct {
	sessions SessionRepository
	messages MessageRepository
	upstream ChatStreamer
	now      func() time.Time
}

func NewService(sessions SessionRepository, messages MessageRepository, upstream ChatStreamer) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		upstream: upstream,
		now:      time.Now,
	}
}

type ChatInput struct {
	SessionID *uuid.UUID
	Message   string
	InputType string
}

type ChatResult struct {
	SessionID uuid.UUID
	Answer    string
}

// Chat runs one exchange: it resolves or creates the session, stores the
// user message, streams the upstream reply through emit, then stores the
// assistant message and the conversation handle. The user message is kept
// even when the upstream call fails, so the client can retry the same
// session without losing what was typed.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, in ChatInput, emit func(data []byte) error) (*ChatResult, error) {
	if in.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if in.InputType == "" {
		in.InputType = InputTypeText
	}
	if !validInputTypes[in.InputType] {
		return nil, fmt.Errorf("invalid input type %q", in.InputType)
	}

	var session *Session
	if in.SessionID != nil {
		owned, err := s.ownedSession(ctx, userID, *in.SessionID)
		if err != nil {
			return nil, err
		}
		session = owned
	} else {
		session = &Session{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     sessionTitle(in.Message),
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	userMsg := &Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      RoleUser,
		Content:   in.Message,
		InputType: in.InputType,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	result, err := s.upstream.StreamChat(ctx, in.Message, session.DifyConversationID, userID.String(), emit)
	if err != nil {
		return nil, err
	}

	assistantMsg := &Message{
		ID:        uuid.New(),
		SessionID: session.ID,
		Role:      RoleAssistant,
		Content:   result.Answer,
		InputType: InputTypeText,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	if err := s.sessions.Touch(ctx, session.ID, result.ConversationID); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	return &ChatResult{SessionID: session.ID, Answer: result.Answer}, nil
}

func (s *Service) GetSessions(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *Service) GetMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]*Message, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *Service) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.sessions.SoftDelete(ctx, sessionID)
}

// ownedSession loads a session and verifies ownership. A session owned by
// someone else is reported the same as a missing one.
func (s *Service) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	if session.UserID != userID || session.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return session, nil
}
