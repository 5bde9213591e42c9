package aichat

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	InputTypeText  = "text"
	InputTypeVoice = "voice"
)

var validInputTypes = map[string]bool{
	InputTypeText:  true,
	InputTypeVoice: true,
}

// Session groups the messages of one conversation. DifyConversationID is
// the upstream conversation handle; it is empty until the first exchange
// completes and is reused on every follow-up so the model keeps context.
type Session struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"-"`
	DifyConversationID string     `json:"-"`
	Title              string     `json:"title"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	DeletedAt          *time.Time `json:"-"`
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"sessionId"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	InputType  string    `json:"inputType"`
	SafetyHint string    `json:"safetyHint,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// sessionTitle derives a session title from the opening message,
// truncated to a display-friendly length.
func sessionTitle(message string) string {
	const maxTitle = 20
	runes := []rune(message)
	if len(runes) <= maxTitle {
		return message
	}
	return string(runes[:maxTitle])
}
