package chatassist

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single entry in the widget transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`     // "user" or "assistant"
	Text      string    `json:"text"`     // Message content
	IsError   bool      `json:"is_error"` // Synthesized from a failed dispatch
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(text string) Message {
	return newMessage(RoleUser, text, false)
}

// NewAssistantMessage creates a new assistant reply.
func NewAssistantMessage(text string) Message {
	return newMessage(RoleAssistant, text, false)
}

// NewErrorMessage creates an assistant message that reports a failure.
func NewErrorMessage(message string) Message {
	return newMessage(RoleAssistant, "Error: "+message, true)
}

func newMessage(role Role, text string, isError bool) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		IsError:   isError,
		CreatedAt: time.Now(),
	}
}
