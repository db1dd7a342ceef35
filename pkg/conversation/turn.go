package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the speaker name used when a turn is flattened into a prompt.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Turn is a single utterance in a conversation.
// Turns are handled by value, the store never exposes its backing slice.
type Turn struct {
	ID      uuid.UUID `json:"id" yaml:"id"`
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`
	Time    time.Time `json:"time" yaml:"time"`
}

type TurnOption func(*Turn)

func WithTime(t time.Time) TurnOption {
	return func(turn *Turn) {
		turn.Time = t
	}
}

func WithID(id uuid.UUID) TurnOption {
	return func(turn *Turn) {
		turn.ID = id
	}
}

func NewTurn(role Role, content string, options ...TurnOption) Turn {
	ret := Turn{
		ID:      uuid.New(),
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}
	for _, o := range options {
		o(&ret)
	}
	return ret
}

func NewUserTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleUser, content, options...)
}

func NewAssistantTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleAssistant, content, options...)
}

func (t Turn) String() string {
	return fmt.Sprintf("[%s]: %s", t.Role, t.Content)
}
