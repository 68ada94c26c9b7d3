package model

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidRole = goerr.New("invalid role")

// ChatID identifies one conversation. Turns never cross chat boundaries.
type ChatID string

type InteractionID string

// NewInteractionID generates a new unique InteractionID
func NewInteractionID() InteractionID {
	return InteractionID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	default:
		return goerr.Wrap(ErrInvalidRole, "unknown role", goerr.V("role", r))
	}
}

// Turn is one message of a conversation. Turns are immutable once written;
// the store is append-only and a user turn and its assistant reply share
// the same Timestamp because they form one interaction.
type Turn struct {
	ChatID    ChatID            `firestore:"chat_id" json:"chat_id"`
	Role      Role              `firestore:"role" json:"role"`
	Content   string            `firestore:"content" json:"content"`
	Timestamp float64           `firestore:"timestamp" json:"timestamp"`
	Embedding []float64         `firestore:"embedding" json:"embedding"`
	Metadata  map[string]string `firestore:"metadata,omitempty" json:"metadata,omitempty"`
}

// ScoredTurn annotates a stored turn with its similarity to a query
// embedding. Computed per request, never persisted.
type ScoredTurn struct {
	Turn       *Turn
	Similarity float64
}
