package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// ErrStoreUnavailable wraps any read/write failure of the underlying
// history store. Readers must propagate it: an unreachable store is not
// the same as a chat with no history.
var ErrStoreUnavailable = goerr.New("history store unavailable")

// Repository defines the interface for chat turn persistence. The store
// is append-only: no updates, no deletes.
type Repository interface {
	// PutTurns appends one or more immutable turn records
	PutTurns(ctx context.Context, turns []*model.Turn) error

	// RecentTurns retrieves up to limit turns for the chat, most recent first
	RecentTurns(ctx context.Context, chatID model.ChatID, limit int) ([]*model.Turn, error)
}
