package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Memory is an in-memory Repository for unit tests and local runs. It
// mirrors the Firestore query semantics: per-chat partition, descending
// timestamp, bounded result.
type Memory struct {
	mu    sync.RWMutex
	turns map[model.ChatID][]*model.Turn

	// PutErr and QueryErr inject failures for testing best-effort write
	// and read propagation behavior.
	PutErr   error
	QueryErr error
}

// NewMemory creates a new in-memory repository
func NewMemory() *Memory {
	return &Memory{
		turns: map[model.ChatID][]*model.Turn{},
	}
}

func (r *Memory) PutTurns(ctx context.Context, turns []*model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.PutErr != nil {
		return r.PutErr
	}

	for _, turn := range turns {
		copied := *turn
		r.turns[turn.ChatID] = append(r.turns[turn.ChatID], &copied)
	}
	return nil
}

func (r *Memory) RecentTurns(ctx context.Context, chatID model.ChatID, limit int) ([]*model.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.QueryErr != nil {
		return nil, r.QueryErr
	}

	stored := r.turns[chatID]
	turns := make([]*model.Turn, len(stored))
	copy(turns, stored)

	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp > turns[j].Timestamp
	})

	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

// Count returns the total number of stored turns across all chats
func (r *Memory) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, turns := range r.turns {
		total += len(turns)
	}
	return total
}
