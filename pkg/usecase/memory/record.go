package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// RecordInteraction persists one completed user/assistant pair as a
// single logical interaction. The write is best effort: any failure is
// logged and reported as false, never raised, because the reply has
// already been shown to the end user by the time this runs. No retry is
// performed; at-most-once semantics.
func (uc *UseCase) RecordInteraction(ctx context.Context, userTurn, assistantTurn *model.Turn) bool {
	logger := logging.From(ctx)

	if err := validateInteraction(userTurn, assistantTurn); err != nil {
		logger.Error("refusing to record malformed interaction", "error", err)
		return false
	}

	// Both turns share one write timestamp; assign it here when the
	// caller has not.
	if userTurn.Timestamp == 0 && assistantTurn.Timestamp == 0 {
		ts := float64(time.Now().UnixNano()) / 1e9
		userTurn.Timestamp = ts
		assistantTurn.Timestamp = ts
	}

	if err := uc.repo.PutTurns(ctx, []*model.Turn{userTurn, assistantTurn}); err != nil {
		logger.Error("failed to record interaction",
			"chat_id", userTurn.ChatID, "error", err)
		return false
	}

	return true
}

func validateInteraction(userTurn, assistantTurn *model.Turn) error {
	if userTurn == nil || assistantTurn == nil {
		return goerr.New("both turns of an interaction are required")
	}
	if userTurn.Role != model.RoleUser {
		return goerr.New("first turn must have the user role", goerr.V("role", userTurn.Role))
	}
	if assistantTurn.Role != model.RoleAssistant {
		return goerr.New("second turn must have the assistant role", goerr.V("role", assistantTurn.Role))
	}
	if userTurn.ChatID == "" || userTurn.ChatID != assistantTurn.ChatID {
		return goerr.New("turns must belong to the same chat",
			goerr.V("user_chat", userTurn.ChatID), goerr.V("assistant_chat", assistantTurn.ChatID))
	}
	if userTurn.Timestamp != assistantTurn.Timestamp {
		return goerr.New("turns of one interaction must share a timestamp",
			goerr.V("user_ts", userTurn.Timestamp), goerr.V("assistant_ts", assistantTurn.Timestamp))
	}
	return nil
}
