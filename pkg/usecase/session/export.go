package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// transcript is the JSON document written to object storage for one
// recorded interaction.
type transcript struct {
	ID         model.InteractionID `json:"id"`
	ChatID     model.ChatID        `json:"chat_id"`
	ExportedAt time.Time           `json:"exported_at"`
	Turns      []*model.Turn       `json:"turns"`
}

// export mirrors a recorded interaction to object storage under
// transcripts/<chat>/<interaction>.json. Best effort; the caller logs
// any returned error and moves on.
func (s *Session) export(ctx context.Context, userTurn, assistantTurn *model.Turn) error {
	doc := transcript{
		ID:         model.NewInteractionID(),
		ChatID:     s.chatID,
		ExportedAt: time.Now(),
		Turns:      []*model.Turn{userTurn, assistantTurn},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal transcript")
	}

	key := "transcripts/" + string(s.chatID) + "/" + string(doc.ID) + ".json"
	writer, err := s.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to create transcript writer", goerr.V("key", key))
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to write transcript", goerr.V("key", key))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close transcript writer", goerr.V("key", key))
	}

	return nil
}
