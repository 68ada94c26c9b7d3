package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Section labels of the assembled prompt. Each retrieval block is emitted
// even when empty so the model always sees the same section structure.
const (
	ContextBlockLabel = "Messages from earlier in this conversation related to the new message:"
	RecencyBlockLabel = "The most recent messages of this conversation, newest first:"
	QueryMarker       = "The new message from the user:"
)

// Assemble builds the ordered message list for one interaction: system
// instruction, similar-turn block, recent-turn block, query marker, and
// the new user message, in exactly that order.
func (uc *UseCase) Assemble(ctx context.Context, userTurn *model.Turn) (model.Prompt, error) {
	similar, err := uc.RetrieveSimilar(ctx, userTurn.ChatID, userTurn.Embedding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve similar turns")
	}

	recent, err := uc.RetrieveRecent(ctx, userTurn.ChatID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve recent turns")
	}

	prompt := make(model.Prompt, 0, len(similar)+len(recent)+5)
	prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: uc.systemPrompt})

	prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: ContextBlockLabel})
	for _, st := range similar {
		prompt = append(prompt, model.Message{Role: st.Turn.Role, Content: st.Turn.Content})
	}

	prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: RecencyBlockLabel})
	for _, turn := range recent {
		prompt = append(prompt, model.Message{Role: turn.Role, Content: turn.Content})
	}

	prompt = append(prompt, model.Message{Role: model.RoleSystem, Content: QueryMarker})
	prompt = append(prompt, model.Message{Role: userTurn.Role, Content: userTurn.Content})

	return prompt, nil
}
