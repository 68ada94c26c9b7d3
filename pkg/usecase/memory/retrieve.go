package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// RetrieveSimilar selects the most semantically relevant past turns for
// the query embedding. The candidate pool is the CandidateWindow most
// recent turns of the chat; candidates below SimilarityThreshold are
// discarded and at most TopK survivors are returned, sorted descending by
// similarity with ties broken by more recent timestamp. Fewer than TopK
// qualifying turns yield a shorter result, never low-relevance filler.
func (uc *UseCase) RetrieveSimilar(ctx context.Context, chatID model.ChatID, queryEmbedding []float64) ([]*model.ScoredTurn, error) {
	candidates, err := uc.repo.RecentTurns(ctx, chatID, uc.cfg.CandidateWindow)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch candidate turns", goerr.V("chat_id", chatID))
	}

	scored := make([]*model.ScoredTurn, 0, len(candidates))
	for _, turn := range candidates {
		similarity, err := CosineSimilarity(queryEmbedding, turn.Embedding)
		if err != nil {
			// A stored embedding that cannot be scored is a contract
			// violation, not skippable data.
			return nil, goerr.Wrap(err, "failed to score stored turn",
				goerr.V("chat_id", chatID), goerr.V("timestamp", turn.Timestamp))
		}

		if similarity < uc.cfg.SimilarityThreshold {
			continue
		}
		scored = append(scored, &model.ScoredTurn{Turn: turn, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Turn.Timestamp > scored[j].Turn.Timestamp
	})

	if len(scored) > uc.cfg.TopK {
		scored = scored[:uc.cfg.TopK]
	}
	return scored, nil
}

// RetrieveRecent returns up to RecentLimit most recent turns of the chat,
// most recent first, independent of relevance.
func (uc *UseCase) RetrieveRecent(ctx context.Context, chatID model.ChatID) ([]*model.Turn, error) {
	turns, err := uc.repo.RecentTurns(ctx, chatID, uc.cfg.RecentLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch recent turns", goerr.V("chat_id", chatID))
	}
	return turns, nil
}
