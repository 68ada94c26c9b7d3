package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const turnCollection = "turns"

// Firestore implements Repository using Firestore. A client is opened per
// call and closed on every exit path so no connection outlives an
// interaction or leaks after a failure.
type Firestore struct {
	projectID  string
	databaseID string
}

// NewFirestore creates a new Firestore repository
func NewFirestore(projectID, databaseID string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required")
	}
	if databaseID == "" {
		return nil, goerr.New("database ID is required")
	}

	return &Firestore{
		projectID:  projectID,
		databaseID: databaseID,
	}, nil
}

func (r *Firestore) connect(ctx context.Context) (*firestore.Client, error) {
	client, err := firestore.NewClientWithDatabase(ctx, r.projectID, r.databaseID)
	if err != nil {
		return nil, goerr.Wrap(ErrStoreUnavailable, "failed to create firestore client", goerr.V("cause", err))
	}
	return client, nil
}

func (r *Firestore) PutTurns(ctx context.Context, turns []*model.Turn) error {
	client, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	// One atomic batch per interaction: either every turn of the pair
	// lands or none does.
	batch := client.Batch()
	for _, turn := range turns {
		batch.Create(client.Collection(turnCollection).NewDoc(), turn)
	}

	if _, err := batch.Commit(ctx); err != nil {
		return wrapStoreErr(err, "failed to write turns")
	}

	return nil
}

func (r *Firestore) RecentTurns(ctx context.Context, chatID model.ChatID, limit int) ([]*model.Turn, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	query := client.Collection(turnCollection).
		Where("chat_id", "==", string(chatID)).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var turns []*model.Turn
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStoreErr(err, "failed to query turns")
		}

		var turn model.Turn
		if err := doc.DataTo(&turn); err != nil {
			return nil, goerr.Wrap(err, "failed to decode turn", goerr.V("doc", doc.Ref.ID))
		}
		turns = append(turns, &turn)
	}

	return turns, nil
}

// wrapStoreErr maps gRPC-level failures to ErrStoreUnavailable so callers
// can tell an unreachable store apart from decode errors.
func wrapStoreErr(err error, msg string) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return goerr.Wrap(ErrStoreUnavailable, msg, goerr.V("code", s.Code().String()), goerr.V("cause", err))
		}
	}
	return goerr.Wrap(err, msg)
}
