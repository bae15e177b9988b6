package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/repository/record"
	"google.golang.org/api/iterator"
)

type conversationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func (r *conversationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + conversationsCollection)
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if conv == nil {
		return goerr.New("conversation is nil")
	}

	ref := r.collection().Doc(conv.ID.String())
	if _, err := ref.Create(ctx, record.ConversationToRecord(conv)); err != nil {
		return classify(err, "failed to create conversation", goerr.V("conversation_id", conv.ID))
	}
	return nil
}

func (r *conversationRepository) Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	doc, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, classify(err, "failed to get conversation", goerr.V("conversation_id", id))
	}

	conv, err := record.ToConversation(doc.Data(), doc.Ref.ID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode conversation", goerr.V("doc_id", doc.Ref.ID))
	}
	return conv, nil
}

func (r *conversationRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	iter := r.collection().
		Where(record.FieldUserID, "==", ownerID).
		OrderBy(record.FieldCreatedAt, firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	conversations := make([]*model.Conversation, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "failed to iterate conversations", goerr.V("owner_id", ownerID))
		}

		conv, err := record.ToConversation(doc.Data(), doc.Ref.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode conversation", goerr.V("doc_id", doc.Ref.ID))
		}
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

func (r *conversationRepository) UpdateDescription(ctx context.Context, id model.ConversationID, description string) error {
	ref := r.collection().Doc(id.String())
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: record.FieldDescription, Value: description},
	})
	if err != nil {
		return classify(err, "failed to update conversation description", goerr.V("conversation_id", id))
	}
	return nil
}
