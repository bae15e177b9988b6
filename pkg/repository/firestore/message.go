package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/repository/record"
	"google.golang.org/api/iterator"
)

type messageRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.MessageRepository = &messageRepository{}

func (r *messageRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + messagesCollection)
}

func (r *messageRepository) Put(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return goerr.New("message is nil")
	}

	ref := r.collection().Doc(msg.ID.String())
	if _, err := ref.Create(ctx, record.MessageToRecord(msg)); err != nil {
		return classify(err, "failed to save message",
			goerr.V("message_id", msg.ID),
			goerr.V("conversation_id", msg.ConversationID))
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context, conversationID model.ConversationID) ([]*model.Message, error) {
	iter := r.collection().
		Where(record.FieldConversationID, "==", conversationID.String()).
		OrderBy(record.FieldCreatedAt, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	messages := make([]*model.Message, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "failed to iterate messages", goerr.V("conversation_id", conversationID))
		}

		msg, err := record.ToMessage(doc.Data(), doc.Ref.ID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode message", goerr.V("doc_id", doc.Ref.ID))
		}
		messages = append(messages, msg)
	}

	// Ties on created_at fall back to document name; message IDs are time ordered so this
	// matches insertion order for a single writer.
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}
