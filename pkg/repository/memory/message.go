package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
)

type messageRepository struct {
	mu       sync.RWMutex
	messages map[model.ConversationID][]*model.Message
	ids      map[model.MessageID]struct{}
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[model.ConversationID][]*model.Message),
		ids:      make(map[model.MessageID]struct{}),
	}
}

func (r *messageRepository) Put(_ context.Context, msg *model.Message) error {
	if msg == nil {
		return goerr.New("message is nil")
	}
	if err := msg.Validate(); err != nil {
		return goerr.Wrap(model.ErrConstraint, "invalid message", goerr.V("cause", err.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[msg.ID]; exists {
		return goerr.Wrap(model.ErrConstraint, "message already exists", goerr.V("message_id", msg.ID))
	}
	r.ids[msg.ID] = struct{}{}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg.Clone())
	return nil
}

func (r *messageRepository) List(_ context.Context, conversationID model.ConversationID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[conversationID]
	result := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, m.Clone())
	}

	// Insertion order breaks ties
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
