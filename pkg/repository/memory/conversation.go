package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
)

type conversationRepository struct {
	mu            sync.RWMutex
	conversations map[model.ConversationID]*model.Conversation
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		conversations: make(map[model.ConversationID]*model.Conversation),
	}
}

func copyConversation(c *model.Conversation) *model.Conversation {
	copied := *c
	return &copied
}

func (r *conversationRepository) Create(_ context.Context, conv *model.Conversation) error {
	if conv == nil {
		return goerr.New("conversation is nil")
	}
	if err := conv.Validate(); err != nil {
		return goerr.Wrap(model.ErrConstraint, "invalid conversation", goerr.V("cause", err.Error()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return goerr.Wrap(model.ErrConstraint, "conversation already exists", goerr.V("conversation_id", conv.ID))
	}
	r.conversations[conv.ID] = copyConversation(conv)
	return nil
}

func (r *conversationRepository) Get(_ context.Context, id model.ConversationID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
	}
	return copyConversation(conv), nil
}

func (r *conversationRepository) ListByOwner(_ context.Context, ownerID string) ([]*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Conversation, 0)
	for _, conv := range r.conversations {
		if conv.OwnerID == ownerID {
			result = append(result, copyConversation(conv))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *conversationRepository) UpdateDescription(_ context.Context, id model.ConversationID, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return goerr.Wrap(model.ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
	}
	conv.Description = description
	return nil
}
