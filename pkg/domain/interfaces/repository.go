package interfaces

import (
	"context"

	"github.com/veille-ai/veille/pkg/domain/model"
)

// Repository defines the interface for the remote conversation store
type Repository interface {
	Conversation() ConversationRepository
	Message() MessageRepository
	Close() error
}

// ConversationRepository persists conversations
type ConversationRepository interface {
	// Create stores a new conversation. The ID and CreatedAt must already be set.
	Create(ctx context.Context, conv *model.Conversation) error

	// Get retrieves a conversation. Returns model.ErrNotFound if it does not exist.
	Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error)

	// ListByOwner returns the conversations of an owner, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Conversation, error)

	// UpdateDescription changes the only mutable field of a conversation
	UpdateDescription(ctx context.Context, id model.ConversationID, description string) error
}

// MessageRepository persists messages. There is no update or delete: messages are append-only.
type MessageRepository interface {
	// Put appends a message. The ID and CreatedAt must already be set.
	Put(ctx context.Context, msg *model.Message) error

	// List returns the messages of a conversation ordered by CreatedAt ascending
	List(ctx context.Context, conversationID model.ConversationID) ([]*model.Message, error)
}
