package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/domain/types"
)

// ConversationStore is the façade over the persisted conversation store. Repository errors
// keep their model.Err* class so callers can tell connectivity from constraint failures.
// There is no automatic retry.
type ConversationStore struct {
	repo interfaces.Repository
	now  func() time.Time

	mu   sync.Mutex
	last time.Time
}

type StoreOption func(*ConversationStore)

// WithStoreClock replaces time.Now for CreatedAt
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *ConversationStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewConversationStore(repo interfaces.Repository, opts ...StoreOption) *ConversationStore {
	s := &ConversationStore{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextTimestamp returns a microsecond-precision time strictly after every previous one, so
// messages appended by this process never tie on CreatedAt.
func (s *ConversationStore) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

func (s *ConversationStore) CreateConversation(ctx context.Context, ownerID, description string) (*model.Conversation, error) {
	if ownerID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "owner ID is required")
	}

	conv := &model.Conversation{
		ID:          model.NewConversationID(),
		OwnerID:     ownerID,
		Description: description,
		CreatedAt:   s.nextTimestamp(),
	}
	if err := s.repo.Conversation().Create(ctx, conv); err != nil {
		return nil, goerr.Wrap(err, "failed to create conversation",
			goerr.V(ConversationIDKey, conv.ID), goerr.V(OwnerIDKey, ownerID))
	}
	return conv, nil
}

// GetConversation returns ErrConversationNotFound when the conversation does not exist
func (s *ConversationStore) GetConversation(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	if id == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "conversation ID is required")
	}

	conv, err := s.repo.Conversation().Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, goerr.Wrap(ErrConversationNotFound, "conversation does not exist", goerr.V(ConversationIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V(ConversationIDKey, id))
	}
	return conv, nil
}

// ListConversations returns the owner's conversations, newest first
func (s *ConversationStore) ListConversations(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	convs, err := s.repo.Conversation().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversations", goerr.V(OwnerIDKey, ownerID))
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs, nil
}

// UpdateDescription replaces the label of an existing conversation
func (s *ConversationStore) UpdateDescription(ctx context.Context, id model.ConversationID, description string) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Conversation().UpdateDescription(ctx, id, description); err != nil {
		return goerr.Wrap(err, "failed to update conversation description", goerr.V(ConversationIDKey, id))
	}
	return nil
}

// AppendMessage checks that the conversation exists before writing, so no orphan message is
// ever created. An empty msgType is stored as text.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID model.ConversationID, sender types.Sender, msgType types.MessageType, content, imagePayload string) (*model.Message, error) {
	if !sender.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid sender", goerr.V("sender", sender))
	}
	msgType = msgType.Normalize()
	if !msgType.IsValid() {
		return nil, goerr.Wrap(ErrInvalidInput, "invalid message type", goerr.V("type", msgType))
	}

	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             model.NewMessageID(),
		ConversationID: conversationID,
		Sender:         sender,
		Type:           msgType,
		Content:        content,
		ImagePayload:   imagePayload,
		CreatedAt:      s.nextTimestamp(),
	}
	if err := s.repo.Message().Put(ctx, msg); err != nil {
		return nil, goerr.Wrap(err, "failed to append message",
			goerr.V(ConversationIDKey, conversationID), goerr.V(MessageIDKey, msg.ID))
	}
	return msg, nil
}

// ListMessages returns the conversation's messages in CreatedAt order. Messages sharing a
// timestamp keep the order the backend returned them in.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID model.ConversationID) ([]*model.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.Message().List(ctx, conversationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list messages", goerr.V(ConversationIDKey, conversationID))
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
