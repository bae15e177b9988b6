package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/model"
)

// SessionMemory is the process-local, turn-ordered view of the active conversation. Messages
// come from the store; edit records are local enrichment keyed by the assistant message they
// accompany.
type SessionMemory struct {
	store *ConversationStore

	mu             sync.RWMutex
	conversationID model.ConversationID
	messages       []*model.Message
	edits          map[model.MessageID]model.EditRecord
}

func NewSessionMemory(store *ConversationStore) *SessionMemory {
	return &SessionMemory{
		store: store,
		edits: make(map[model.MessageID]model.EditRecord),
	}
}

// Load replaces the memory with the conversation's persisted messages. The new state is built
// aside and swapped in at once; on error the previous state is kept. Reloading the active
// conversation keeps its edit records; those of other conversations are dropped.
func (m *SessionMemory) Load(ctx context.Context, conversationID model.ConversationID) error {
	msgs, err := m.store.ListMessages(ctx, conversationID)
	if err != nil {
		return goerr.Wrap(err, "failed to load session memory", goerr.V(ConversationIDKey, conversationID))
	}

	loaded := make([]*model.Message, 0, len(msgs))
	for _, msg := range msgs {
		loaded = append(loaded, msg.Clone())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	edits := make(map[model.MessageID]model.EditRecord)
	if conversationID == m.conversationID {
		for _, msg := range loaded {
			if rec, ok := m.edits[msg.ID]; ok {
				edits[msg.ID] = rec
			}
		}
	}

	m.conversationID = conversationID
	m.messages = loaded
	m.edits = edits
	return nil
}

// Append adds msg at the tail. edit, when given, is stored under msg.ID.
func (m *SessionMemory) Append(msg *model.Message, edit *model.EditRecord) error {
	if msg == nil {
		return goerr.Wrap(ErrInvalidInput, "message is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversationID == "" || msg.ConversationID != m.conversationID {
		return goerr.Wrap(ErrInvalidInput, "message does not belong to the loaded conversation",
			goerr.V(ConversationIDKey, msg.ConversationID),
			goerr.V("loaded_conversation_id", m.conversationID),
		)
	}

	m.messages = append(m.messages, msg.Clone())
	if edit != nil {
		m.edits[msg.ID] = *edit
	}
	return nil
}

// Current returns a copy of the messages in arrival order
func (m *SessionMemory) Current() []*model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := make([]*model.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		msgs = append(msgs, msg.Clone())
	}
	return msgs
}

// Recent returns a copy of the last n messages
func (m *SessionMemory) Recent(n int) []*model.Message {
	msgs := m.Current()
	if n >= 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

// EditRecord returns the edit record attached to a message, if any
func (m *SessionMemory) EditRecord(id model.MessageID) (model.EditRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.edits[id]
	return rec, ok
}

// ConversationID returns the loaded conversation, or "" when none is loaded
func (m *SessionMemory) ConversationID() model.ConversationID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationID
}

func (m *SessionMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Reset forgets the loaded conversation
func (m *SessionMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversationID = ""
	m.messages = nil
	m.edits = make(map[model.MessageID]model.EditRecord)
}
