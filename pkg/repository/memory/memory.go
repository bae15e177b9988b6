package memory

import (
	"github.com/veille-ai/veille/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps conversations and messages in process memory. It is meant for development and
// tests; everything is lost when the process exits.
type Memory struct {
	conversation *conversationRepository
	message      *messageRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		conversation: newConversationRepository(),
		message:      newMessageRepository(),
	}
}

func (m *Memory) Conversation() interfaces.ConversationRepository {
	return m.conversation
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Close() error {
	return nil
}
