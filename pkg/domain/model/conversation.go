package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/types"
)

// ConversationID is a UUID-based identifier for Conversation
type ConversationID string

// NewConversationID generates a new time-ordered ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.Must(uuid.NewV7()).String())
}

func (id ConversationID) String() string {
	return string(id)
}

// MessageID is a UUID-based identifier for Message
type MessageID string

// NewMessageID generates a new time-ordered MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV7()).String())
}

func (id MessageID) String() string {
	return string(id)
}

// DescriptionMaxLength is the number of runes kept when a description is derived from a message
const DescriptionMaxLength = 50

// Conversation is a topic owned by exactly one user.
// Everything but Description is immutable once created.
type Conversation struct {
	ID          ConversationID
	OwnerID     string
	Description string
	CreatedAt   time.Time
}

// Validate checks required fields
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return goerr.New("conversation ID is required")
	}
	if c.OwnerID == "" {
		return goerr.New("conversation owner is required", goerr.V("conversation_id", c.ID))
	}
	return nil
}

// DescribeFromText derives a conversation description from the first user message
func DescribeFromText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= DescriptionMaxLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:DescriptionMaxLength]) + "..."
}

// Message is one append-only entry of a conversation. ImagePayload carries base64 image data
// for image messages and is empty otherwise.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	Sender         types.Sender
	Type           types.MessageType
	Content        string
	ImagePayload   string
	CreatedAt      time.Time
}

// Validate checks required fields and enumerations
func (m *Message) Validate() error {
	if m.ID == "" {
		return goerr.New("message ID is required")
	}
	if m.ConversationID == "" {
		return goerr.New("conversation ID is required", goerr.V("message_id", m.ID))
	}
	if !m.Sender.IsValid() {
		return goerr.New("invalid sender", goerr.V("message_id", m.ID), goerr.V("sender", m.Sender))
	}
	if !m.Type.IsValid() {
		return goerr.New("invalid message type", goerr.V("message_id", m.ID), goerr.V("type", m.Type))
	}
	return nil
}

// Clone returns a copy so callers cannot mutate stored messages
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}
