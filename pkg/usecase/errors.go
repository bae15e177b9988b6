package usecase

import (
	"errors"
	"fmt"

	"github.com/veille-ai/veille/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	// Not found errors. ErrConversationNotFound also matches model.ErrNotFound.
	ErrConversationNotFound = fmt.Errorf("conversation %w", model.ErrNotFound)
	ErrSessionNotFound      = errors.New("session not found")

	// Input errors
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyMessage = errors.New("message is empty")

	// Access control errors
	ErrAccessDenied = errors.New("access denied to conversation")

	// Collaborator errors. The turn is aborted and nothing is persisted.
	ErrDescribeFailed = errors.New("image description failed")
	ErrEditFailed     = errors.New("image edit failed")
	ErrGenerateFailed = errors.New("reply generation failed")
)

// Context keys for error values
const (
	ConversationIDKey = "conversation_id"
	MessageIDKey      = "message_id"
	OwnerIDKey        = "owner_id"
	SessionIDKey      = "session_id"
)
