package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/domain/types"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

const (
	DefaultHistoryWindow = 10
	DefaultMaxResults    = 5
)

// Session is the explicit state of one user's activity: the active conversation's memory and
// its edit provenance. Turns of a session are serialized.
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	turn       sync.Mutex
	lastActive atomic.Int64
	memory     *SessionMemory
	provenance *ProvenanceTracker
}

// LastActive returns when the session was last looked up or started
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastActive.Store(t.UnixNano())
}

// Memory returns the session's view of the active conversation
func (s *Session) Memory() *SessionMemory {
	return s.memory
}

// Provenance returns the session's edit records
func (s *Session) Provenance() *ProvenanceTracker {
	return s.provenance
}

// ConversationID returns the active conversation, or "" before the first turn
func (s *Session) ConversationID() model.ConversationID {
	return s.memory.ConversationID()
}

// TurnResult is the outcome of a text turn
type TurnResult struct {
	ConversationID model.ConversationID
	UserMessage    *model.Message
	Reply          *model.Message
	Retrieved      []model.RetrievalResult
}

// EditResult is the outcome of an image-edit turn
type EditResult struct {
	ConversationID model.ConversationID
	UserMessage    *model.Message
	Reply          *model.Message
	Record         model.EditRecord
	EditedImage    []byte
}

// ChatUseCase runs the turn pipeline: classify, retrieve, augment, generate, persist, remember.
type ChatUseCase struct {
	store      *ConversationStore
	classifier *Classifier
	retriever  interfaces.Retriever
	augmenter  *Augmenter
	generator  interfaces.Generator
	describer  interfaces.ImageDescriber
	editor     interfaces.ImageEditor

	historyWindow int
	maxResults    int
	now           func() time.Time

	sessions sync.Map
}

type ChatOption func(*ChatUseCase)

// WithImaging sets the collaborators of image-edit turns
func WithImaging(describer interfaces.ImageDescriber, editor interfaces.ImageEditor) ChatOption {
	return func(uc *ChatUseCase) {
		uc.describer = describer
		uc.editor = editor
	}
}

// WithHistoryWindow sets how many previous messages are included in the prompt
func WithHistoryWindow(n int) ChatOption {
	return func(uc *ChatUseCase) {
		if n >= 0 {
			uc.historyWindow = n
		}
	}
}

// WithMaxResults sets how many retrieval results are requested per turn
func WithMaxResults(n int) ChatOption {
	return func(uc *ChatUseCase) {
		if n > 0 {
			uc.maxResults = n
		}
	}
}

func WithChatClock(now func() time.Time) ChatOption {
	return func(uc *ChatUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func NewChatUseCase(store *ConversationStore, classifier *Classifier, augmenter *Augmenter, retriever interfaces.Retriever, generator interfaces.Generator, opts ...ChatOption) *ChatUseCase {
	uc := &ChatUseCase{
		store:         store,
		classifier:    classifier,
		retriever:     retriever,
		augmenter:     augmenter,
		generator:     generator,
		historyWindow: DefaultHistoryWindow,
		maxResults:    DefaultMaxResults,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.classifier == nil {
		uc.classifier = NewClassifier()
	}
	if uc.augmenter == nil {
		uc.augmenter = NewAugmenter()
	}
	return uc
}

// StartSession creates and registers a session for ownerID
func (uc *ChatUseCase) StartSession(ownerID string) (*Session, error) {
	if ownerID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "owner ID is required")
	}

	s := &Session{
		ID:         uuid.Must(uuid.NewV7()).String(),
		OwnerID:    ownerID,
		CreatedAt:  uc.now(),
		memory:     NewSessionMemory(uc.store),
		provenance: NewProvenanceTracker(uc.now),
	}
	s.touch(s.CreatedAt)
	uc.sessions.Store(s.ID, s)
	return s, nil
}

// Session looks up a registered session
func (uc *ChatUseCase) Session(id string) (*Session, error) {
	v, ok := uc.sessions.Load(id)
	if !ok {
		return nil, goerr.Wrap(ErrSessionNotFound, "session is not registered", goerr.V(SessionIDKey, id))
	}
	s := v.(*Session)
	s.touch(uc.now())
	return s, nil
}

// EndSession tears the session down and unregisters it
func (uc *ChatUseCase) EndSession(id string) {
	v, ok := uc.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	s := v.(*Session)
	s.turn.Lock()
	defer s.turn.Unlock()
	s.memory.Reset()
	s.provenance.Clear()
}

// SweepIdle ends the sessions not looked up for longer than idle and returns how many
func (uc *ChatUseCase) SweepIdle(idle time.Duration) int {
	cutoff := uc.now().Add(-idle)
	n := 0
	uc.sessions.Range(func(_, value any) bool {
		s := value.(*Session)
		if s.LastActive().Before(cutoff) {
			uc.EndSession(s.ID)
			n++
		}
		return true
	})
	return n
}

// ListConversations returns the session owner's conversations, newest first
func (uc *ChatUseCase) ListConversations(ctx context.Context, s *Session) ([]*model.Conversation, error) {
	return uc.store.ListConversations(ctx, s.OwnerID)
}

// NewConversation creates a conversation and makes it the active one
func (uc *ChatUseCase) NewConversation(ctx context.Context, s *Session, description string) (*model.Conversation, error) {
	s.turn.Lock()
	defer s.turn.Unlock()
	return uc.startConversation(ctx, s, description)
}

func (uc *ChatUseCase) startConversation(ctx context.Context, s *Session, description string) (*model.Conversation, error) {
	conv, err := uc.store.CreateConversation(ctx, s.OwnerID, description)
	if err != nil {
		return nil, err
	}
	if err := s.memory.Load(ctx, conv.ID); err != nil {
		return nil, err
	}
	s.provenance.Retain(conv.ID)

	logging.From(ctx).Info("conversation started",
		"session_id", s.ID,
		"conversation_id", conv.ID,
	)
	return conv, nil
}

// RenameConversation replaces the description of one of ownerID's conversations
func (uc *ChatUseCase) RenameConversation(ctx context.Context, ownerID string, id model.ConversationID, description string) (*model.Conversation, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "description is required", goerr.V(ConversationIDKey, id))
	}

	conv, err := uc.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != ownerID {
		return nil, goerr.Wrap(ErrAccessDenied, "conversation belongs to another user",
			goerr.V(ConversationIDKey, id), goerr.V(OwnerIDKey, ownerID))
	}

	if err := uc.store.UpdateDescription(ctx, id, description); err != nil {
		return nil, err
	}
	conv.Description = description
	return conv, nil
}

// SwitchConversation loads another conversation of the owner. The memory is replaced at once,
// and edit records of other conversations are dropped.
func (uc *ChatUseCase) SwitchConversation(ctx context.Context, s *Session, id model.ConversationID) (*model.Conversation, error) {
	s.turn.Lock()
	defer s.turn.Unlock()

	conv, err := uc.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != s.OwnerID {
		return nil, goerr.Wrap(ErrAccessDenied, "conversation belongs to another user",
			goerr.V(ConversationIDKey, id), goerr.V(OwnerIDKey, s.OwnerID))
	}

	if err := s.memory.Load(ctx, id); err != nil {
		return nil, err
	}
	s.provenance.Retain(id)
	return conv, nil
}

// HandleTurn answers a text message. Nothing is persisted, the conversation included, unless
// the reply was generated, and the memory is only updated after the store accepted the message.
func (uc *ChatUseCase) HandleTurn(ctx context.Context, s *Session, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "text turn requires content")
	}
	if uc.generator == nil {
		return nil, goerr.Wrap(ErrGenerateFailed, "no generator configured")
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	logger := logging.From(ctx)

	// The conversation is only created once the reply exists.
	convID := s.memory.ConversationID()

	var results []model.RetrievalResult
	if uc.retriever != nil && uc.classifier.NeedsRetrieval(text) {
		results = uc.retriever.Retrieve(ctx, text, uc.maxResults)
		logger.Debug("retrieval done", "conversation_id", convID, "count", len(results))
	}

	var editSummary string
	if s.provenance.ReferencesEditing(text) {
		editSummary = s.provenance.Summarize(convID)
	}

	prompt := uc.augmenter.AugmentWithEdits(text, results, editSummary, uc.now())
	prompt = withHistory(prompt, s.memory.Recent(uc.historyWindow))

	reply, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrGenerateFailed, err), "failed to generate reply",
			goerr.V(ConversationIDKey, convID))
	}

	convID, err = uc.ensureConversation(ctx, s, model.DescribeFromText(text))
	if err != nil {
		return nil, err
	}

	userMsg, err := uc.persist(ctx, s, convID, types.SenderUser, types.MessageTypeText, text, "", nil)
	if err != nil {
		return nil, err
	}
	replyMsg, err := uc.persist(ctx, s, convID, types.SenderAssistant, types.MessageTypeText, reply, "", nil)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		ConversationID: convID,
		UserMessage:    userMsg,
		Reply:          replyMsg,
		Retrieved:      results,
	}, nil
}

// HandleImageEdit runs describe, edit and describe again, then persists both messages and
// attaches the provenance record to the assistant message. Collaborator failures abort the
// turn before anything is persisted.
func (uc *ChatUseCase) HandleImageEdit(ctx context.Context, s *Session, image []byte, instruction string) (*EditResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, goerr.Wrap(ErrEmptyMessage, "edit instruction is required")
	}
	if len(image) == 0 {
		return nil, goerr.Wrap(ErrInvalidInput, "image is required")
	}
	if uc.describer == nil || uc.editor == nil {
		return nil, goerr.Wrap(ErrEditFailed, "image collaborators are not configured")
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	convID := s.memory.ConversationID()

	original, err := uc.describer.Describe(ctx, image)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrDescribeFailed, err), "failed to describe original image",
			goerr.V(ConversationIDKey, convID))
	}

	edited, status, err := uc.editor.Edit(ctx, image, instruction)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrEditFailed, err), "failed to edit image",
			goerr.V(ConversationIDKey, convID), goerr.V("instruction", instruction))
	}

	editedDescription, err := uc.describer.Describe(ctx, edited)
	if err != nil {
		return nil, goerr.Wrap(fmt.Errorf("%w: %w", ErrDescribeFailed, err), "failed to describe edited image",
			goerr.V(ConversationIDKey, convID))
	}

	convID, err = uc.ensureConversation(ctx, s, model.DescribeFromText("Retouche : "+instruction))
	if err != nil {
		return nil, err
	}

	userMsg, err := uc.persist(ctx, s, convID, types.SenderUser, types.MessageTypeImage,
		instruction, base64.StdEncoding.EncodeToString(image), nil)
	if err != nil {
		return nil, err
	}

	reply := status
	if reply == "" {
		reply = fmt.Sprintf("Image modifiée : %s", instruction)
	}
	record := model.EditRecord{
		OriginalDescription: original,
		EditInstruction:     instruction,
		EditedDescription:   editedDescription,
		TechnicalInfo:       status,
	}
	replyMsg, err := uc.persist(ctx, s, convID, types.SenderAssistant, types.MessageTypeImage,
		reply, base64.StdEncoding.EncodeToString(edited), &record)
	if err != nil {
		return nil, err
	}

	return &EditResult{
		ConversationID: convID,
		UserMessage:    userMsg,
		Reply:          replyMsg,
		Record:         record,
		EditedImage:    edited,
	}, nil
}

// Messages returns the session's view of the active conversation
func (uc *ChatUseCase) Messages(s *Session) []*model.Message {
	return s.memory.Current()
}

// EditHistory returns the edit records of the active conversation
func (uc *ChatUseCase) EditHistory(s *Session) []model.EditRecord {
	return s.provenance.History(s.memory.ConversationID())
}

// ensureConversation starts a conversation on the first turn of a session. It is called once
// the collaborators answered, so an aborted turn leaves no conversation behind.
func (uc *ChatUseCase) ensureConversation(ctx context.Context, s *Session, description string) (model.ConversationID, error) {
	if id := s.memory.ConversationID(); id != "" {
		return id, nil
	}
	if err := ctx.Err(); err != nil {
		return "", goerr.Wrap(err, "turn abandoned before starting a conversation")
	}
	conv, err := uc.startConversation(ctx, s, description)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// persist writes one message and, only when the store accepted it, appends it to the memory.
// An edit record is registered in the tracker and attached to the message in the same step.
func (uc *ChatUseCase) persist(ctx context.Context, s *Session, convID model.ConversationID, sender types.Sender, msgType types.MessageType, content, imagePayload string, edit *model.EditRecord) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "turn abandoned before persisting", goerr.V(ConversationIDKey, convID))
	}

	msg, err := uc.store.AppendMessage(ctx, convID, sender, msgType, content, imagePayload)
	if err != nil {
		return nil, err
	}

	if edit != nil {
		*edit = s.provenance.Record(convID, edit.OriginalDescription, edit.EditInstruction,
			edit.EditedDescription, edit.TechnicalInfo)
	}
	if err := s.memory.Append(msg, edit); err != nil {
		return nil, err
	}
	return msg, nil
}

// withHistory prefixes the prompt with the recent messages of the conversation
func withHistory(prompt string, history []*model.Message) string {
	if len(history) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString("[HISTORIQUE DE LA CONVERSATION]\n")
	for _, msg := range history {
		speaker := "Utilisateur"
		if msg.Sender == types.SenderAssistant {
			speaker = "Assistant"
		}
		content := msg.Content
		if msg.Type == types.MessageTypeImage {
			content = "[image] " + content
		}
		fmt.Fprintf(&sb, "%s : %s\n", speaker, content)
	}
	sb.WriteString("[FIN HISTORIQUE]\n\n")
	sb.WriteString(prompt)
	return sb.String()
}
