package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/usecase"
	"github.com/veille-ai/veille/pkg/utils/errutil"
	"github.com/veille-ai/veille/pkg/utils/safe"
)

type conversationResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type editRecordResponse struct {
	OriginalDescription string    `json:"original_description"`
	EditInstruction     string    `json:"edit_instruction"`
	EditedDescription   string    `json:"edited_description"`
	TechnicalInfo       string    `json:"technical_info"`
	Timestamp           time.Time `json:"timestamp"`
}

type messageResponse struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	Sender         string              `json:"sender"`
	Type           string              `json:"type"`
	Content        string              `json:"content"`
	ImageData      string              `json:"image_data,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Edit           *editRecordResponse `json:"edit,omitempty"`
}

type sessionResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type turnResponse struct {
	ConversationID string                  `json:"conversation_id"`
	UserMessage    messageResponse         `json:"user_message"`
	Reply          messageResponse         `json:"reply"`
	Retrieved      []model.RetrievalResult `json:"retrieved"`
}

type editResponse struct {
	ConversationID string             `json:"conversation_id"`
	UserMessage    messageResponse    `json:"user_message"`
	Reply          messageResponse    `json:"reply"`
	Record         editRecordResponse `json:"record"`
}

func toConversationResponse(c *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:          c.ID.String(),
		OwnerID:     c.OwnerID,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
	}
}

func toEditRecordResponse(rec model.EditRecord) editRecordResponse {
	return editRecordResponse{
		OriginalDescription: rec.OriginalDescription,
		EditInstruction:     rec.EditInstruction,
		EditedDescription:   rec.EditedDescription,
		TechnicalInfo:       rec.TechnicalInfo,
		Timestamp:           rec.Timestamp,
	}
}

func toMessageResponse(m *model.Message, edit *model.EditRecord) messageResponse {
	resp := messageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Sender:         m.Sender.String(),
		Type:           m.Type.String(),
		Content:        m.Content,
		ImageData:      m.ImagePayload,
		CreatedAt:      m.CreatedAt,
	}
	if edit != nil {
		e := toEditRecordResponse(*edit)
		resp.Edit = &e
	}
	return resp
}

// statusFor maps use case and store errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound),
		errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, usecase.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrDescribeFailed),
		errors.Is(err, usecase.ErrEditFailed),
		errors.Is(err, usecase.ErrGenerateFailed):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrConnectivity):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrConstraint):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(usecase.ErrInvalidInput, "invalid request body", goerr.V("cause", err.Error()))
	}
	return nil
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.HandleHTTP(r.Context(), w, err, statusFor(err))
}

// session resolves the path session and checks it belongs to the requesting user
func (s *Server) session(r *http.Request) (*usecase.Session, error) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.uc.Chat.Session(id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerFrom(r.Context()) {
		// do not reveal sessions of other users
		return nil, goerr.Wrap(usecase.ErrSessionNotFound, "session belongs to another user", goerr.V(usecase.SessionIDKey, id))
	}
	return sess, nil
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	conv, err := s.uc.Store.CreateConversation(r.Context(), ownerFrom(r.Context()), req.Description)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toConversationResponse(conv))
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.uc.Store.ListConversations(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := struct {
		Conversations []conversationResponse `json:"conversations"`
	}{Conversations: make([]conversationResponse, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, toConversationResponse(c))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) renameConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	id := model.ConversationID(chi.URLParam(r, "conversationID"))
	conv, err := s.uc.Chat.RenameConversation(r.Context(), ownerFrom(r.Context()), id, req.Description)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toConversationResponse(conv))
}

// listConversationMessages returns the persisted view, without any edit provenance
func (s *Server) listConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := model.ConversationID(chi.URLParam(r, "conversationID"))

	conv, err := s.uc.Store.GetConversation(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if conv.OwnerID != ownerFrom(r.Context()) {
		s.handleError(w, r, goerr.Wrap(usecase.ErrAccessDenied, "conversation belongs to another user",
			goerr.V(usecase.ConversationIDKey, id)))
		return
	}

	msgs, err := s.uc.Store.ListMessages(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, messagesBody(msgs, nil))
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.Chat.StartSession(ownerFrom(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sessionResponse{ID: sess.ID, OwnerID: sess.OwnerID})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.uc.Chat.EndSession(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// switchConversation loads an existing conversation, or starts a new one when no ID is given
func (s *Server) switchConversation(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Description    string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	var conv *model.Conversation
	if req.ConversationID == "" {
		conv, err = s.uc.Chat.NewConversation(r.Context(), sess, req.Description)
	} else {
		conv, err = s.uc.Chat.SwitchConversation(r.Context(), sess, model.ConversationID(req.ConversationID))
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toConversationResponse(conv))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.uc.Chat.HandleTurn(r.Context(), sess, req.Text)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	retrieved := res.Retrieved
	if retrieved == nil {
		retrieved = []model.RetrievalResult{}
	}
	writeJSON(w, r, http.StatusOK, turnResponse{
		ConversationID: res.ConversationID.String(),
		UserMessage:    toMessageResponse(res.UserMessage, nil),
		Reply:          toMessageResponse(res.Reply, nil),
		Retrieved:      retrieved,
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	var req struct {
		Image       string `json:"image"`
		Instruction string `json:"instruction"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		s.handleError(w, r, goerr.Wrap(usecase.ErrInvalidInput, "image must be base64 encoded"))
		return
	}

	res, err := s.uc.Chat.HandleImageEdit(r.Context(), sess, image, req.Instruction)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, editResponse{
		ConversationID: res.ConversationID.String(),
		UserMessage:    toMessageResponse(res.UserMessage, nil),
		Reply:          toMessageResponse(res.Reply, &res.Record),
		Record:         toEditRecordResponse(res.Record),
	})
}

// sessionMessages returns the session view: persisted messages plus local edit records
func (s *Server) sessionMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, messagesBody(s.uc.Chat.Messages(sess), sess.Memory()))
}

func (s *Server) sessionEdits(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	history := s.uc.Chat.EditHistory(sess)
	resp := struct {
		ConversationID string               `json:"conversation_id"`
		Edits          []editRecordResponse `json:"edits"`
	}{
		ConversationID: sess.ConversationID().String(),
		Edits:          make([]editRecordResponse, 0, len(history)),
	}
	for _, rec := range history {
		resp.Edits = append(resp.Edits, toEditRecordResponse(rec))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func messagesBody(msgs []*model.Message, mem *usecase.SessionMemory) any {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		var edit *model.EditRecord
		if mem != nil {
			if rec, ok := mem.EditRecord(m.ID); ok {
				edit = &rec
			}
		}
		out = append(out, toMessageResponse(m, edit))
	}
	return struct {
		Messages []messageResponse `json:"messages"`
	}{Messages: out}
}
