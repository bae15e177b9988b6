// Package record converts raw store rows into canonical conversation and message models.
// The remote schema is not consistent about field names, so every backend decodes into a map
// and goes through this package before anything else sees the data.
package record

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/domain/types"
)

// Wire column names of the remote schema
const (
	FieldID             = "id"
	FieldConversationID = "conversation_id"
	FieldUserID         = "user_id"
	FieldDescription    = "description"
	FieldCreatedAt      = "created_at"
	FieldSender         = "sender"
	FieldContent        = "content"
	FieldType           = "type"
	FieldImageData      = "image_data"
)

var (
	conversationIDKeys = []string{FieldID, FieldConversationID}
	ownerKeys          = []string{FieldUserID, "owner_id"}
	imageKeys          = []string{FieldImageData, "image_payload"}
	messageTypeKeys    = []string{FieldType, "message_type"}
)

// timeLayouts are tried in order for string timestamps
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ConversationToRecord renders a conversation in the wire shape
func ConversationToRecord(c *model.Conversation) map[string]any {
	return map[string]any{
		FieldID:          c.ID.String(),
		FieldUserID:      c.OwnerID,
		FieldDescription: c.Description,
		FieldCreatedAt:   c.CreatedAt.UTC(),
	}
}

// MessageToRecord renders a message in the wire shape. There is deliberately no place for
// edit provenance here.
func MessageToRecord(m *model.Message) map[string]any {
	rec := map[string]any{
		FieldID:             m.ID.String(),
		FieldConversationID: m.ConversationID.String(),
		FieldSender:         m.Sender.String(),
		FieldContent:        m.Content,
		FieldType:           m.Type.String(),
		FieldCreatedAt:      m.CreatedAt.UTC(),
	}
	if m.ImagePayload != "" {
		rec[FieldImageData] = m.ImagePayload
	}
	return rec
}

// ToConversation normalizes a conversation row. fallbackID is used when the row itself carries
// no identifier (e.g. the Firestore document name).
func ToConversation(rec map[string]any, fallbackID string) (*model.Conversation, error) {
	id := firstString(rec, conversationIDKeys...)
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "conversation has no identifier")
	}

	createdAt, err := toTime(rec[FieldCreatedAt])
	if err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "conversation has invalid created_at",
			goerr.V("conversation_id", id), goerr.V("cause", err.Error()))
	}

	conv := &model.Conversation{
		ID:          model.ConversationID(id),
		OwnerID:     firstString(rec, ownerKeys...),
		Description: firstString(rec, FieldDescription),
		CreatedAt:   createdAt,
	}
	if err := conv.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "invalid conversation record",
			goerr.V("conversation_id", id), goerr.V("cause", err.Error()))
	}
	return conv, nil
}

// ToMessage normalizes a message row
func ToMessage(rec map[string]any, fallbackID string) (*model.Message, error) {
	id := firstString(rec, FieldID)
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "message has no identifier")
	}

	createdAt, err := toTime(rec[FieldCreatedAt])
	if err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "message has invalid created_at",
			goerr.V("message_id", id), goerr.V("cause", err.Error()))
	}

	sender, err := types.ParseSender(strings.ToLower(firstString(rec, FieldSender)))
	if err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "message has invalid sender",
			goerr.V("message_id", id), goerr.V("cause", err.Error()))
	}

	msgType, err := types.ParseMessageType(strings.ToLower(firstString(rec, messageTypeKeys...)))
	if err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "message has invalid type",
			goerr.V("message_id", id), goerr.V("cause", err.Error()))
	}

	msg := &model.Message{
		ID:             model.MessageID(id),
		ConversationID: model.ConversationID(firstString(rec, FieldConversationID)),
		Sender:         sender,
		Type:           msgType,
		Content:        firstString(rec, FieldContent),
		ImagePayload:   imagePayload(rec),
		CreatedAt:      createdAt,
	}
	if err := msg.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrMalformedRecord, "invalid message record",
			goerr.V("message_id", id), goerr.V("cause", err.Error()))
	}
	return msg, nil
}

func firstString(rec map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case []byte:
			s = string(val)
		case fmt.Stringer:
			s = val.String()
		case int64, int, float64:
			s = fmt.Sprint(val)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func imagePayload(rec map[string]any) string {
	for _, key := range imageKeys {
		switch v := rec[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []byte:
			if len(v) > 0 {
				return base64.StdEncoding.EncodeToString(v)
			}
		}
	}
	return ""
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("zero time")
		}
		return t.UTC(), nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, fmt.Errorf("zero time")
		}
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.UnixMicro(t).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}
