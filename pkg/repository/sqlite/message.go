package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/repository/record"
)

type messageRepository struct {
	db *sql.DB
}

var _ interfaces.MessageRepository = &messageRepository{}

func (r *messageRepository) Put(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return goerr.New("message is nil")
	}

	var image sql.NullString
	if msg.ImagePayload != "" {
		image = sql.NullString{String: msg.ImagePayload, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, content, type, image_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.ConversationID.String(), msg.Sender.String(), msg.Content,
		msg.Type.String(), image, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return classify(err, "failed to insert message",
			goerr.V("message_id", msg.ID), goerr.V("conversation_id", msg.ConversationID))
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context, conversationID model.ConversationID) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender, content, type, image_data, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID.String())
	if err != nil {
		return nil, classify(err, "failed to query messages", goerr.V("conversation_id", conversationID))
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err, "failed to scan messages", goerr.V("conversation_id", conversationID))
	}

	messages := make([]*model.Message, 0, len(records))
	for _, rec := range records {
		msg, err := record.ToMessage(rec, "")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode message", goerr.V("conversation_id", conversationID))
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
