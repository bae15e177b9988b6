package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/repository/record"
)

type conversationRepository struct {
	db *sql.DB
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	if conv == nil {
		return goerr.New("conversation is nil")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, description, created_at) VALUES (?, ?, ?, ?)`,
		conv.ID.String(), conv.OwnerID, conv.Description, formatTime(conv.CreatedAt),
	)
	if err != nil {
		return classify(err, "failed to insert conversation", goerr.V("conversation_id", conv.ID))
	}
	return nil
}

func (r *conversationRepository) Get(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, description, created_at FROM conversations WHERE id = ?`, id.String())
	if err != nil {
		return nil, classify(err, "failed to query conversation", goerr.V("conversation_id", id))
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err, "failed to scan conversation", goerr.V("conversation_id", id))
	}
	if len(records) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
	}

	return record.ToConversation(records[0], "")
}

func (r *conversationRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, description, created_at FROM conversations
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, ownerID)
	if err != nil {
		return nil, classify(err, "failed to query conversations", goerr.V("owner_id", ownerID))
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, classify(err, "failed to scan conversations", goerr.V("owner_id", ownerID))
	}

	conversations := make([]*model.Conversation, 0, len(records))
	for _, rec := range records {
		conv, err := record.ToConversation(rec, "")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode conversation", goerr.V("owner_id", ownerID))
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (r *conversationRepository) UpdateDescription(ctx context.Context, id model.ConversationID, description string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET description = ? WHERE id = ?`, description, id.String())
	if err != nil {
		return classify(err, "failed to update conversation", goerr.V("conversation_id", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "failed to read affected rows", goerr.V("conversation_id", id))
	}
	if n == 0 {
		return goerr.Wrap(model.ErrNotFound, "conversation not found", goerr.V("conversation_id", id))
	}
	return nil
}
