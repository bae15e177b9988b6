package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"modernc.org/sqlite"
)

// schema mirrors the remote wire shape: there is no column for edit provenance.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_created
	ON conversations (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations (id),
	sender          TEXT NOT NULL CHECK (sender IN ('user', 'assistant')),
	content         TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT 'text',
	image_data      TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
	ON messages (conversation_id, created_at);
`

// timeFormat is fixed width so that TEXT ordering matches chronological ordering
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"

// sqliteConstraint is the primary result code shared by all SQLITE_CONSTRAINT_* codes
const sqliteConstraint = 19

type SQLite struct {
	db           *sql.DB
	conversation *conversationRepository
	message      *messageRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (and creates when missing) the database at path. Use ":memory:" for an ephemeral
// database.
func New(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(model.ErrConnectivity, "database ping failed",
			goerr.V("path", path), goerr.V("cause", err.Error()))
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("path", path))
	}

	return &SQLite{
		db:           db,
		conversation: &conversationRepository{db: db},
		message:      &messageRepository{db: db},
	}, nil
}

func (s *SQLite) Conversation() interfaces.ConversationRepository {
	return s.conversation
}

func (s *SQLite) Message() interfaces.MessageRepository {
	return s.message
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// classify maps driver errors onto the store error taxonomy
func classify(err error, msg string, values ...goerr.Option) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqliteConstraint {
		return goerr.Wrap(model.ErrConstraint, msg, append(values, goerr.V("cause", err.Error()))...)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(err, msg, values...)
	}
	return goerr.Wrap(model.ErrConnectivity, msg, append(values, goerr.V("cause", err.Error()))...)
}

// scanRecords reads every row into a column-name keyed map
func scanRecords(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			rec[col] = values[i]
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
