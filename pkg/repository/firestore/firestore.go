package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type Firestore struct {
	client       *firestore.Client
	conversation *conversationRepository
	message      *messageRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix isolates collections, e.g. per test run
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.conversation.collectionPrefix = prefix
		f.message.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("projectID is required for Firestore repository")
	}

	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:       client,
		conversation: &conversationRepository{client: client},
		message:      &messageRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Conversation() interfaces.ConversationRepository {
	return f.conversation
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// classify maps gRPC status codes onto the store error taxonomy
func classify(err error, msg string, values ...goerr.Option) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(err, msg, values...)
	}

	values = append(values, goerr.V("cause", err.Error()))
	switch status.Code(err) {
	case codes.NotFound:
		return goerr.Wrap(model.ErrNotFound, msg, values...)
	case codes.AlreadyExists, codes.FailedPrecondition, codes.InvalidArgument, codes.OutOfRange:
		return goerr.Wrap(model.ErrConstraint, msg, values...)
	default:
		return goerr.Wrap(model.ErrConnectivity, msg, values...)
	}
}
