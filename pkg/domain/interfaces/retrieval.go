package interfaces

import (
	"context"

	"github.com/veille-ai/veille/pkg/domain/model"
)

// RetrievalProvider is one external information source of the fallback chain
type RetrievalProvider interface {
	// Name is the label used in logs and as default source label
	Name() string

	// Search returns normalized results or an error. An empty slice with a nil error means
	// the provider had nothing for the query.
	Search(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error)
}

// Retriever runs the provider chain. It never fails and never returns an empty slice.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) []model.RetrievalResult
}
