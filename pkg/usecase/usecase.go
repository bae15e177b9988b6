package usecase

import (
	"time"

	"github.com/veille-ai/veille/pkg/domain/interfaces"
)

type UseCases struct {
	repo       interfaces.Repository
	classifier *Classifier
	augmenter  *Augmenter
	retriever  interfaces.Retriever
	generator  interfaces.Generator
	describer  interfaces.ImageDescriber
	editor     interfaces.ImageEditor
	chatOpts   []ChatOption
	now        func() time.Time

	Store *ConversationStore
	Chat  *ChatUseCase
}

type Option func(*UseCases)

func WithClassifier(c *Classifier) Option {
	return func(uc *UseCases) {
		uc.classifier = c
	}
}

func WithAugmenter(a *Augmenter) Option {
	return func(uc *UseCases) {
		uc.augmenter = a
	}
}

func WithRetriever(r interfaces.Retriever) Option {
	return func(uc *UseCases) {
		uc.retriever = r
	}
}

func WithGenerator(g interfaces.Generator) Option {
	return func(uc *UseCases) {
		uc.generator = g
	}
}

func WithImageDescriber(d interfaces.ImageDescriber) Option {
	return func(uc *UseCases) {
		uc.describer = d
	}
}

func WithImageEditor(e interfaces.ImageEditor) Option {
	return func(uc *UseCases) {
		uc.editor = e
	}
}

// WithChatOptions passes tuning options (history window, result count) to the chat use case
func WithChatOptions(opts ...ChatOption) Option {
	return func(uc *UseCases) {
		uc.chatOpts = append(uc.chatOpts, opts...)
	}
}

// WithClock replaces time.Now for timestamps and the date block of prompts
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo: repo,
		now:  time.Now,
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

	uc.Store = NewConversationStore(repo, WithStoreClock(uc.now))
	uc.Chat = NewChatUseCase(uc.Store, uc.classifier, uc.augmenter, uc.retriever, uc.generator,
		append([]ChatOption{
			WithImaging(uc.describer, uc.editor),
			WithChatClock(uc.now),
		}, uc.chatOpts...)...,
	)

	return uc
}
