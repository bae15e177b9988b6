package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/veille-ai/veille/pkg/cli/config"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/service/generator"
	"github.com/veille-ai/veille/pkg/usecase"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

// assistantConfig groups the flags shared by serve and chat
type assistantConfig struct {
	repo      config.Repository
	gemini    config.Gemini
	retrieval config.Retrieval
	imaging   config.Imaging
}

func (x *assistantConfig) flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.gemini.Flags()...)
	flags = append(flags, x.retrieval.Flags()...)
	flags = append(flags, x.imaging.Flags()...)
	return flags
}

// build wires the use cases. The caller owns the returned repository.
func (x *assistantConfig) build(ctx context.Context) (*usecase.UseCases, interfaces.Repository, error) {
	logger := logging.Default()

	llm, err := x.gemini.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini")
	}
	if llm == nil {
		return nil, nil, goerr.New("gemini-project is required to generate replies")
	}
	gen, err := generator.New(llm)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create generator")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Gemini configured", x.gemini.LogAttrs()...)

	orchestrator, classifier, err := x.retrieval.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure retrieval")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Retrieval configured", x.retrieval.LogAttrs()...)

	describer, editor, err := x.imaging.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure imaging")
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	opts := []usecase.Option{
		usecase.WithClassifier(classifier),
		usecase.WithRetriever(orchestrator),
		usecase.WithGenerator(gen),
		usecase.WithChatOptions(usecase.WithMaxResults(x.retrieval.MaxResults())),
	}
	if describer != nil && editor != nil {
		opts = append(opts, usecase.WithImageDescriber(describer), usecase.WithImageEditor(editor))
		logger.LogAttrs(ctx, slog.LevelInfo, "Image editing enabled", x.imaging.LogAttrs()...)
	} else {
		logger.Info("Image editing disabled, no imaging endpoints configured")
	}

	return usecase.New(repo, opts...), repo, nil
}

func closeRepository(repo interfaces.Repository) {
	if err := repo.Close(); err != nil {
		logging.Default().Error("failed to close repository", "error", err.Error())
	}
}
