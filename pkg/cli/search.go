package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/veille-ai/veille/pkg/cli/config"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/service/retrieval"
	"github.com/veille-ai/veille/pkg/usecase"
)

func cmdSearch() *cli.Command {
	var retrievalCfg config.Retrieval
	var probe bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "probe",
			Usage:       "Query every tier individually and report its outcome",
			Destination: &probe,
		},
	}
	flags = append(flags, retrievalCfg.Flags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Run a one-shot retrieval and print what a turn would receive",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.Wrap(usecase.ErrEmptyMessage, "query is required")
			}

			orchestrator, classifier, err := retrievalCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure retrieval")
			}

			return runSearch(ctx, os.Stdout, orchestrator, classifier, query, retrievalCfg.MaxResults(), probe)
		},
	}
}

var (
	headerColor = color.New(color.Bold)
	okColor     = color.New(color.FgGreen)
)

func runSearch(ctx context.Context, w io.Writer, orchestrator *retrieval.Orchestrator, classifier *usecase.Classifier, query string, maxResults int, probe bool) error {
	_, _ = headerColor.Fprintf(w, "Requête : %s\n", query)
	fmt.Fprintf(w, "Recherche nécessaire : %t\n", classifier.NeedsRetrieval(query))

	if probe {
		for _, p := range orchestrator.Providers() {
			start := time.Now()
			results, err := p.Search(ctx, query, maxResults)
			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				_, _ = errorColor.Fprintf(w, "  %-24s échec (%s) : %s\n", p.Name(), elapsed, err.Error())
				continue
			}
			_, _ = okColor.Fprintf(w, "  %-24s %d résultat(s) (%s)\n", p.Name(), len(results), elapsed)
		}
	}

	results := orchestrator.Retrieve(ctx, query, maxResults)
	_, _ = headerColor.Fprintf(w, "Résultats retenus : %d\n", len(results))
	printResults(w, results)
	return nil
}

func printResults(w io.Writer, results []model.RetrievalResult) {
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
		_, _ = sourceColor.Fprintf(w, "   Source : %s - %s\n", r.SourceLabel, r.URL)
	}
}
