package config

import (
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/service/retrieval"
	"github.com/veille-ai/veille/pkg/usecase"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

// RetrievalFile is the optional TOML file tuning the classifier and the fallback tier
type RetrievalFile struct {
	Classifier ClassifierSection `toml:"classifier"`
	Fallback   FallbackSection   `toml:"fallback"`
}

// ClassifierSection adds keywords to the built-in vocabulary
type ClassifierSection struct {
	Keywords []string `toml:"keywords"`
}

// FallbackSection declares extra topic buckets. They are matched before the built-in ones,
// or instead of them when ReplaceDefaults is set.
type FallbackSection struct {
	ReplaceDefaults bool            `toml:"replace_defaults"`
	Generic         *BucketSection  `toml:"generic"`
	Buckets         []BucketSection `toml:"bucket"`
}

type BucketSection struct {
	ID       string          `toml:"id"`
	Label    string          `toml:"label"`
	Keywords []string        `toml:"keywords"`
	Sources  []SourceSection `toml:"sources"`
}

type SourceSection struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Validate checks a source entry
func (s *SourceSection) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return goerr.Wrap(ErrMissingName, "source name is required", goerr.V(SourceURLKey, s.URL))
	}
	u, err := url.Parse(strings.ReplaceAll(s.URL, "{query}", "q"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return goerr.Wrap(ErrInvalidSourceURL, "source URL must be an absolute http(s) URL",
			goerr.V(SourceURLKey, s.URL))
	}
	return nil
}

// Validate checks a bucket. The generic bucket needs no keywords.
func (b *BucketSection) Validate(generic bool) error {
	if !generic && strings.TrimSpace(b.ID) == "" {
		return goerr.Wrap(ErrInvalidConfig, "bucket id is required", goerr.V(BucketLabelKey, b.Label))
	}
	if strings.TrimSpace(b.Label) == "" {
		return goerr.Wrap(ErrMissingName, "bucket label is required", goerr.V(BucketIDKey, b.ID))
	}
	if !generic && len(b.Keywords) == 0 {
		return goerr.Wrap(ErrMissingKeywords, "bucket requires at least one keyword", goerr.V(BucketIDKey, b.ID))
	}
	if len(b.Sources) == 0 {
		return goerr.Wrap(ErrMissingSources, "bucket requires at least one source", goerr.V(BucketIDKey, b.ID))
	}
	for i := range b.Sources {
		if err := b.Sources[i].Validate(); err != nil {
			return goerr.Wrap(err, "invalid source", goerr.V(BucketIDKey, b.ID), goerr.V(SourceIndexKey, i))
		}
	}
	return nil
}

// Validate checks the whole file
func (f *RetrievalFile) Validate() error {
	for i, kw := range f.Classifier.Keywords {
		if strings.TrimSpace(kw) == "" {
			return goerr.Wrap(ErrInvalidConfig, "classifier keyword must not be blank", goerr.V(KeywordIndexKey, i))
		}
	}

	if f.Fallback.ReplaceDefaults && len(f.Fallback.Buckets) == 0 {
		return goerr.Wrap(ErrInvalidConfig, "replace_defaults requires at least one bucket")
	}

	ids := make(map[string]bool)
	for i := range f.Fallback.Buckets {
		b := &f.Fallback.Buckets[i]
		if err := b.Validate(false); err != nil {
			return err
		}
		if ids[b.ID] {
			return goerr.Wrap(ErrDuplicateBucketID, "duplicate bucket ID", goerr.V(BucketIDKey, b.ID))
		}
		ids[b.ID] = true
	}

	if f.Fallback.Generic != nil {
		if err := f.Fallback.Generic.Validate(true); err != nil {
			return goerr.Wrap(err, "invalid generic bucket")
		}
	}

	return nil
}

// Knowledge merges the file's buckets with the built-in ones
func (f *RetrievalFile) Knowledge() retrieval.Knowledge {
	k := retrieval.DefaultKnowledge()

	buckets := make([]retrieval.Bucket, 0, len(f.Fallback.Buckets)+len(k.Buckets))
	for _, b := range f.Fallback.Buckets {
		buckets = append(buckets, b.toBucket())
	}
	if !f.Fallback.ReplaceDefaults {
		buckets = append(buckets, k.Buckets...)
	}
	k.Buckets = buckets

	if f.Fallback.Generic != nil {
		k.Generic = f.Fallback.Generic.toBucket()
		if k.Generic.ID == "" {
			k.Generic.ID = "general"
		}
	}
	return k
}

func (b BucketSection) toBucket() retrieval.Bucket {
	sources := make([]retrieval.Source, len(b.Sources))
	for i, s := range b.Sources {
		sources[i] = retrieval.Source{Name: s.Name, URL: s.URL}
	}
	return retrieval.Bucket{
		ID:       b.ID,
		Label:    b.Label,
		Keywords: append([]string{}, b.Keywords...),
		Sources:  sources,
	}
}

// LoadRetrievalFile reads and validates a retrieval TOML file
func LoadRetrievalFile(path string) (*RetrievalFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "retrieval config file not found", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file RetrievalFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &file, nil
}

// Retrieval holds flags for the provider tiers and the classifier
type Retrieval struct {
	configPath      string
	scraperURL      string
	scraperRegion   string
	disableScraper  bool
	metasearchURL   string
	language        string
	providerTimeout time.Duration
	budget          time.Duration
	speculative     bool
	maxResults      int
}

// Flags returns CLI flags for retrieval configuration
func (r *Retrieval) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "retrieval-config",
			Usage:       "TOML file with classifier keywords and fallback buckets",
			Category:    "Retrieval",
			Sources:     cli.EnvVars("VEILLE_RETRIEVAL_CONFIG"),
			Destination: &r.configPath,
		},
		&cli.StringFlag{
			Name:        "scraper-url",
			Usage:       "HTML search results page of the first tier",
			Category:    "Retrieval",
			Value:       retrieval.DefaultScraperURL,
			Sources:     cli.EnvVars("VEILLE_SCRAPER_URL"),
			Destination: &r.scraperURL,
		},
		&cli.StringFlag{
			Name:        "scraper-region",
			Usage:       "Region code sent to the first tier",
			Category:    "Retrieval",
			Value:       "fr-fr",
			Sources:     cli.EnvVars("VEILLE_SCRAPER_REGION"),
			Destination: &r.scraperRegion,
		},
		&cli.BoolFlag{
			Name:        "disable-scraper",
			Usage:       "Skip the HTML scraping tier",
			Category:    "Retrieval",
			Sources:     cli.EnvVars("VEILLE_DISABLE_SCRAPER"),
			Destination: &r.disableScraper,
		},
		&cli.StringFlag{
			Name:        "metasearch-url",
			Usage:       "SearXNG instance of the second tier (disabled when empty)",
			Category:    "Retrieval",
			Sources:     cli.EnvVars("VEILLE_METASEARCH_URL"),
			Destination: &r.metasearchURL,
		},
		&cli.StringFlag{
			Name:        "metasearch-language",
			Usage:       "Result language requested from the second tier",
			Category:    "Retrieval",
			Value:       "fr",
			Sources:     cli.EnvVars("VEILLE_METASEARCH_LANGUAGE"),
			Destination: &r.language,
		},
		&cli.DurationFlag{
			Name:        "provider-timeout",
			Usage:       "Timeout of a single provider call",
			Category:    "Retrieval",
			Value:       retrieval.DefaultProviderTimeout,
			Sources:     cli.EnvVars("VEILLE_PROVIDER_TIMEOUT"),
			Destination: &r.providerTimeout,
		},
		&cli.DurationFlag{
			Name:        "retrieval-budget",
			Usage:       "Overall time budget of a retrieval",
			Category:    "Retrieval",
			Value:       retrieval.DefaultBudget,
			Sources:     cli.EnvVars("VEILLE_RETRIEVAL_BUDGET"),
			Destination: &r.budget,
		},
		&cli.BoolFlag{
			Name:        "retrieval-speculative",
			Usage:       "Query all tiers concurrently and keep the highest priority answer",
			Category:    "Retrieval",
			Sources:     cli.EnvVars("VEILLE_RETRIEVAL_SPECULATIVE"),
			Destination: &r.speculative,
		},
		&cli.IntFlag{
			Name:        "max-results",
			Usage:       "Number of results injected per turn",
			Category:    "Retrieval",
			Value:       retrieval.DefaultMaxResults,
			Sources:     cli.EnvVars("VEILLE_MAX_RESULTS"),
			Destination: &r.maxResults,
		},
	}
}

// LogAttrs returns log attributes for the retrieval configuration
func (r *Retrieval) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("config", r.configPath),
		slog.String("scraper_url", r.scraperURL),
		slog.Bool("scraper_disabled", r.disableScraper),
		slog.String("metasearch_url", r.metasearchURL),
		slog.Duration("provider_timeout", r.providerTimeout),
		slog.Duration("budget", r.budget),
		slog.Bool("speculative", r.speculative),
	}
}

// MaxResults returns the number of results requested per turn
func (r *Retrieval) MaxResults() int {
	return r.maxResults
}

// Configure builds the orchestrator and the classifier. The provider order is fixed:
// scraper, metasearch, then the static fallback.
func (r *Retrieval) Configure() (*retrieval.Orchestrator, *usecase.Classifier, error) {
	if r.providerTimeout <= 0 {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "provider-timeout must be positive", goerr.V("timeout", r.providerTimeout))
	}
	if r.budget < r.providerTimeout {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "retrieval-budget must not be shorter than provider-timeout",
			goerr.V("budget", r.budget), goerr.V("timeout", r.providerTimeout))
	}
	if r.maxResults <= 0 {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "max-results must be positive", goerr.V("max_results", r.maxResults))
	}

	file := &RetrievalFile{}
	if r.configPath != "" {
		loaded, err := LoadRetrievalFile(r.configPath)
		if err != nil {
			return nil, nil, err
		}
		file = loaded
	}

	client := &http.Client{Timeout: r.providerTimeout}

	var providers []interfaces.RetrievalProvider
	if !r.disableScraper {
		providers = append(providers, retrieval.NewScraper(
			retrieval.WithScraperEndpoint(r.scraperURL),
			retrieval.WithScraperRegion(r.scraperRegion),
			retrieval.WithScraperHTTPClient(client),
		))
	}
	if r.metasearchURL != "" {
		providers = append(providers, retrieval.NewMetasearch(r.metasearchURL,
			retrieval.WithMetasearchLanguage(r.language),
			retrieval.WithMetasearchHTTPClient(client),
		))
	} else {
		logging.Default().Info("Metasearch tier disabled, no metasearch-url configured")
	}
	providers = append(providers, retrieval.NewFallback(retrieval.WithKnowledge(file.Knowledge())))

	orchestrator := retrieval.NewOrchestrator(providers,
		retrieval.WithProviderTimeout(r.providerTimeout),
		retrieval.WithBudget(r.budget),
		retrieval.WithSpeculative(r.speculative),
	)

	return orchestrator, usecase.NewClassifier(file.Classifier.Keywords...), nil
}
