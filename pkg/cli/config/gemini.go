package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

// Gemini holds configuration for the Gemini LLM client
type Gemini struct {
	projectID   string
	location    string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
}

// Flags returns CLI flags for Gemini configuration
func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "Gemini",
			Sources:     cli.EnvVars("VEILLE_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "Gemini",
			Value:       "europe-west1",
			Sources:     cli.EnvVars("VEILLE_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name (empty for the client default)",
			Category:    "Gemini",
			Sources:     cli.EnvVars("VEILLE_GEMINI_MODEL"),
			Destination: &g.model,
		},
		&cli.FloatFlag{
			Name:        "gemini-temperature",
			Usage:       "Sampling temperature",
			Category:    "Gemini",
			Value:       0.7,
			Sources:     cli.EnvVars("VEILLE_GEMINI_TEMPERATURE"),
			Destination: &g.temperature,
		},
		&cli.FloatFlag{
			Name:        "gemini-top-p",
			Usage:       "Nucleus sampling probability",
			Category:    "Gemini",
			Value:       0.95,
			Sources:     cli.EnvVars("VEILLE_GEMINI_TOP_P"),
			Destination: &g.topP,
		},
		&cli.IntFlag{
			Name:        "gemini-max-tokens",
			Usage:       "Maximum number of generated tokens per reply",
			Category:    "Gemini",
			Value:       1024,
			Sources:     cli.EnvVars("VEILLE_GEMINI_MAX_TOKENS"),
			Destination: &g.maxTokens,
		},
	}
}

// LogAttrs returns log attributes for the Gemini configuration
func (g *Gemini) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.String("model", g.model),
		slog.Float64("temperature", g.temperature),
		slog.Float64("top_p", g.topP),
		slog.Int("max_tokens", g.maxTokens),
	}
}

// Validate checks the sampling parameters
func (g *Gemini) Validate() error {
	if g.temperature < 0 || g.temperature > 2 {
		return goerr.New("gemini-temperature must be between 0 and 2", goerr.V("temperature", g.temperature))
	}
	if g.topP <= 0 || g.topP > 1 {
		return goerr.New("gemini-top-p must be in (0, 1]", goerr.V("top_p", g.topP))
	}
	if g.maxTokens <= 0 {
		return goerr.New("gemini-max-tokens must be positive", goerr.V("max_tokens", g.maxTokens))
	}
	return nil
}

// Configure creates a new Gemini LLM client from the configured flags.
// Returns nil if projectID is not configured (replies cannot be generated).
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if g.projectID == "" {
		return nil, nil
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	opts := []gemini.Option{
		gemini.WithTemperature(float32(g.temperature)),
		gemini.WithTopP(float32(g.topP)),
		gemini.WithMaxTokens(int32(g.maxTokens)), // #nosec G115 - validated positive flag value
	}
	if g.model != "" {
		opts = append(opts, gemini.WithModel(g.model))
	}

	client, err := gemini.New(ctx, g.projectID, g.location, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}

	return client, nil
}
