package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/veille-ai/veille/pkg/service/imaging"
)

// Imaging holds the endpoints of the image caption and image edit services
type Imaging struct {
	describeURL string
	editURL     string
	token       string
	timeout     time.Duration
}

// Flags returns CLI flags for imaging configuration
func (x *Imaging) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "describe-url",
			Usage:       "Image captioning inference endpoint",
			Category:    "Imaging",
			Sources:     cli.EnvVars("VEILLE_DESCRIBE_URL"),
			Destination: &x.describeURL,
		},
		&cli.StringFlag{
			Name:        "edit-url",
			Usage:       "Instruction based image editing endpoint",
			Category:    "Imaging",
			Sources:     cli.EnvVars("VEILLE_EDIT_URL"),
			Destination: &x.editURL,
		},
		&cli.StringFlag{
			Name:        "imaging-token",
			Usage:       "Bearer token for the imaging endpoints",
			Category:    "Imaging",
			Sources:     cli.EnvVars("VEILLE_IMAGING_TOKEN"),
			Destination: &x.token,
		},
		&cli.DurationFlag{
			Name:        "imaging-timeout",
			Usage:       "Timeout of an imaging request",
			Category:    "Imaging",
			Value:       2 * time.Minute,
			Sources:     cli.EnvVars("VEILLE_IMAGING_TIMEOUT"),
			Destination: &x.timeout,
		},
	}
}

// LogAttrs returns log attributes for the imaging configuration
func (x *Imaging) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("describe_url", x.describeURL),
		slog.String("edit_url", x.editURL),
		slog.Bool("token_set", x.token != ""),
		slog.Duration("timeout", x.timeout),
	}
}

// Configure builds both imaging clients. Returns nils when neither endpoint is set
// (image edits are disabled); setting only one of them is an error.
func (x *Imaging) Configure() (*imaging.Describer, *imaging.Editor, error) {
	if x.describeURL == "" && x.editURL == "" {
		return nil, nil, nil
	}
	if x.describeURL == "" || x.editURL == "" {
		return nil, nil, goerr.Wrap(ErrInvalidConfig, "describe-url and edit-url must be set together")
	}

	client := &http.Client{Timeout: x.timeout}

	describer, err := imaging.NewDescriber(x.describeURL, x.token, imaging.WithDescriberHTTPClient(client))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create image describer")
	}
	editor, err := imaging.NewEditor(x.editURL, x.token, imaging.WithEditorHTTPClient(client))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create image editor")
	}

	return describer, editor, nil
}
