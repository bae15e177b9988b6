package imaging

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
)

// Describer captions images with a Hugging Face style inference endpoint: raw image bytes are
// posted and the answer is [{"generated_text": "..."}].
type Describer struct {
	client   *http.Client
	endpoint string
	token    string
}

var _ interfaces.ImageDescriber = &Describer{}

type DescriberOption func(*Describer)

func WithDescriberHTTPClient(client *http.Client) DescriberOption {
	return func(d *Describer) {
		d.client = client
	}
}

func NewDescriber(endpoint, token string, opts ...DescriberOption) (*Describer, error) {
	if endpoint == "" {
		return nil, goerr.New("image describer endpoint is required")
	}

	d := &Describer{
		client:   http.DefaultClient,
		endpoint: endpoint,
		token:    token,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type captionResponse []struct {
	GeneratedText string `json:"generated_text"`
}

func (d *Describer) Describe(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", goerr.New("image is empty")
	}

	payload, err := post(ctx, d.client, d.endpoint, d.token, http.DetectContentType(image), image)
	if err != nil {
		return "", goerr.Wrap(err, "failed to describe image")
	}

	var resp captionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", goerr.Wrap(err, "failed to decode caption", goerr.V("body", excerpt(payload)))
	}

	for _, c := range resp {
		if caption := strings.TrimSpace(c.GeneratedText); caption != "" {
			return caption, nil
		}
	}
	return "", goerr.New("describer returned an empty caption", goerr.V("body", excerpt(payload)))
}
