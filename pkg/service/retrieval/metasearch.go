package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
)

// Metasearch is the second tier: a SearXNG compatible JSON API returning
// {"results": [{"title", "content", "url", "engine"}]}.
type Metasearch struct {
	client   *http.Client
	endpoint string
	language string
}

var _ interfaces.RetrievalProvider = &Metasearch{}

type MetasearchOption func(*Metasearch)

// WithMetasearchHTTPClient replaces the HTTP client
func WithMetasearchHTTPClient(client *http.Client) MetasearchOption {
	return func(m *Metasearch) {
		m.client = client
	}
}

// WithMetasearchLanguage sets the result language (default "fr")
func WithMetasearchLanguage(lang string) MetasearchOption {
	return func(m *Metasearch) {
		m.language = lang
	}
}

// NewMetasearch creates the provider for a SearXNG instance, e.g. "https://searx.example.org".
// An empty endpoint yields a provider that always reports ErrNoResults.
func NewMetasearch(endpoint string, opts ...MetasearchOption) *Metasearch {
	m := &Metasearch{
		client:   http.DefaultClient,
		endpoint: strings.TrimRight(endpoint, "/"),
		language: "fr",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Metasearch) Name() string {
	return "SearXNG"
}

type metasearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

func (m *Metasearch) Search(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
	if m.endpoint == "" {
		return nil, goerr.Wrap(ErrNoResults, "metasearch endpoint is not configured")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", "news,general")
	if m.language != "" {
		params.Set("language", m.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, goerr.Wrap(ErrProviderTransport, "failed to create request", goerr.V("cause", err.Error()))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	body, err := fetch(ctx, m.client, req)
	if err != nil {
		return nil, err
	}

	var resp metasearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, goerr.Wrap(ErrProviderPayload, "failed to decode metasearch response", goerr.V("cause", err.Error()))
	}

	results := make([]model.RetrievalResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, model.RetrievalResult{
			Title:       r.Title,
			Snippet:     r.Content,
			URL:         r.URL,
			SourceLabel: sourceFromURL(r.URL),
		})
	}

	return model.NormalizeResults(results, m.Name(), maxResults), nil
}

// sourceFromURL labels a result with its host, without the www prefix
func sourceFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
