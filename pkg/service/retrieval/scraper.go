package retrieval

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"golang.org/x/net/html"
)

// DefaultScraperURL is the no-JavaScript DuckDuckGo results page
const DefaultScraperURL = "https://html.duckduckgo.com/html/"

// Scraper is the first tier: it reads a search results page and extracts title, snippet and
// URL triples from the markup.
type Scraper struct {
	client   *http.Client
	endpoint string
	region   string
}

var _ interfaces.RetrievalProvider = &Scraper{}

type ScraperOption func(*Scraper)

// WithScraperEndpoint overrides the results page URL
func WithScraperEndpoint(endpoint string) ScraperOption {
	return func(s *Scraper) {
		s.endpoint = endpoint
	}
}

// WithScraperRegion sets the DuckDuckGo region code (e.g. "fr-fr")
func WithScraperRegion(region string) ScraperOption {
	return func(s *Scraper) {
		s.region = region
	}
}

// WithScraperHTTPClient replaces the HTTP client
func WithScraperHTTPClient(client *http.Client) ScraperOption {
	return func(s *Scraper) {
		s.client = client
	}
}

func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{
		client:   http.DefaultClient,
		endpoint: DefaultScraperURL,
		region:   "fr-fr",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scraper) Name() string {
	return "DuckDuckGo"
}

func (s *Scraper) Search(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if s.region != "" {
		params.Set("kl", s.region)
	}

	reqURL := s.endpoint
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, goerr.Wrap(ErrProviderTransport, "failed to create request", goerr.V("cause", err.Error()))
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")

	body, err := fetch(ctx, s.client, req)
	if err != nil {
		return nil, err
	}

	results, err := parseResultsPage(body, maxResults)
	if err != nil {
		return nil, err
	}

	return model.NormalizeResults(results, s.Name(), maxResults), nil
}

// parseResultsPage extracts results from DuckDuckGo HTML
func parseResultsPage(body []byte, maxResults int) ([]model.RetrievalResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(ErrProviderPayload, "failed to parse HTML", goerr.V("cause", err.Error()))
	}

	var results []model.RetrievalResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if maxResults > 0 && len(results) >= maxResults {
			return
		}

		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if hasClass(class, "result") && !hasClass(class, "result--ad") {
				result := extractResult(n)
				if result.URL != "" && result.Title != "" {
					results = append(results, result)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult reads one result block
func extractResult(n *html.Node) model.RetrievalResult {
	var result model.RetrievalResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attrValue(n, "class")
			switch {
			case n.Data == "a" && hasClass(class, "result__a"):
				result.URL = unwrapRedirect(attrValue(n, "href"))
				result.Title = textContent(n)
			case hasClass(class, "result__snippet"):
				result.Snippet = textContent(n)
			case hasClass(class, "result__url") && result.SourceLabel == "":
				result.SourceLabel = textContent(n)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}

	extract(n)
	return result
}

// unwrapRedirect turns "//duckduckgo.com/l/?uddg=<target>&rut=..." into the target URL
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}

	raw := href
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
