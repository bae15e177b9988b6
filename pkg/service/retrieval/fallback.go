package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/utils/datefmt"
)

// Source is a well-known outlet the fallback tier points users to
type Source struct {
	Name string
	// URL may contain "{query}", replaced by the escaped query
	URL string
}

// Bucket groups sources for one topic, selected when the query contains one of Keywords
type Bucket struct {
	ID       string
	Label    string
	Keywords []string
	Sources  []Source
}

// Knowledge is the static material of the fallback tier
type Knowledge struct {
	Buckets []Bucket
	Generic Bucket
}

// DefaultKnowledge returns the built-in buckets
func DefaultKnowledge() Knowledge {
	return Knowledge{
		Buckets: []Bucket{
			{
				ID:       "politique",
				Label:    "politique",
				Keywords: []string{"politique", "élection", "election", "gouvernement", "président", "president", "ministre", "assemblée", "sénat", "parlement", "politics"},
				Sources: []Source{
					{Name: "Public Sénat", URL: "https://www.publicsenat.fr/"},
					{Name: "Le Figaro", URL: "https://www.lefigaro.fr/politique"},
					{Name: "France 24", URL: "https://www.france24.com/fr/france/"},
				},
			},
			{
				ID:       "economie",
				Label:    "économie",
				Keywords: []string{"économie", "economie", "economy", "bourse", "inflation", "marché", "finance", "entreprise", "emploi", "chômage", "prix"},
				Sources: []Source{
					{Name: "Les Echos", URL: "https://www.lesechos.fr/"},
					{Name: "La Tribune", URL: "https://www.latribune.fr/"},
					{Name: "BFM Business", URL: "https://www.bfmtv.com/economie/"},
				},
			},
			{
				ID:       "sport",
				Label:    "sport",
				Keywords: []string{"sport", "football", "foot", "ligue 1", "rugby", "tennis", "olympique", "jeux olympiques", "match", "coupe du monde", "basket"},
				Sources: []Source{
					{Name: "L'Équipe", URL: "https://www.lequipe.fr/"},
					{Name: "RMC Sport", URL: "https://rmcsport.bfmtv.com/"},
					{Name: "Eurosport", URL: "https://www.eurosport.fr/"},
				},
			},
			{
				ID:       "technologie",
				Label:    "technologie",
				Keywords: []string{"technologie", "technology", "tech", "intelligence artificielle", "numérique", "smartphone", "informatique", "startup", "cybersécurité"},
				Sources: []Source{
					{Name: "01net", URL: "https://www.01net.com/"},
					{Name: "Numerama", URL: "https://www.numerama.com/"},
					{Name: "Frandroid", URL: "https://www.frandroid.com/"},
				},
			},
			{
				ID:       "meteo",
				Label:    "météo",
				Keywords: []string{"météo", "meteo", "weather", "température", "canicule", "orage", "climat"},
				Sources: []Source{
					{Name: "Météo-France", URL: "https://meteofrance.com/"},
					{Name: "La Chaîne Météo", URL: "https://www.lachainemeteo.com/"},
				},
			},
		},
		Generic: Bucket{
			ID:    "general",
			Label: "actualité générale",
			Sources: []Source{
				{Name: "France TV Info", URL: "https://www.francetvinfo.fr/"},
				{Name: "Le Monde", URL: "https://www.lemonde.fr/"},
				{Name: "BBC Afrique", URL: "https://www.bbc.com/afrique"},
			},
		},
	}
}

// Match returns the first bucket whose keywords occur in query, or the generic bucket
func (k Knowledge) Match(query string) Bucket {
	q := strings.ToLower(query)
	for _, b := range k.Buckets {
		for _, kw := range b.Keywords {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				return b
			}
		}
	}
	return k.Generic
}

// Fallback is the last tier. It synthesizes results from the query, the current date and the
// static knowledge, and cannot fail.
type Fallback struct {
	knowledge Knowledge
	now       func() time.Time
}

var _ interfaces.RetrievalProvider = &Fallback{}

type FallbackOption func(*Fallback)

// WithKnowledge replaces the built-in buckets
func WithKnowledge(k Knowledge) FallbackOption {
	return func(f *Fallback) {
		f.knowledge = k
	}
}

// WithFallbackClock sets the time source
func WithFallbackClock(now func() time.Time) FallbackOption {
	return func(f *Fallback) {
		f.now = now
	}
}

func NewFallback(opts ...FallbackOption) *Fallback {
	f := &Fallback{
		knowledge: DefaultKnowledge(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.knowledge.Generic.Sources) == 0 {
		f.knowledge.Generic = DefaultKnowledge().Generic
	}
	return f
}

func (f *Fallback) Name() string {
	return "Connaissances statiques"
}

// Search never returns an error or an empty slice
func (f *Fallback) Search(_ context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
	return f.Synthesize(query, maxResults), nil
}

// Synthesize builds the deterministic result set for query
func (f *Fallback) Synthesize(query string, maxResults int) []model.RetrievalResult {
	bucket := f.knowledge.Match(query)
	if len(bucket.Sources) == 0 {
		bucket = f.knowledge.Generic
	}

	query = strings.Join(strings.Fields(query), " ")
	date := datefmt.Date(f.now())

	results := make([]model.RetrievalResult, 0, len(bucket.Sources))
	for _, src := range bucket.Sources {
		results = append(results, model.RetrievalResult{
			Title:       fmt.Sprintf("%s : %s", src.Name, bucket.Label),
			Snippet:     fmt.Sprintf("Les sources en ligne n'ont pas pu être consultées pour « %s ». Rubrique %s au %s : consultez %s.", query, bucket.Label, date, src.Name),
			URL:         strings.ReplaceAll(src.URL, "{query}", url.QueryEscape(query)),
			SourceLabel: src.Name,
		})
	}

	return model.NormalizeResults(results, f.Name(), maxResults)
}
