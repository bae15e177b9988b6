package retrieval_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/service/retrieval"
)

func TestMetasearch_Search(t *testing.T) {
	var gotPath, gotFormat, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("format")
		gotLang = r.URL.Query().Get("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"query": "bourse",
			"results": [
				{"title": "CAC 40 : la séance du jour", "content": "Le CAC 40 termine en hausse.", "url": "https://www.lesechos.fr/marches/cac40", "engine": "bing"},
				{"title": "", "content": "sans titre", "url": "https://nowhere.example/"},
				{"title": "Marchés", "content": "Point sur les marchés.", "url": "not a url"}
			]
		}`))
	}))
	defer srv.Close()

	m := retrieval.NewMetasearch(srv.URL+"/", retrieval.WithMetasearchHTTPClient(srv.Client()))
	results, err := m.Search(context.Background(), "bourse", 5)
	gt.NoError(t, err).Required()

	gt.Value(t, gotPath).Equal("/search")
	gt.Value(t, gotFormat).Equal("json")
	gt.Value(t, gotLang).Equal("fr")

	gt.Array(t, results).Length(2).Required()
	gt.Value(t, results[0].Title).Equal("CAC 40 : la séance du jour")
	gt.Value(t, results[0].Snippet).Equal("Le CAC 40 termine en hausse.")
	gt.Value(t, results[0].SourceLabel).Equal("lesechos.fr")
	gt.Value(t, results[1].SourceLabel).Equal("SearXNG")
}

func TestMetasearch_SearchFailures(t *testing.T) {
	t.Run("no endpoint", func(t *testing.T) {
		_, err := retrieval.NewMetasearch("").Search(context.Background(), "x", 5)
		gt.Error(t, err).Is(retrieval.ErrNoResults)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>rate limited</html>`))
		}))
		defer srv.Close()

		_, err := retrieval.NewMetasearch(srv.URL).Search(context.Background(), "x", 5)
		gt.Error(t, err).Is(retrieval.ErrProviderPayload)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := retrieval.NewMetasearch(srv.URL).Search(context.Background(), "x", 5)
		gt.Error(t, err).Is(retrieval.ErrProviderStatus)
	})
}
