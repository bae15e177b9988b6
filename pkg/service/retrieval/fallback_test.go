package retrieval_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/service/retrieval"
)

func fixedClock() time.Time {
	return time.Date(2026, 10, 16, 9, 5, 0, 0, time.UTC)
}

func TestKnowledge_Match(t *testing.T) {
	k := retrieval.DefaultKnowledge()

	tests := []struct {
		query string
		want  string
	}{
		{"actualités France 2025", "general"},
		{"Résultats de l'ÉLECTION présidentielle", "politique"},
		{"inflation en zone euro", "economie"},
		{"score du match de Ligue 1", "sport"},
		{"les progrès de l'intelligence artificielle", "technologie"},
		{"météo à Lyon demain", "meteo"},
		{"", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gt.Value(t, k.Match(tt.query).ID).Equal(tt.want)
		})
	}
}

func TestFallback_Search(t *testing.T) {
	fb := retrieval.NewFallback(retrieval.WithFallbackClock(fixedClock))

	results, err := fb.Search(context.Background(), "actualités France 2025", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(3).Required()

	labels := []string{results[0].SourceLabel, results[1].SourceLabel, results[2].SourceLabel}
	gt.Value(t, labels).Equal([]string{"France TV Info", "Le Monde", "BBC Afrique"})

	for _, r := range results {
		gt.String(t, r.Snippet).Contains("actualités France 2025")
		gt.String(t, r.Snippet).Contains("vendredi 16 octobre 2026")
		gt.Bool(t, strings.HasPrefix(r.URL, "https://")).True()
	}

	t.Run("deterministic", func(t *testing.T) {
		again, err := fb.Search(context.Background(), "actualités France 2025", 5)
		gt.NoError(t, err)
		gt.Value(t, again).Equal(results)
	})

	t.Run("caps results", func(t *testing.T) {
		capped, err := fb.Search(context.Background(), "actualités France 2025", 1)
		gt.NoError(t, err)
		gt.Array(t, capped).Length(1)
	})
}

func TestFallback_CustomKnowledge(t *testing.T) {
	k := retrieval.Knowledge{
		Buckets: []retrieval.Bucket{
			{
				ID:       "cinema",
				Label:    "cinéma",
				Keywords: []string{"Cinéma", "film"},
				Sources:  []retrieval.Source{{Name: "Allociné", URL: "https://www.allocine.fr/recherche/?q={query}"}},
			},
		},
	}
	fb := retrieval.NewFallback(retrieval.WithKnowledge(k), retrieval.WithFallbackClock(fixedClock))

	t.Run("specialized bucket with query placeholder", func(t *testing.T) {
		results, err := fb.Search(context.Background(), "sorties cinéma", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].SourceLabel).Equal("Allociné")
		gt.Value(t, results[0].URL).Equal("https://www.allocine.fr/recherche/?q=sorties+cin%C3%A9ma")
	})

	t.Run("missing generic bucket falls back to built-in one", func(t *testing.T) {
		results, err := fb.Search(context.Background(), "bonjour", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(3).Required()
		gt.Value(t, results[0].SourceLabel).Equal("France TV Info")
	})
}
