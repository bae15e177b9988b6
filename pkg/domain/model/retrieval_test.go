package model_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/domain/model"
)

func TestTruncateSnippet(t *testing.T) {
	t.Run("short text is kept as is", func(t *testing.T) {
		for _, n := range []int{0, 1, 150, 299, 300} {
			s := strings.Repeat("a", n)
			gt.Value(t, model.TruncateSnippet(s)).Equal(s)
		}
	})

	t.Run("long text is cut with ellipsis", func(t *testing.T) {
		for _, n := range []int{301, 500, 5000} {
			got := model.TruncateSnippet(strings.Repeat("b", n))
			gt.Number(t, utf8.RuneCountInString(got)).Equal(model.SnippetMaxLength + len(model.SnippetEllipsis))
			gt.Value(t, strings.HasSuffix(got, "...")).Equal(true)
		}
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		s := strings.Repeat("é", 300)
		gt.Value(t, model.TruncateSnippet(s)).Equal(s)

		got := model.TruncateSnippet(strings.Repeat("é", 301))
		gt.Value(t, got).Equal(strings.Repeat("é", 300) + "...")
	})
}

func TestNormalizeResults(t *testing.T) {
	results := []model.RetrievalResult{
		{Title: "  Élections   municipales ", Snippet: "Résumé\n des  résultats", URL: " https://example.com/a "},
		{Title: "", Snippet: "no title is dropped"},
		{Title: "Second", Snippet: strings.Repeat("x", 400), SourceLabel: "Le Monde"},
		{Title: "Third"},
	}

	got := model.NormalizeResults(results, "DuckDuckGo", 2)
	gt.Array(t, got).Length(2).Required()

	gt.Value(t, got[0].Title).Equal("Élections municipales")
	gt.Value(t, got[0].Snippet).Equal("Résumé\n des  résultats")
	gt.Value(t, got[0].URL).Equal("https://example.com/a")
	gt.Value(t, got[0].SourceLabel).Equal("DuckDuckGo")

	gt.Value(t, got[1].SourceLabel).Equal("Le Monde")
	gt.Number(t, len(got[1].Snippet)).Equal(303)
}

func TestNormalizeResults_KeepsShortSnippetsVerbatim(t *testing.T) {
	snippets := []string{
		"Ligne un.\n\nLigne  deux.",
		"  espaces en tête et en fin  ",
		"\ttabulation",
		strings.Repeat("é ", model.SnippetMaxLength/2),
	}
	for _, snippet := range snippets {
		got := model.NormalizeResults([]model.RetrievalResult{{Title: "Titre", Snippet: snippet}}, "DuckDuckGo", 5)
		gt.Array(t, got).Length(1).Required()
		gt.Value(t, got[0].Snippet).Equal(snippet)
	}

	long := "Début\n" + strings.Repeat("x", model.SnippetMaxLength)
	got := model.NormalizeResults([]model.RetrievalResult{{Title: "Titre", Snippet: long}}, "DuckDuckGo", 5)
	gt.Array(t, got).Length(1).Required()
	gt.Value(t, got[0].Snippet).Equal(model.TruncateSnippet(long))
	gt.Value(t, strings.HasPrefix(got[0].Snippet, "Début\n")).Equal(true)
}
