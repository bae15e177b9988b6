package model

import (
	"strings"
	"unicode/utf8"
)

const (
	// SnippetMaxLength is the number of runes a snippet keeps before truncation
	SnippetMaxLength = 300
	// SnippetEllipsis marks a truncated snippet
	SnippetEllipsis = "..."
)

// RetrievalResult is one normalized piece of externally retrieved information.
// It is produced per call and never persisted.
type RetrievalResult struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	URL         string `json:"url"`
	SourceLabel string `json:"source"`
}

// TruncateSnippet cuts s to SnippetMaxLength runes and appends SnippetEllipsis when longer.
// Shorter text is returned unchanged.
func TruncateSnippet(s string) string {
	if utf8.RuneCountInString(s) <= SnippetMaxLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:SnippetMaxLength]) + SnippetEllipsis
}

// NormalizeResults collapses title whitespace, trims URLs and source labels, truncates snippets,
// fills a missing source label with defaultSource, drops entries without a title and caps the
// list to maxResults. Snippets within SnippetMaxLength are kept byte for byte.
func NormalizeResults(results []RetrievalResult, defaultSource string, maxResults int) []RetrievalResult {
	normalized := make([]RetrievalResult, 0, len(results))
	for _, r := range results {
		if maxResults > 0 && len(normalized) >= maxResults {
			break
		}

		title := collapseSpaces(r.Title)
		if title == "" {
			continue
		}

		source := strings.TrimSpace(r.SourceLabel)
		if source == "" {
			source = defaultSource
		}

		normalized = append(normalized, RetrievalResult{
			Title:       title,
			Snippet:     TruncateSnippet(r.Snippet),
			URL:         strings.TrimSpace(r.URL),
			SourceLabel: source,
		})
	}
	return normalized
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
