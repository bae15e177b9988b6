package usecase

import (
	"regexp"
	"strings"
)

// DefaultRetrievalKeywords are temporal and topical cues suggesting the answer depends on
// recent information. The list leans toward over-triggering: a needless retrieval costs one
// request, a missed one costs a stale answer. Entries must not occur inside greetings such as
// "bonjour" or "bonsoir".
var DefaultRetrievalKeywords = []string{
	// temporal, French
	"actualité", "actualite", "actu ", "dernières nouvelles", "dernieres nouvelles",
	"dernière", "derniere", "dernier", "nouvelles", "aujourd'hui", "maintenant",
	"en ce moment", "actuellement", "récent", "recent", "cette semaine", "ce mois",
	"cette année", "hier", "demain", "en direct", "à jour",
	// temporal, English
	"latest", "news", "today", "now", "this week", "this year", "yesterday", "tomorrow", "current",
	// topical
	"politique", "politics", "élection", "election", "gouvernement", "government", "président",
	"president", "ministre", "économie", "economie", "economy", "bourse", "inflation",
	"marché", "sport", "football", "ligue 1", "match", "résultat", "technologie", "technology",
	"intelligence artificielle", "météo", "meteo", "weather", "prix", "tendance", "trend",
}

var yearToken = regexp.MustCompile(`(^|[^0-9])20[2-9][0-9]([^0-9]|$)`)

// Classifier decides whether a turn warrants external retrieval. It is pure and deterministic.
type Classifier struct {
	keywords []string
}

// NewClassifier creates a classifier with DefaultRetrievalKeywords plus extra
func NewClassifier(extra ...string) *Classifier {
	keywords := make([]string, 0, len(DefaultRetrievalKeywords)+len(extra))
	for _, kw := range append(append([]string{}, DefaultRetrievalKeywords...), extra...) {
		kw = normalizeText(kw)
		if strings.TrimSpace(kw) == "" {
			continue
		}
		keywords = append(keywords, kw)
	}
	return &Classifier{keywords: keywords}
}

// Keywords returns the effective vocabulary
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// NeedsRetrieval reports whether text contains a year token or one of the keywords, ignoring case
func (c *Classifier) NeedsRetrieval(text string) bool {
	normalized := normalizeText(text)
	if normalized == "" {
		return false
	}
	if yearToken.MatchString(normalized) {
		return true
	}

	// pad so keywords with a trailing space also match at the end of the text
	padded := normalized + " "
	for _, kw := range c.keywords {
		if strings.Contains(padded, kw) {
			return true
		}
	}
	return false
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

func normalizeText(s string) string {
	return apostrophes.Replace(strings.ToLower(s))
}
