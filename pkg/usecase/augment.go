package usecase

import (
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/utils/datefmt"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

//go:embed prompt/augment.md
var augmentPromptTmpl string

var augmentPrompt = template.Must(template.New("augment").Parse(augmentPromptTmpl))

const (
	// AugmentBeginMarker opens the block of retrieved information
	AugmentBeginMarker = "=== DÉBUT INFORMATIONS RÉCENTES ==="
	// AugmentEndMarker closes the block of retrieved information
	AugmentEndMarker = "=== FIN INFORMATIONS RÉCENTES ==="
)

type augmentPromptData struct {
	Date        string
	Clock       string
	TimeZone    string
	Results     []augmentPromptResult
	EditSummary string
	Original    string
}

type augmentPromptResult struct {
	Index   int
	Title   string
	Snippet string
	Source  string
	URL     string
}

// Augmenter prepends retrieved information and the current date to the user's text. The
// original text is kept verbatim at the end of the prompt.
type Augmenter struct {
	location *time.Location
}

type AugmenterOption func(*Augmenter)

// WithLocation sets the time zone of the date block (default Europe/Paris)
func WithLocation(loc *time.Location) AugmenterOption {
	return func(a *Augmenter) {
		if loc != nil {
			a.location = loc
		}
	}
}

func NewAugmenter(opts ...AugmenterOption) *Augmenter {
	a := &Augmenter{location: defaultLocation()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Augment returns original unchanged when results is empty
func (a *Augmenter) Augment(original string, results []model.RetrievalResult, now time.Time) string {
	return a.AugmentWithEdits(original, results, "", now)
}

// AugmentWithEdits also embeds an image edit summary. With neither results nor summary the
// original text is returned unchanged.
func (a *Augmenter) AugmentWithEdits(original string, results []model.RetrievalResult, editSummary string, now time.Time) string {
	editSummary = strings.TrimSpace(editSummary)
	if len(results) == 0 && editSummary == "" {
		return original
	}

	local := now.In(a.location)
	data := augmentPromptData{
		Date:        datefmt.Date(local),
		Clock:       datefmt.Clock(local),
		TimeZone:    a.location.String(),
		EditSummary: editSummary,
		Original:    original,
	}
	for i, r := range results {
		source := r.SourceLabel
		if source == "" {
			source = "inconnue"
		}
		data.Results = append(data.Results, augmentPromptResult{
			Index:   i + 1,
			Title:   r.Title,
			Snippet: model.TruncateSnippet(r.Snippet),
			Source:  source,
			URL:     r.URL,
		})
	}

	var sb strings.Builder
	if err := augmentPrompt.Execute(&sb, data); err != nil {
		logging.Default().Warn("failed to render augmented prompt", "error", err.Error())
		return original
	}
	return sb.String()
}
