package usecase

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/utils/datefmt"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

// editingCues mark a turn that talks about previous image edits
var editingCues = []string{
	"edit", "modif", "retouch", "retouche", "avant", "après", "apres", "before", "after",
	"change", "image", "photo", "transform",
}

// ProvenanceTracker keeps the before/after record of image edits per conversation. Records
// live in process memory only and are lost on restart.
type ProvenanceTracker struct {
	mu      sync.RWMutex
	records map[model.ConversationID][]model.EditRecord
	now     func() time.Time
}

func NewProvenanceTracker(now func() time.Time) *ProvenanceTracker {
	if now == nil {
		now = time.Now
	}
	return &ProvenanceTracker{
		records: make(map[model.ConversationID][]model.EditRecord),
		now:     now,
	}
}

// Record appends a new edit record for the conversation and returns it
func (t *ProvenanceTracker) Record(conversationID model.ConversationID, original, instruction, edited, technical string) model.EditRecord {
	rec := model.EditRecord{
		OriginalDescription: original,
		EditInstruction:     instruction,
		EditedDescription:   edited,
		TechnicalInfo:       technical,
		Timestamp:           t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[conversationID] = append(t.records[conversationID], rec)
	return rec
}

// History returns a copy of the conversation's records in chronological order
func (t *ProvenanceTracker) History(conversationID model.ConversationID) []model.EditRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.EditRecord(nil), t.records[conversationID]...)
}

// Retain drops the records of every conversation but conversationID
func (t *ProvenanceTracker) Retain(conversationID model.ConversationID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.records {
		if id != conversationID {
			delete(t.records, id)
		}
	}
}

// Clear drops all records
func (t *ProvenanceTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[model.ConversationID][]model.EditRecord)
}

// ReferencesEditing reports whether text mentions editing, so the summary is worth adding
func (t *ProvenanceTracker) ReferencesEditing(text string) bool {
	normalized := normalizeText(text)
	for _, cue := range editingCues {
		if strings.Contains(normalized, cue) {
			return true
		}
	}
	return false
}

// Summarize renders the valid records of the conversation for the prompt. Invalid records are
// skipped; an empty string means there is nothing to report.
func (t *ProvenanceTracker) Summarize(conversationID model.ConversationID) string {
	history := t.History(conversationID)

	var sb strings.Builder
	n := 0
	for i := range history {
		rec := &history[i]
		if err := rec.Validate(); err != nil {
			logging.Default().Debug("skip malformed edit record",
				"conversation_id", conversationID,
				"index", i,
				"error", err.Error(),
			)
			continue
		}

		n++
		if n == 1 {
			sb.WriteString("Modifications d'image effectuées dans cette conversation :\n")
		}
		fmt.Fprintf(&sb, "%d. [%s à %s] Instruction : « %s »\n", n,
			datefmt.Date(rec.Timestamp), datefmt.Clock(rec.Timestamp), rec.EditInstruction)
		fmt.Fprintf(&sb, "   Avant : %s\n", orUnknown(rec.OriginalDescription))
		fmt.Fprintf(&sb, "   Après : %s\n", orUnknown(rec.EditedDescription))
		if rec.TechnicalInfo != "" {
			fmt.Fprintf(&sb, "   Détails techniques : %s\n", rec.TechnicalInfo)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "(inconnue)"
	}
	return s
}
