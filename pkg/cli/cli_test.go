package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/repository/memory"
	"github.com/veille-ai/veille/pkg/service/retrieval"
	"github.com/veille-ai/veille/pkg/usecase"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "Voici ma réponse.", nil
}

type stubDescriber struct {
	mu    sync.Mutex
	calls int
}

func (d *stubDescriber) Describe(ctx context.Context, image []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls%2 == 1 {
		return "un ciel gris au-dessus d'un champ", nil
	}
	return "un ciel bleu au-dessus d'un champ", nil
}

type stubEditor struct{}

func (stubEditor) Edit(ctx context.Context, image []byte, instruction string) ([]byte, string, error) {
	return []byte("edited-png"), "Ciel remplacé", nil
}

func newTestUseCases() *usecase.UseCases {
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return usecase.New(memory.New(),
		usecase.WithGenerator(stubGenerator{}),
		usecase.WithRetriever(retrieval.NewOrchestrator(nil)),
		usecase.WithImageDescriber(&stubDescriber{}),
		usecase.WithImageEditor(stubEditor{}),
		usecase.WithClock(func() time.Time { return now }),
	)
}

func TestREPL(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "champ.png")
	gt.NoError(t, os.WriteFile(src, []byte("original-png"), 0600))

	input := strings.Join([]string{
		"Bonjour",
		"/new Voyage",
		"/list",
		"/history",
		"/edit " + src + " rends le ciel bleu",
		"/edits",
		"/inconnu",
		"/quit",
		"jamais lu",
	}, "\n")

	var out bytes.Buffer
	r, err := newREPL(newTestUseCases(), "alice", strings.NewReader(input), &out)
	gt.NoError(t, err).Required()
	gt.NoError(t, r.run(t.Context()))

	got := out.String()
	gt.String(t, got).Contains("Voici ma réponse.")
	gt.String(t, got).Contains("Nouvelle conversation")
	gt.String(t, got).Contains("Voyage")
	gt.String(t, got).Contains("Bonjour")
	gt.String(t, got).Contains("Aucun message.")
	gt.String(t, got).Contains("Après : un ciel bleu au-dessus d'un champ")
	gt.String(t, got).Contains("Instruction : « rends le ciel bleu »")
	gt.String(t, got).Contains("Erreur :")
	gt.String(t, got).Contains("Au revoir !")

	edited, err := os.ReadFile(filepath.Join(dir, "champ-modifiee.png"))
	gt.NoError(t, err).Required()
	gt.Value(t, string(edited)).Equal("edited-png")

	gt.Value(t, r.session.Memory().Len()).Equal(2)
}

func TestREPL_SwitchConversation(t *testing.T) {
	uc := newTestUseCases()

	var first bytes.Buffer
	r, err := newREPL(uc, "alice", strings.NewReader("Parle-moi de Lyon\n"), &first)
	gt.NoError(t, err).Required()
	gt.NoError(t, r.run(t.Context()))
	convID := r.session.ConversationID()
	gt.Value(t, convID).NotEqual("")

	t.Run("resumes the conversation in a new session", func(t *testing.T) {
		var out bytes.Buffer
		r2, err := newREPL(uc, "alice", strings.NewReader("/history\n"), &out)
		gt.NoError(t, err).Required()
		gt.NoError(t, r2.switchTo(t.Context(), convID.String()))
		gt.NoError(t, r2.run(t.Context()))
		gt.String(t, out.String()).Contains("(2 messages)")
		gt.String(t, out.String()).Contains("Parle-moi de Lyon")
	})

	t.Run("refuses another user's conversation", func(t *testing.T) {
		var out bytes.Buffer
		r3, err := newREPL(uc, "bob", strings.NewReader(""), &out)
		gt.NoError(t, err).Required()
		gt.Error(t, r3.switchTo(t.Context(), convID.String())).Is(usecase.ErrAccessDenied)
	})
}

func TestREPL_Rename(t *testing.T) {
	uc := newTestUseCases()

	var out bytes.Buffer
	input := strings.Join([]string{
		"/rename Trop tôt",
		"Parle-moi de Lyon",
		"/rename Sortie à Lyon",
		"/rename",
		"/list",
	}, "\n")
	r, err := newREPL(uc, "alice", strings.NewReader(input), &out)
	gt.NoError(t, err).Required()
	gt.NoError(t, r.run(t.Context()))

	got := out.String()
	gt.String(t, got).Contains("Erreur :")
	gt.String(t, got).Contains("renommée : Sortie à Lyon")

	conv, err := uc.Store.GetConversation(t.Context(), r.session.ConversationID())
	gt.NoError(t, err).Required()
	gt.Value(t, conv.Description).Equal("Sortie à Lyon")
}

func TestEditedPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")

	gt.Value(t, editedPath(src)).Equal(filepath.Join(dir, "photo-modifiee.jpg"))

	gt.NoError(t, os.WriteFile(filepath.Join(dir, "photo-modifiee.jpg"), []byte("x"), 0600))
	gt.Value(t, editedPath(src)).Equal(filepath.Join(dir, "photo-modifiee-2.jpg"))
}

func TestRunSearch(t *testing.T) {
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	orchestrator := retrieval.NewOrchestrator([]interfaces.RetrievalProvider{
		retrieval.NewFallback(retrieval.WithFallbackClock(func() time.Time { return fixed })),
	})

	var out bytes.Buffer
	err := runSearch(t.Context(), &out, orchestrator, usecase.NewClassifier(), "actualités France 2025", 3, true)
	gt.NoError(t, err).Required()

	got := out.String()
	gt.String(t, got).Contains("Recherche nécessaire : true")
	gt.String(t, got).Contains("Connaissances statiques")
	gt.String(t, got).Contains("Résultats retenus : 3")
	gt.String(t, got).Contains("France TV Info : actualité générale")
	gt.String(t, got).Contains("vendredi 16 octobre 2026")
}

func TestGetIndexConfig(t *testing.T) {
	cfg := getIndexConfig("test_")
	gt.Array(t, cfg.Collections).Length(2).Required()

	gt.Value(t, cfg.Collections[0].Name).Equal("test_conversations")
	gt.Array(t, cfg.Collections[0].Indexes).Length(1).Required()
	gt.Value(t, cfg.Collections[0].Indexes[0].Fields[1].Order).Equal(fireconf.OrderDescending)

	gt.Value(t, cfg.Collections[1].Name).Equal("test_messages")
	gt.Value(t, cfg.Collections[1].Indexes[0].Fields[0].Path).Equal("conversation_id")
}
