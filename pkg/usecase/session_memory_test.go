package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/domain/types"
	"github.com/veille-ai/veille/pkg/repository/memory"
	"github.com/veille-ai/veille/pkg/usecase"
)

func seedConversation(t *testing.T, store *usecase.ConversationStore, owner string, texts ...string) *model.Conversation {
	t.Helper()
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, owner, "seed")
	gt.NoError(t, err).Required()
	for i, text := range texts {
		sender := types.SenderUser
		if i%2 == 1 {
			sender = types.SenderAssistant
		}
		_, err := store.AppendMessage(ctx, conv.ID, sender, types.MessageTypeText, text, "")
		gt.NoError(t, err).Required()
	}
	return conv
}

func contents(msgs []*model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestSessionMemory_Load(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewConversationStore(memory.New())
	conv := seedConversation(t, store, "alice", "q1", "r1", "q2", "r2")

	mem := usecase.NewSessionMemory(store)
	gt.Value(t, mem.ConversationID()).Equal(model.ConversationID(""))

	gt.NoError(t, mem.Load(ctx, conv.ID)).Required()
	first := mem.Current()
	gt.Value(t, contents(first)).Equal([]string{"q1", "r1", "q2", "r2"})

	t.Run("idempotent", func(t *testing.T) {
		gt.NoError(t, mem.Load(ctx, conv.ID)).Required()
		gt.Value(t, mem.Current()).Equal(first)
	})

	t.Run("current returns copies", func(t *testing.T) {
		msgs := mem.Current()
		msgs[0].Content = "tampered"
		gt.Value(t, mem.Current()[0].Content).Equal("q1")
	})

	t.Run("recent window", func(t *testing.T) {
		gt.Value(t, contents(mem.Recent(2))).Equal([]string{"q2", "r2"})
		gt.Array(t, mem.Recent(10)).Length(4)
		gt.Array(t, mem.Recent(0)).Length(0)
	})

	t.Run("failed load keeps previous state", func(t *testing.T) {
		err := mem.Load(ctx, model.NewConversationID())
		gt.Error(t, err).Is(usecase.ErrConversationNotFound)
		gt.Value(t, mem.ConversationID()).Equal(conv.ID)
		gt.Array(t, mem.Current()).Length(4)
	})
}

func TestSessionMemory_AppendAndEdits(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewConversationStore(memory.New())
	conv := seedConversation(t, store, "alice")
	other := seedConversation(t, store, "alice", "elsewhere")

	mem := usecase.NewSessionMemory(store)

	msg, err := store.AppendMessage(ctx, conv.ID, types.SenderAssistant, types.MessageTypeImage, "done", "aW1n")
	gt.NoError(t, err).Required()

	t.Run("append before load is rejected", func(t *testing.T) {
		gt.Error(t, mem.Append(msg, nil)).Is(usecase.ErrInvalidInput)
	})

	gt.NoError(t, mem.Load(ctx, conv.ID)).Required()
	gt.Array(t, mem.Current()).Length(1)

	extra, err := store.AppendMessage(ctx, conv.ID, types.SenderUser, types.MessageTypeText, "next", "")
	gt.NoError(t, err).Required()
	rec := model.EditRecord{
		OriginalDescription: "a garden",
		EditInstruction:     "add flowers",
		EditedDescription:   "a garden with flowers",
		Timestamp:           time.Now(),
	}
	gt.NoError(t, mem.Append(extra, &rec)).Required()
	gt.Value(t, contents(mem.Current())).Equal([]string{"done", "next"})

	got, ok := mem.EditRecord(extra.ID)
	gt.Bool(t, ok).True()
	gt.Value(t, got.EditInstruction).Equal("add flowers")
	_, ok = mem.EditRecord(msg.ID)
	gt.Bool(t, ok).False()

	t.Run("message of another conversation is rejected", func(t *testing.T) {
		foreign := &model.Message{ID: model.NewMessageID(), ConversationID: other.ID, Sender: types.SenderUser, Type: types.MessageTypeText}
		gt.Error(t, mem.Append(foreign, nil)).Is(usecase.ErrInvalidInput)
		gt.Array(t, mem.Current()).Length(2)
	})

	t.Run("reloading the active conversation keeps edit records", func(t *testing.T) {
		gt.NoError(t, mem.Load(ctx, conv.ID)).Required()
		gt.Value(t, contents(mem.Current())).Equal([]string{"done", "next"})
		got, ok := mem.EditRecord(extra.ID)
		gt.Bool(t, ok).True()
		gt.Value(t, got.EditedDescription).Equal("a garden with flowers")
	})

	t.Run("switch discards edit records", func(t *testing.T) {
		gt.NoError(t, mem.Load(ctx, other.ID)).Required()
		gt.Value(t, contents(mem.Current())).Equal([]string{"elsewhere"})
		_, ok := mem.EditRecord(extra.ID)
		gt.Bool(t, ok).False()
	})

	t.Run("reset", func(t *testing.T) {
		mem.Reset()
		gt.Value(t, mem.ConversationID()).Equal(model.ConversationID(""))
		gt.Number(t, mem.Len()).Equal(0)
	})
}

func TestSessionMemory_SwitchIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewConversationStore(memory.New())
	a := seedConversation(t, store, "alice", "a1", "a2", "a3")
	b := seedConversation(t, store, "alice", "b1", "b2")

	mem := usecase.NewSessionMemory(store)
	gt.NoError(t, mem.Load(ctx, a.ID)).Required()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	mixed := make(chan []string, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			msgs := mem.Current()
			for _, m := range msgs[1:] {
				if m.ConversationID != msgs[0].ConversationID {
					select {
					case mixed <- contents(msgs):
					default:
					}
					return
				}
			}
		}
	}()

	for i := 0; i < 100; i++ {
		target := a.ID
		if i%2 == 0 {
			target = b.ID
		}
		if err := mem.Load(ctx, target); err != nil {
			t.Fatal(goerr.Wrap(err, "load failed"))
		}
	}
	close(stop)
	wg.Wait()

	select {
	case got := <-mixed:
		t.Fatalf("observed a mix of conversations: %v", got)
	default:
	}
}
