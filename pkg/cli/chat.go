package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/domain/types"
	"github.com/veille-ai/veille/pkg/usecase"
	"github.com/veille-ai/veille/pkg/utils/datefmt"
)

func cmdChat() *cli.Command {
	var owner string
	var conversationID string
	var cfg assistantConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning the conversations",
			Value:       "local",
			Sources:     cli.EnvVars("VEILLE_USER"),
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "conversation",
			Aliases:     []string{"c"},
			Usage:       "Resume an existing conversation",
			Destination: &conversationID,
		},
	}
	flags = append(flags, cfg.flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Chat with the assistant in the terminal",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(repo)

			r, err := newREPL(uc, owner, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			defer uc.Chat.EndSession(r.session.ID)

			if conversationID != "" {
				if err := r.switchTo(ctx, conversationID); err != nil {
					return err
				}
			}
			return r.run(ctx)
		},
	}
}

const replHelp = `Commandes :
  /new [description]             nouvelle conversation
  /list                          lister vos conversations
  /switch <id>                   reprendre une conversation
  /rename <description>          renommer la conversation active
  /edit <fichier> <instruction>  modifier une image
  /history                       afficher la conversation
  /edits                         historique des modifications d'image
  /help                          cette aide
  /quit                          quitter`

var (
	promptColor    = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgCyan)
	sourceColor    = color.New(color.FgHiBlack)
	errorColor     = color.New(color.FgRed)
)

// repl is the terminal front end of one chat session
type repl struct {
	uc      *usecase.UseCases
	session *usecase.Session
	in      io.Reader
	out     io.Writer
}

func newREPL(uc *usecase.UseCases, owner string, in io.Reader, out io.Writer) (*repl, error) {
	s, err := uc.Chat.StartSession(owner)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start session")
	}
	return &repl{uc: uc, session: s, in: in, out: out}, nil
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Bienvenue ! Tapez /help pour la liste des commandes.")

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		_, _ = promptColor.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := r.dispatch(ctx, line)
		if err != nil {
			_, _ = errorColor.Fprintf(r.out, "Erreur : %s\n", err.Error())
		}
		if quit {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read input")
	}
	return nil
}

func (r *repl) dispatch(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.turn(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		fmt.Fprintln(r.out, "Au revoir !")
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/new":
		conv, err := r.uc.Chat.NewConversation(ctx, r.session, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Nouvelle conversation %s\n", conv.ID)
	case "/list":
		return false, r.list(ctx)
	case "/switch":
		if arg == "" {
			return false, goerr.Wrap(usecase.ErrInvalidInput, "usage: /switch <id>")
		}
		return false, r.switchTo(ctx, arg)
	case "/rename":
		return false, r.rename(ctx, arg)
	case "/edit":
		path, instruction, _ := strings.Cut(arg, " ")
		return false, r.edit(ctx, path, strings.TrimSpace(instruction))
	case "/history":
		r.history()
	case "/edits":
		r.edits()
	default:
		return false, goerr.Wrap(usecase.ErrInvalidInput, "unknown command, try /help", goerr.V("command", cmd))
	}
	return false, nil
}

func (r *repl) turn(ctx context.Context, text string) error {
	result, err := r.uc.Chat.HandleTurn(ctx, r.session, text)
	if err != nil {
		return err
	}

	_, _ = assistantColor.Fprintln(r.out, result.Reply.Content)
	for _, res := range result.Retrieved {
		_, _ = sourceColor.Fprintf(r.out, "  [%s] %s %s\n", res.SourceLabel, res.Title, res.URL)
	}
	return nil
}

func (r *repl) rename(ctx context.Context, description string) error {
	id := r.session.ConversationID()
	if id == "" {
		return goerr.Wrap(usecase.ErrInvalidInput, "no active conversation, start one with /new")
	}
	conv, err := r.uc.Chat.RenameConversation(ctx, r.session.OwnerID, id, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Conversation %s renommée : %s\n", conv.ID, conv.Description)
	return nil
}

func (r *repl) list(ctx context.Context) error {
	convs, err := r.uc.Chat.ListConversations(ctx, r.session)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(r.out, "Aucune conversation.")
		return nil
	}

	active := r.session.ConversationID()
	for _, conv := range convs {
		marker := " "
		if conv.ID == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %s  %s\n", marker, conv.ID, datefmt.Date(conv.CreatedAt), conv.Description)
	}
	return nil
}

func (r *repl) switchTo(ctx context.Context, id string) error {
	conv, err := r.uc.Chat.SwitchConversation(ctx, r.session, model.ConversationID(id))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Conversation %s : %s (%d messages)\n", conv.ID, conv.Description, r.session.Memory().Len())
	return nil
}

func (r *repl) edit(ctx context.Context, path, instruction string) error {
	if path == "" || instruction == "" {
		return goerr.Wrap(usecase.ErrInvalidInput, "usage: /edit <fichier> <instruction>")
	}

	// #nosec G304 - path is typed by the local user
	image, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read image", goerr.V("path", path))
	}

	result, err := r.uc.Chat.HandleImageEdit(ctx, r.session, image, instruction)
	if err != nil {
		return err
	}

	dst := editedPath(path)
	if err := os.WriteFile(dst, result.EditedImage, 0600); err != nil {
		return goerr.Wrap(err, "failed to write edited image", goerr.V("path", dst))
	}

	_, _ = assistantColor.Fprintln(r.out, result.Reply.Content)
	fmt.Fprintf(r.out, "  Avant : %s\n  Après : %s\n  Image enregistrée : %s\n",
		result.Record.OriginalDescription, result.Record.EditedDescription, dst)
	return nil
}

// editedPath returns a free "<name>-modifiee[-N].<ext>" path next to src
func editedPath(src string) string {
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(src, ext)
	dst := base + "-modifiee" + ext
	for i := 2; ; i++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			return dst
		}
		dst = fmt.Sprintf("%s-modifiee-%d%s", base, i, ext)
	}
}

func (r *repl) history() {
	msgs := r.uc.Chat.Messages(r.session)
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, "Aucun message.")
		return
	}
	for _, msg := range msgs {
		who := "Vous"
		c := promptColor
		if msg.Sender == types.SenderAssistant {
			who = "Assistant"
			c = assistantColor
		}
		content := msg.Content
		if msg.Type == types.MessageTypeImage {
			content = "[image] " + content
		}
		_, _ = c.Fprintf(r.out, "%s (%s) : %s\n", who, datefmt.Clock(msg.CreatedAt), content)
	}
}

func (r *repl) edits() {
	summary := r.session.Provenance().Summarize(r.session.ConversationID())
	if summary == "" {
		fmt.Fprintln(r.out, "Aucune modification d'image dans cette conversation.")
		return
	}
	fmt.Fprintln(r.out, summary)
}
