package generator

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
)

// DefaultSystemPrompt frames the assistant for French-speaking users
const DefaultSystemPrompt = `Tu es un assistant conversationnel francophone.
Quand le message contient un bloc "INFORMATIONS RÉCENTES", appuie ta réponse sur ces informations et cite les sources.
Quand il contient un historique de modifications d'image, tiens-en compte pour répondre aux questions sur les modifications.
Réponds de façon concise et précise.`

// Generator produces assistant replies with a gollem LLM client. Sampling parameters
// (max tokens, temperature, top-p) are bound on the client when it is built.
type Generator struct {
	llm          gollem.LLMClient
	systemPrompt string
}

var _ interfaces.Generator = &Generator{}

type Option func(*Generator)

// WithSystemPrompt replaces DefaultSystemPrompt
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) {
		g.systemPrompt = prompt
	}
}

func New(llm gollem.LLMClient, opts ...Option) (*Generator, error) {
	if llm == nil {
		return nil, goerr.New("LLM client is required")
	}

	g := &Generator{
		llm:          llm,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var sessionOpts []gollem.SessionOption
	if g.systemPrompt != "" {
		sessionOpts = append(sessionOpts, gollem.WithSessionSystemPrompt(g.systemPrompt))
	}

	session, err := g.llm.NewSession(ctx, sessionOpts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil {
		return "", goerr.New("LLM returned no response")
	}

	reply := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if reply == "" {
		return "", goerr.New("LLM returned an empty reply")
	}
	return reply, nil
}
