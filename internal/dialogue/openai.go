package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dispatchline/internal/domain"
	"dispatchline/internal/persona"
	"dispatchline/internal/session"
)

// ChatClient captures the subset of the go-openai client the adapter uses,
// so tests can inject fakes.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// Verify interface compliance at compile time.
var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator implements Generator via the OpenAI Chat Completions API.
type OpenAIGenerator struct {
	chat     ChatClient
	model    string
	persona  *persona.Persona
	maxTurns int
	timeout  time.Duration
	logger   *slog.Logger
}

// Options configures the OpenAI generator.
type Options struct {
	Client  ChatClient
	Model   string
	Persona *persona.Persona
	// MaxTurns bounds how many history turns are sent upstream per request.
	MaxTurns int
	// Timeout bounds each completion call; the call flow falls back to the
	// apology line when it expires.
	Timeout time.Duration
	Logger  *slog.Logger
}

// New builds an OpenAI-backed generator from the provided options.
func New(opts Options) (*OpenAIGenerator, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	if opts.Persona == nil {
		return nil, errors.New("persona is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &OpenAIGenerator{
		chat:     opts.Client,
		model:    opts.Model,
		persona:  opts.Persona,
		maxTurns: opts.MaxTurns,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}, nil
}

// NewFromAPIKey constructs a generator using the default go-openai HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	opts.Client = openai.NewClient(apiKey)
	return New(opts)
}

// GenerateReply produces the next line of the conversation.
//
// On the first turn of a call the scripted opening line is returned without a
// network round trip; the caller appends it to history so later turns see it
// as prior context. Upstream failure is reported as domain.ErrGeneration.
func (g *OpenAIGenerator) GenerateReply(ctx context.Context, history []session.Turn, utterance string, firstTurn bool) (string, error) {
	if firstTurn && len(history) == 0 {
		return g.persona.OpeningLine, nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: g.persona.SystemPrompt,
	})
	for _, turn := range g.boundHistory(history) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleFor(turn.Role),
			Content: turn.Text,
		})
	}
	if utterance != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: utterance,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		if g.logger != nil {
			g.logger.Error("chat completion failed", "error", err, "model", g.model)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}

// boundHistory enforces the request-size bound: keep the opening turn plus
// the most recent turns. Sessions already cap on append; this guards requests
// built from histories assembled elsewhere.
func (g *OpenAIGenerator) boundHistory(history []session.Turn) []session.Turn {
	if g.maxTurns <= 0 || len(history) <= g.maxTurns {
		return history
	}
	bounded := make([]session.Turn, 0, g.maxTurns)
	bounded = append(bounded, history[0])
	bounded = append(bounded, history[len(history)-(g.maxTurns-1):]...)
	return bounded
}

func roleFor(r session.Role) string {
	if r == session.RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
