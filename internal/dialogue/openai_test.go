package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dispatchline/internal/domain"
	"dispatchline/internal/persona"
	"dispatchline/internal/session"
)

type fakeChatClient struct {
	reply    string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

func testPersona() *persona.Persona {
	return &persona.Persona{
		Name:         "Zafar",
		SystemPrompt: "You are a freight dispatcher.",
		OpeningLine:  "Hello! This is Zafar from Quadrix Dispatch.",
		RepeatPrompt: "Sorry, could you repeat?",
		ApologyLine:  "Something went wrong.",
		GoodbyeLine:  "Goodbye.",
		FillerClips:  []string{"one_sec.mp3"},
	}
}

func newTestGenerator(t *testing.T, chat ChatClient) *OpenAIGenerator {
	t.Helper()
	g, err := New(Options{
		Client:   chat,
		Model:    "gpt-3.5-turbo",
		Persona:  testPersona(),
		MaxTurns: 6,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestFirstTurnUsesScriptedOpening(t *testing.T) {
	chat := &fakeChatClient{reply: "should not be used"}
	g := newTestGenerator(t, chat)

	got, err := g.GenerateReply(context.Background(), nil, "", true)
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if got != testPersona().OpeningLine {
		t.Errorf("first turn reply = %q, want scripted opening", got)
	}
	if len(chat.requests) != 0 {
		t.Errorf("first turn must not hit the upstream service, saw %d requests", len(chat.requests))
	}
}

func TestGenerateReplyBuildsOrderedRequest(t *testing.T) {
	chat := &fakeChatClient{reply: "I can do twenty-two hundred."}
	g := newTestGenerator(t, chat)

	history := []session.Turn{
		{Role: session.RoleAssistant, Text: "Hello! This is Zafar."},
		{Role: session.RoleUser, Text: "I have a load to Chicago."},
	}

	got, err := g.GenerateReply(context.Background(), history, "what's the rate", false)
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if got != "I can do twenty-two hundred." {
		t.Errorf("reply = %q", got)
	}

	if len(chat.requests) != 1 {
		t.Fatalf("upstream requests = %d, want 1", len(chat.requests))
	}
	msgs := chat.requests[0].Messages

	want := []struct {
		role    string
		content string
	}{
		{openai.ChatMessageRoleSystem, "You are a freight dispatcher."},
		{openai.ChatMessageRoleAssistant, "Hello! This is Zafar."},
		{openai.ChatMessageRoleUser, "I have a load to Chicago."},
		{openai.ChatMessageRoleUser, "what's the rate"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("message count = %d, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("message[%d] = (%s, %q), want (%s, %q)", i, msgs[i].Role, msgs[i].Content, w.role, w.content)
		}
	}
}

func TestEmptyUtteranceOmitted(t *testing.T) {
	chat := &fakeChatClient{reply: "Anything else?"}
	g := newTestGenerator(t, chat)

	history := []session.Turn{{Role: session.RoleAssistant, Text: "opening"}}
	if _, err := g.GenerateReply(context.Background(), history, "", false); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	msgs := chat.requests[0].Messages
	last := msgs[len(msgs)-1]
	if last.Content == "" {
		t.Error("request must not end with an empty user message")
	}
}

func TestUpstreamFailureMapsToGenerationError(t *testing.T) {
	chat := &fakeChatClient{err: errors.New("upstream timeout")}
	g := newTestGenerator(t, chat)

	_, err := g.GenerateReply(context.Background(), []session.Turn{{Role: session.RoleAssistant, Text: "hi"}}, "hello", false)
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func TestHistoryBoundedBeforeRequest(t *testing.T) {
	chat := &fakeChatClient{reply: "ok"}
	g := newTestGenerator(t, chat)

	history := make([]session.Turn, 0, 20)
	history = append(history, session.Turn{Role: session.RoleAssistant, Text: "opening"})
	for i := 0; i < 19; i++ {
		history = append(history, session.Turn{Role: session.RoleUser, Text: "filler turn"})
	}

	if _, err := g.GenerateReply(context.Background(), history, "latest", false); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	// system + bounded history (6) + utterance
	msgs := chat.requests[0].Messages
	if len(msgs) != 8 {
		t.Fatalf("message count = %d, want 8 (bounded)", len(msgs))
	}
	if msgs[1].Content != "opening" {
		t.Errorf("bounded history must keep the opening turn, got %q", msgs[1].Content)
	}
}
