package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dispatchline/internal/callflow"
	"dispatchline/internal/persona"
	"dispatchline/internal/session"
	"dispatchline/internal/speech"
)

type scriptedGenerator struct{}

func (scriptedGenerator) GenerateReply(ctx context.Context, history []session.Turn, utterance string, firstTurn bool) (string, error) {
	if firstTurn {
		return "Hello! This is Zafar.", nil
	}
	return "Reply to: " + utterance, nil
}

type scriptedSynth struct{}

func (scriptedSynth) Synthesize(ctx context.Context, callSID string, turnSeq int, text string) (string, error) {
	return fmt.Sprintf("https://voice.example.com/static/%s-%04d.mp3", callSID, turnSeq), nil
}

func newTestHandler(t *testing.T) (*VoiceHandler, *session.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore(session.Config{MaxTurns: 20, IdleTTL: time.Minute}, logger)

	audio, err := speech.NewAudioStore(t.TempDir(), "https://voice.example.com")
	if err != nil {
		t.Fatalf("audio store: %v", err)
	}

	p := &persona.Persona{
		Name:         "Zafar",
		SystemPrompt: "dispatcher",
		OpeningLine:  "Hello! This is Zafar.",
		RepeatPrompt: "Could you repeat?",
		ApologyLine:  "Something went wrong.",
		GoodbyeLine:  "Goodbye.",
		PostHint:     "This endpoint expects a POST request.",
		FillerClips:  []string{"got_it.mp3"},
	}

	machine := callflow.NewMachine(sessions, scriptedGenerator{}, scriptedSynth{}, audio, p, nil, callflow.Config{
		ConfidenceMin:      0.3,
		FirstGatherTimeout: 10,
		GatherTimeout:      7,
		FirstSpeechTimeout: "auto",
		SpeechTimeout:      "1.5",
		ProcessPath:        "/voice/process",
		ContinuePath:       "/voice/continue",
	}, logger)

	return NewVoiceHandler(machine, logger), sessions
}

func postForm(t *testing.T, h http.HandlerFunc, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestInboundRespondsWithVoiceDocument(t *testing.T) {
	h, sessions := newTestHandler(t)

	rec := postForm(t, h.Inbound, "/voice", url.Values{"CallSid": {"CA1"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q, want application/xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Gather") {
		t.Errorf("body missing gather:\n%s", rec.Body.String())
	}
	if _, ok := sessions.Snapshot("CA1"); !ok {
		t.Error("inbound must create the session")
	}
}

func TestSpeechResultParsesConfidence(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantFiller bool
	}{
		{
			name: "confident speech",
			form: url.Values{
				"CallSid":      {"CA1"},
				"SpeechResult": {"what's the rate"},
				"Confidence":   {"0.92"},
			},
			wantFiller: true,
		},
		{
			name: "missing confidence defaults high",
			form: url.Values{
				"CallSid":      {"CA1"},
				"SpeechResult": {"hello"},
			},
			wantFiller: true,
		},
		{
			name: "low confidence still answered",
			form: url.Values{
				"CallSid":      {"CA1"},
				"SpeechResult": {"mumble"},
				"Confidence":   {"0.1"},
			},
			wantFiller: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			postForm(t, h.Inbound, "/voice", url.Values{"CallSid": {"CA1"}})

			rec := postForm(t, h.SpeechResult, "/voice/process", tt.form)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := rec.Body.String()
			if tt.wantFiller && !strings.Contains(body, "/static/fillers/") {
				t.Errorf("body missing filler clip:\n%s", body)
			}
			if !strings.Contains(body, "/voice/continue") {
				t.Errorf("body missing continue redirect:\n%s", body)
			}
		})
	}
}

func TestContinueSpeaksReply(t *testing.T) {
	h, _ := newTestHandler(t)
	postForm(t, h.Inbound, "/voice", url.Values{"CallSid": {"CA1"}})
	postForm(t, h.SpeechResult, "/voice/process", url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"what's the rate"},
		"Confidence":   {"0.9"},
	})

	rec := postForm(t, h.Continue, "/voice/continue", url.Values{"CallSid": {"CA1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Play>https://voice.example.com/static/CA1-") {
		t.Errorf("body missing synthesized reply audio:\n%s", rec.Body.String())
	}
}

func TestCallEndedReturnsNoContent(t *testing.T) {
	h, sessions := newTestHandler(t)
	postForm(t, h.Inbound, "/voice", url.Values{"CallSid": {"CA1"}})

	rec := postForm(t, h.CallEnded, "/voice/hangup", url.Values{"CallSid": {"CA1"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := sessions.Snapshot("CA1"); ok {
		t.Error("session must be removed after hangup")
	}
}

func TestInboundHintSpeaksConfigurationHelp(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/voice", nil)
	rec := httptest.NewRecorder()
	h.InboundHint(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "POST request") || !strings.Contains(body, "<Hangup>") {
		t.Errorf("GET hint must speak and hang up:\n%s", body)
	}
}

func TestDebugHandlers(t *testing.T) {
	h, sessions := newTestHandler(t)
	postForm(t, h.Inbound, "/voice", url.Values{"CallSid": {"CA1"}})

	debug := NewDebugHandler(sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /debug/api/calls", debug.ListCalls)
	mux.HandleFunc("GET /debug/api/calls/{sid}", debug.GetCall)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/api/calls", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "CA1") {
		t.Errorf("list calls = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/api/calls/CA1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get call status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/api/calls/CA9", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown call status = %d, want 404", rec.Code)
	}
}
