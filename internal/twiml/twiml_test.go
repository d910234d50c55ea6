package twiml

import (
	"strings"
	"testing"
)

func TestGatherPlayRendersVerbOrder(t *testing.T) {
	doc := GatherPlay("https://example.com/static/r.mp3", GatherConfig{
		Action:        "/voice/process",
		Timeout:       7,
		SpeechTimeout: "1.5",
	}, "Goodbye.")

	out := doc.Render()

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`input="speech"`,
		`action="/voice/process"`,
		`method="POST"`,
		`timeout="7"`,
		`speechTimeout="1.5"`,
		`<Play>https://example.com/static/r.mp3</Play>`,
		`<Say>Goodbye.</Say>`,
		`<Hangup>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered document missing %q:\n%s", want, out)
		}
	}

	// The goodbye must come after the gather so it only plays when the
	// caller stayed silent for the whole window.
	if strings.Index(out, "</Gather>") > strings.Index(out, "<Say>Goodbye.</Say>") {
		t.Errorf("goodbye rendered before gather closed:\n%s", out)
	}
}

func TestPlayRedirect(t *testing.T) {
	doc := PlayRedirect("https://example.com/static/fillers/one_sec.mp3", "/voice/continue")
	out := doc.Render()

	if !strings.Contains(out, `<Play>https://example.com/static/fillers/one_sec.mp3</Play>`) {
		t.Errorf("missing filler play:\n%s", out)
	}
	if !strings.Contains(out, `<Redirect method="POST">/voice/continue</Redirect>`) {
		t.Errorf("missing redirect:\n%s", out)
	}
	if strings.Contains(out, "<Gather") {
		t.Errorf("filler document must not gather speech:\n%s", out)
	}
	if strings.Index(out, "<Play>") > strings.Index(out, "<Redirect") {
		t.Errorf("filler must play before the redirect:\n%s", out)
	}
}

func TestGatherSayDegradesToBuiltInVoice(t *testing.T) {
	doc := GatherSay("What's your best rate?", GatherConfig{
		Action:  "/voice/process",
		Timeout: 7,
	}, "Goodbye.")
	out := doc.Render()

	if !strings.Contains(out, `<Say>What&#39;s your best rate?</Say>`) {
		t.Errorf("missing degraded say:\n%s", out)
	}
	if strings.Contains(out, "<Play>") {
		t.Errorf("degraded document must not reference audio:\n%s", out)
	}
}

func TestSayHangup(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "goodbye", text: "I didn't hear anything. Goodbye."},
		{name: "apology", text: "Something went wrong. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SayHangup(tt.text).Render()
			if !strings.Contains(out, "<Say>") || !strings.Contains(out, "<Hangup>") {
				t.Errorf("terminal document must say then hang up:\n%s", out)
			}
		})
	}
}
