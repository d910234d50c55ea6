// Package twiml renders the provider-readable voice-control documents the
// webhook handlers return. Only the verbs the call flow uses are modeled.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Say is a <Say> verb spoken with the provider's built-in voice.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Play is a <Play> verb referencing a fetchable audio resource.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather is a <Gather> verb capturing caller speech. Audio nested inside it
// plays while the provider listens, so the caller can barge in.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Play          *Play
	Say           *Say
}

// Redirect is a <Redirect> verb transferring control to another webhook.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup is a <Hangup/> verb ending the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is a <Response> document. Verbs execute in field order; the
// combinations the call flow emits all fit this fixed ordering.
type Response struct {
	XMLName  xml.Name `xml:"Response"`
	Gather   *Gather
	Play     *Play
	Say      *Say
	Redirect *Redirect
	Hangup   *Hangup
}

// Render serializes the document with the XML header. Marshal failure falls
// back to a minimal spoken document rather than an empty body.
func (r *Response) Render() string {
	out, err := xml.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Response><Say>%s</Say><Hangup/></Response>`, "An application error occurred. Goodbye.")
	}
	return xml.Header + string(out)
}

// GatherConfig bounds one speech-capture round.
type GatherConfig struct {
	Action        string
	Timeout       int
	SpeechTimeout string
}

// GatherPlay builds the standard turn document: play audio inside a speech
// gather, then fall through to a spoken goodbye and hangup if the caller
// stays silent for the whole window.
func GatherPlay(audioURL string, cfg GatherConfig, goodbye string) *Response {
	return &Response{
		Gather: &Gather{
			Input:         "speech",
			Action:        cfg.Action,
			Method:        "POST",
			Timeout:       cfg.Timeout,
			SpeechTimeout: cfg.SpeechTimeout,
			Play:          &Play{URL: audioURL},
		},
		Say:    &Say{Text: goodbye},
		Hangup: &Hangup{},
	}
}

// GatherSay is GatherPlay degraded to the provider's built-in voice, used
// when both synthesis attempts failed.
func GatherSay(text string, cfg GatherConfig, goodbye string) *Response {
	return &Response{
		Gather: &Gather{
			Input:         "speech",
			Action:        cfg.Action,
			Method:        "POST",
			Timeout:       cfg.Timeout,
			SpeechTimeout: cfg.SpeechTimeout,
			Say:           &Say{Text: text},
		},
		Say:    &Say{Text: goodbye},
		Hangup: &Hangup{},
	}
}

// PlayRedirect builds the filler document: play a short local clip, then
// redirect to the continue webhook where the real reply is produced.
func PlayRedirect(audioURL, redirectTo string) *Response {
	return &Response{
		Play:     &Play{URL: audioURL},
		Redirect: &Redirect{Method: "POST", URL: redirectTo},
	}
}

// SayHangup builds a terminal document: speak a line, end the call.
func SayHangup(text string) *Response {
	return &Response{
		Say:    &Say{Text: text},
		Hangup: &Hangup{},
	}
}
